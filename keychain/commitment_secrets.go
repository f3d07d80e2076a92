package keychain

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/remotesigner/signererror"
)

// commitmentSecretTreeDepth is the number of bits of commitment-number
// index the BOLT-3 secret tree derives over, giving room for 2^48
// commitments per channel before the index space is exhausted.
const commitmentSecretTreeDepth = 48

// derivePerCommitmentSecret implements the BOLT-3 generate_from_seed
// algorithm: a sparse binary tree of SHA-256 hashes rooted at seed, the
// same shape of structure the teacher corpus's elkrem package used for
// channel revocation before BOLT-3 standardized this exact bit-flip
// construction. Each commitment number's secret can be derived directly
// from the seed; releasing the secret for number n does not reveal any
// secret for a number that doesn't share n's low "generation" bits, which
// is what lets a signer reveal old secrets without exposing new ones.
func derivePerCommitmentSecret(seed [32]byte, index uint64) [32]byte {
	res := seed
	for i := 0; i < commitmentSecretTreeDepth; i++ {
		bitPos := uint(commitmentSecretTreeDepth - 1 - i)
		if index&(1<<bitPos) == 0 {
			continue
		}
		byteIdx := bitPos / 8
		bitIdx := bitPos % 8
		res[byteIdx] ^= 1 << bitIdx
		res = sha256.Sum256(res[:])
	}
	return res
}

// PerCommitmentSecret returns the revocation secret for commitment number
// index, derived from keys.CommitmentSeed. Callers
// (lnwallet.ChannelSlot.GetPerCommitmentSecret) are responsible for enforcing that a secret is never released before the
// holder state has advanced two commitments past index — this function
// has no notion of channel state and will happily derive any index.
func PerCommitmentSecret(keys *ChannelKeys, index uint64) [32]byte {
	return derivePerCommitmentSecret(keys.CommitmentSeed, index)
}

// PerCommitmentPoint returns the public per-commitment point for
// commitment number index: the point corresponding to
// PerCommitmentSecret(keys, index).
func PerCommitmentPoint(keys *ChannelKeys, index uint64) *btcec.PublicKey {
	secretBytes := derivePerCommitmentSecret(keys.CommitmentSeed, index)
	priv, pub := btcec.PrivKeyFromBytes(secretBytes[:])
	_ = priv
	return pub
}

// CheckFutureSecret verifies that secret is indeed the per-commitment
// secret for commitment number index, used by check_future_secret to let
// a front-end detect that its own local state has fallen behind the
// signer's.
func CheckFutureSecret(keys *ChannelKeys, index uint64, secret [32]byte) (bool, error) {
	want := derivePerCommitmentSecret(keys.CommitmentSeed, index)
	if len(want) != len(secret) {
		return false, signererror.Invalid("secret must be 32 bytes")
	}
	return want == secret, nil
}
