package signer

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/lightninglabs/remotesigner/zpay32"
)

func sha256Sum(b []byte) [32]byte {
	return sha256.Sum256(b)
}

func doubleSha256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// signDoubleSha256DER signs the double-SHA256 of msg, the digest every
// gossip message (node_announcement, channel_update) is signed under, and
// returns a DER-encoded, low-S signature.
func signDoubleSha256DER(key *btcec.PrivateKey, msg []byte) ([]byte, error) {
	digest := doubleSha256(msg)
	sig := ecdsa.Sign(key, digest[:])
	return sig.Serialize(), nil
}

// signDoubleSha256Recoverable signs the double-SHA256 of msg and returns a
// 65-byte compact signature: a recovery-id byte followed by (r, s).
func signDoubleSha256Recoverable(key *btcec.PrivateKey, msg []byte) ([]byte, error) {
	digest := doubleSha256(msg)
	return ecdsa.SignCompact(key, digest[:], true), nil
}

// signRecoverable signs a caller-supplied 32-byte digest directly, the
// form sign_invoice needs since the BOLT-11 digest is already the final
// SHA-256, not a message to be hashed again.
func signRecoverable(key *btcec.PrivateKey, digest []byte) ([]byte, error) {
	return ecdsa.SignCompact(key, digest, true), nil
}

func signingDigest(hrp string, data []byte) ([32]byte, error) {
	return zpay32.SigningDigest(hrp, data)
}
