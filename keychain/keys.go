// Package keychain derives every key the signer ever uses from a single
// 32-byte seed: the node's own identity key, the on-chain wallet's account
// extended key, and each channel's five basepoints plus its per-commitment
// secret tree. Nothing derived here is ever cached past the call that asked
// for it, beyond the seed itself — see KeyManager's doc comment.
package keychain

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/lightninglabs/remotesigner/signererror"
	"golang.org/x/crypto/hkdf"
)

// Seed is the root secret every key in this module is derived from. It is
// generated once at node creation and never changes.
type Seed [32]byte

// RandomSeed generates a fresh cryptographically random Seed, for
// new_node callers that don't bring their own (an operator creating a
// node from scratch rather than importing an existing one).
func RandomSeed() (Seed, error) {
	var s Seed
	if _, err := io.ReadFull(rand.Reader, s[:]); err != nil {
		return Seed{}, fmt.Errorf("generating random seed: %w", err)
	}
	return s, nil
}

// KeyDerivationStyle selects the BIP-32 path shape used for on-chain wallet
// addresses, mirroring the two conventions the signer's front-ends use in
// the wild.
type KeyDerivationStyle uint8

const (
	// Native uses a single non-hardened index directly under the
	// signer's own hardened wallet account (m/1017'/i).
	Native KeyDerivationStyle = iota

	// Lnd matches lnd's own keychain.KeyFamily/index/branch BIP-32
	// layout, a three-element non-hardened path under lnd's account.
	Lnd
)

// pathLen returns the expected non-hardened path length for wallet_key
// calls under this derivation style. A wallet_key call with any other
// length is a caller bug (InvalidArgument), not a policy question.
func (s KeyDerivationStyle) pathLen() int {
	switch s {
	case Native:
		return 1
	case Lnd:
		return 3
	default:
		return 0
	}
}

// accountPurpose is the hardened account index each derivation style roots
// its wallet_key derivation at. Chosen once and never reused for anything
// else so that no two call sites can collide on the same extended key.
func (s KeyDerivationStyle) accountPurpose() uint32 {
	switch s {
	case Native:
		return hdkeychain.HardenedKeyStart + 1017
	case Lnd:
		return hdkeychain.HardenedKeyStart + 1017 + 1
	default:
		return hdkeychain.HardenedKeyStart
	}
}

// NodeConfig carries the immutable, node-wide derivation parameters set at
// node creation.
type NodeConfig struct {
	KeyDerivationStyle KeyDerivationStyle
	Network            *chaincfg.Params
}

// KeyManager derives, on demand, every secret the signer needs. It holds
// only the seed and a small monotonic counter used to mint fresh channel
// ids; per-channel extended keys and per-commitment secrets are recomputed
// on every call rather than cached, so a KeyManager carries no exploitable
// long-lived secret material beyond the seed itself.
type KeyManager struct {
	seed    Seed
	network *chaincfg.Params
	style   KeyDerivationStyle

	mu          sync.Mutex
	nextChanNum uint64
}

// NewKeyManager builds a KeyManager bound to seed, cfg.Network and
// cfg.KeyDerivationStyle.
func NewKeyManager(seed Seed, cfg NodeConfig) *KeyManager {
	return &KeyManager{
		seed:    seed,
		network: cfg.Network,
		style:   cfg.KeyDerivationStyle,
	}
}

// expand runs HKDF-SHA256 over the seed with a context-specific info
// string and returns n bytes of key material. Every non-BIP32 derivation in
// this package — node identity, channel basepoints, the commitment seed —
// goes through this one function so the domain-separation tags live in one
// place.
func (k *KeyManager) expand(info string, n int) []byte {
	r := hkdf.New(sha256.New, k.seed[:], nil, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		// hkdf.Reader only fails if more output is requested than
		// the expand step can produce (255*32 bytes); every call
		// site below asks for far less.
		panic(fmt.Sprintf("keychain: hkdf expand: %v", err))
	}
	return out
}

// scalar reduces HKDF output from info into a valid secp256k1 private
// scalar, retrying with a counter suffix in the vanishingly unlikely event
// the raw bytes are outside the curve order.
func (k *KeyManager) scalar(info string) *btcec.PrivateKey {
	for i := uint32(0); ; i++ {
		tag := info
		if i > 0 {
			tag = fmt.Sprintf("%s|%d", info, i)
		}
		b := k.expand(tag, 32)
		priv, overflowed := ecScalar(b)
		if !overflowed {
			return priv
		}
	}
}

func ecScalar(b []byte) (*btcec.PrivateKey, bool) {
	var scalar btcec.ModNScalar
	overflowed := scalar.SetByteSlice(b)
	if overflowed {
		return nil, true
	}
	scalarBytes := scalar.Bytes()
	priv, _ := btcec.PrivKeyFromBytes(scalarBytes[:])
	return priv, false
}

// NodeSecret returns the node's identity private key, deterministic from
// the seed alone.
func (k *KeyManager) NodeSecret() *btcec.PrivateKey {
	return k.scalar("remotesigner/node-identity")
}

// accountKey returns the hardened account extended private key that all
// WalletKey derivations descend from.
func (k *KeyManager) accountKey() (*hdkeychain.ExtendedKey, error) {
	master, err := hdkeychain.NewMaster(k.expand("remotesigner/wallet-seed", 32), k.network)
	if err != nil {
		return nil, signererror.Wrap(err, "derive wallet master key")
	}
	account, err := master.Derive(k.style.accountPurpose())
	if err != nil {
		return nil, signererror.Wrap(err, "derive wallet account key")
	}
	return account, nil
}

// WalletKey derives a non-hardened on-chain address key under the wallet's
// account extended key. path's length must match the configured
// KeyDerivationStyle exactly (Native: 1, Lnd: 3); any other length is the
// caller's bug, not ours.
func (k *KeyManager) WalletKey(path []uint32) (*btcec.PrivateKey, error) {
	if want := k.style.pathLen(); len(path) != want {
		return nil, signererror.Invalid(
			"wallet key path has %d elements, want %d for "+
				"derivation style %d", len(path), want, k.style,
		)
	}

	account, err := k.accountKey()
	if err != nil {
		return nil, err
	}

	cur := account
	for _, idx := range path {
		if idx >= hdkeychain.HardenedKeyStart {
			return nil, signererror.Invalid(
				"wallet key path element %d is hardened, "+
					"only non-hardened indices are permitted", idx,
			)
		}
		cur, err = cur.Derive(idx)
		if err != nil {
			return nil, signererror.Wrap(err, "derive wallet key")
		}
	}

	priv, err := cur.ECPrivKey()
	if err != nil {
		return nil, signererror.Wrap(err, "extract wallet private key")
	}
	return priv, nil
}

// CanSpend reports whether script is the standard witness pubkey hash
// script for the key at path.
func (k *KeyManager) CanSpend(path []uint32, script []byte) (bool, error) {
	priv, err := k.WalletKey(path)
	if err != nil {
		return false, err
	}
	want, err := P2WPKHScript(priv.PubKey())
	if err != nil {
		return false, err
	}
	return bytesEqual(want, script), nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NewChannelID mints a fresh, seed-bound 32-byte channel id from a
// monotonically increasing counter. Two KeyManagers built from the same
// seed but running in different processes will not collide in practice
// because channel creation also carries a caller-supplied nonce that the
// signer records before accepting the id — see signer.Node.NewChannel.
func (k *KeyManager) NewChannelID() [32]byte {
	k.mu.Lock()
	n := k.nextChanNum
	k.nextChanNum++
	k.mu.Unlock()

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], n)

	mac := hmac.New(sha256.New, k.seed[:])
	mac.Write([]byte("remotesigner/channel-id"))
	mac.Write(counter[:])

	var id [32]byte
	copy(id[:], mac.Sum(nil))
	return id
}
