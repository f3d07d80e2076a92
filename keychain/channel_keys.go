package keychain

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ChannelKeys holds the five BOLT-3 basepoints for one channel plus the
// seed of its per-commitment secret tree. Every field is derived
// deterministically from the node seed and the channel's nonce; nothing
// here is persisted on its own, it is recomputed from (seed, nonce) on
// every call that needs it.
type ChannelKeys struct {
	FundingKey      *btcec.PrivateKey
	RevocationBase  *btcec.PrivateKey
	PaymentBase     *btcec.PrivateKey
	DelayedBase     *btcec.PrivateKey
	HtlcBase        *btcec.PrivateKey
	CommitmentSeed  [32]byte
}

// FundingPubKey, RevocationBasePoint, PaymentBasePoint, DelayedBasePoint and
// HtlcBasePoint return the five basepoints' public halves, the form they're
// exchanged with the counterparty in.
func (c *ChannelKeys) FundingPubKey() *btcec.PublicKey      { return c.FundingKey.PubKey() }
func (c *ChannelKeys) RevocationBasePoint() *btcec.PublicKey { return c.RevocationBase.PubKey() }
func (c *ChannelKeys) PaymentBasePoint() *btcec.PublicKey    { return c.PaymentBase.PubKey() }
func (c *ChannelKeys) DelayedBasePoint() *btcec.PublicKey    { return c.DelayedBase.PubKey() }
func (c *ChannelKeys) HtlcBasePoint() *btcec.PublicKey       { return c.HtlcBase.PubKey() }

// ChannelKeysWithID derives the full key set for the channel identified by
// id0. nonce distinguishes channels that would otherwise share a
// derivation path; per the in-process convention (see SPEC_FULL.md §9),
// callers default nonce to id0's bytes when they don't have one of their
// own. channelValueSat is accepted for parity with the signing contract
// but does not enter the derivation: the Stub phase must already produce
// the same basepoints and commitment seed that the channel uses once
// ReadyChannel installs its real value, or the Stub's
// get_per_commitment_point(0) would disagree with the Ready channel's.
func (k *KeyManager) ChannelKeysWithID(
	id0 [32]byte, nonce []byte, channelValueSat uint64) *ChannelKeys {

	_ = channelValueSat

	if nonce == nil {
		nonce = id0[:]
	}
	tag := "remotesigner/channel|" + hex.EncodeToString(nonce)

	keys := &ChannelKeys{
		FundingKey:     k.scalar(tag + "|funding"),
		RevocationBase: k.scalar(tag + "|revocation"),
		PaymentBase:    k.scalar(tag + "|payment"),
		DelayedBase:    k.scalar(tag + "|delayed-payment"),
		HtlcBase:       k.scalar(tag + "|htlc"),
	}
	copy(keys.CommitmentSeed[:], k.expand(tag+"|commitment-seed", 32))

	return keys
}
