package lnwallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
)

// WalletContext answers the "is this mine" questions a Validator needs
// without lnwallet importing the keychain or the node's allowlist
// directly: whether a script is spendable under a wallet derivation path,
// and whether a script is on the node's allowlist.
type WalletContext interface {
	CanSpend(path []uint32, script []byte) (bool, error)
	InAllowlist(script []byte) bool
}

// Validator is the policy engine every channel sign operation consults
// before touching key material. Defined here, in lnwallet, so that Channel
// can depend on it without importing the concrete policy package;
// implemented by policy.SimpleValidator.
type Validator interface {
	ValidateChannelValue(setup *ChannelSetup) error
	ValidateReadyChannel(wallet WalletContext, setup *ChannelSetup, holderShutdownKeyPath []uint32) error

	ValidateCounterpartyCommitmentTx(
		state *EnforcementState, commitNum uint64, point *btcec.PublicKey,
		setup *ChannelSetup, chainState ChainState, info *CommitmentInfo2) error

	ValidateHolderCommitmentTx(
		state *EnforcementState, commitNum uint64, point *btcec.PublicKey,
		setup *ChannelSetup, chainState ChainState, info *CommitmentInfo2) error

	ValidateCounterpartyRevocation(
		state *EnforcementState, revokeNum uint64, secret [32]byte, point *btcec.PublicKey) error

	ValidateHtlcTx(
		setup *ChannelSetup, chainState ChainState, isOffered bool,
		htlc *HTLCInfo2, feeratePerKw uint32) error

	ValidateDelayedSweep(
		setup *ChannelSetup, chainState ChainState, wallet WalletContext,
		destPath []uint32, destScript []byte, lockTime uint32) error

	ValidateCounterpartyHtlcSweep(
		setup *ChannelSetup, chainState ChainState, wallet WalletContext,
		destPath []uint32, destScript []byte, lockTime uint32, htlc *HTLCInfo2) error

	ValidateJusticeSweep(
		setup *ChannelSetup, chainState ChainState, wallet WalletContext,
		destPath []uint32, destScript []byte, lockTime uint32) error

	ValidateMutualClose(
		setup *ChannelSetup, state *EnforcementState, wallet WalletContext,
		outputs []*CloseOutput) error

	ValidateOnchainTx(
		wallet WalletContext, channelsPerOutput map[int]*FundingOutputChannel,
		tx *wire.MsgTx, inputValuesSat []int64, outputPaths [][]uint32) error
}

// CloseOutput describes one output of a mutual close transaction: its
// value and the script paying it, used by ValidateMutualClose's
// output-assignment resolution.
type CloseOutput struct {
	ValueSat uint64
	PkScript []byte
}

// FundingOutputChannel is what ValidateOnchainTx needs to know about a
// channel whose funding output appears in the transaction under review:
// enough to rebuild the expected p2wsh script and check the channel's
// state is far enough along to be broadcasting its funding tx at all.
// Defined in lnwallet, rather than policy, so the Validator interface can
// reference it without an import cycle.
type FundingOutputChannel struct {
	Setup              *ChannelSetup
	State              *EnforcementState
	LocalFundingPubKey *btcec.PublicKey
}
