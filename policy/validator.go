package policy

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/remotesigner/lnwallet"
	"github.com/lightninglabs/remotesigner/signererror"
)

// SimpleValidator is the signer's sole Validator implementation: a pure
// function of its arguments plus a SimplePolicy configuration, holding no
// per-channel state of its own (EnforcementState is threaded through by
// the caller).
type SimpleValidator struct {
	Policy *SimplePolicy
}

// NewSimpleValidator returns a validator bound to policy.
func NewSimpleValidator(policy *SimplePolicy) *SimpleValidator {
	return &SimpleValidator{Policy: policy}
}

var _ lnwallet.Validator = (*SimpleValidator)(nil)

// ValidatorFactory builds a Validator for one channel. Modeled as an
// interface so tests can inject a validator with a non-default policy or
// instrumented behavior without changing signer.Node's construction path.
type ValidatorFactory interface {
	MakeValidator(networkName string, nodeID [33]byte, channelID [32]byte) lnwallet.Validator
}

// SimpleValidatorFactory is the default ValidatorFactory: every channel
// gets a SimpleValidator configured from the network's baked-in policy
// table, ignoring nodeID and channelID (SimplePolicy has no per-channel
// tunables).
type SimpleValidatorFactory struct{}

func (SimpleValidatorFactory) MakeValidator(
	networkName string, nodeID [33]byte, channelID [32]byte) lnwallet.Validator {

	if networkName == "mainnet" {
		return NewSimpleValidator(MainnetPolicy())
	}
	return NewSimpleValidator(TestnetPolicy())
}

func (v *SimpleValidator) ValidateChannelValue(setup *lnwallet.ChannelSetup) error {
	if setup.ChannelValueSat > v.Policy.MaxChannelSizeSat {
		return signererror.Policy(
			"channel_value_sat %d exceeds max_channel_size_sat %d",
			setup.ChannelValueSat, v.Policy.MaxChannelSizeSat)
	}
	return nil
}

func (v *SimpleValidator) ValidateReadyChannel(
	wallet lnwallet.WalletContext, setup *lnwallet.ChannelSetup,
	holderShutdownKeyPath []uint32) error {

	if err := v.Policy.checkContestDelay("holder", setup.HolderSelectedContestDelay); err != nil {
		return err
	}
	if err := v.Policy.checkContestDelay("counterparty", setup.CounterpartySelectedContestDelay); err != nil {
		return err
	}

	if len(setup.HolderShutdownScript) > 0 {
		ok, err := wallet.CanSpend(holderShutdownKeyPath, setup.HolderShutdownScript)
		if err != nil {
			return signererror.Wrap(err, "checking holder shutdown script ownership")
		}
		if !ok && !wallet.InAllowlist(setup.HolderShutdownScript) {
			return signererror.Policy(
				"holder_shutdown_script not derivable from wallet and not in allowlist")
		}
	}
	return nil
}

func (v *SimpleValidator) ValidateCounterpartyCommitmentTx(
	state *lnwallet.EnforcementState, commitNum uint64, point *btcec.PublicKey,
	setup *lnwallet.ChannelSetup, chainState lnwallet.ChainState,
	info *lnwallet.CommitmentInfo2) error {

	if err := v.Policy.checkCommitmentCommon(setup, chainState, commitNum, info); err != nil {
		return err
	}
	if info.ToSelfDelay != setup.HolderSelectedContestDelay {
		return signererror.Policy(
			"counterparty commitment to_self_delay %d != holder_selected_contest_delay %d",
			info.ToSelfDelay, setup.HolderSelectedContestDelay)
	}

	if commitNum > state.NextCounterpartyRevokeNum+1 {
		return signererror.Policy(
			"counterparty commit_num %d is more than one ahead of "+
				"next_counterparty_revoke_num %d", commitNum, state.NextCounterpartyRevokeNum)
	}

	if commitNum+1 == state.NextCounterpartyCommitNum {
		if !point.IsEqual(state.CurrentCounterpartyPoint) {
			return signererror.Policy(
				"retry of counterparty commit %d with a different point "+
					"(commit point mismatch)", commitNum)
		}
		if !info.Equal(state.CurrentCounterpartyCommitInfo) {
			return signererror.Policy(
				"retry of counterparty commit %d with changed info", commitNum)
		}
	}

	return nil
}

func (v *SimpleValidator) ValidateHolderCommitmentTx(
	state *lnwallet.EnforcementState, commitNum uint64, point *btcec.PublicKey,
	setup *lnwallet.ChannelSetup, chainState lnwallet.ChainState,
	info *lnwallet.CommitmentInfo2) error {

	if err := v.Policy.checkCommitmentCommon(setup, chainState, commitNum, info); err != nil {
		return err
	}
	if info.ToSelfDelay != setup.CounterpartySelectedContestDelay {
		return signererror.Policy(
			"holder commitment to_self_delay %d != counterparty_selected_contest_delay %d",
			info.ToSelfDelay, setup.CounterpartySelectedContestDelay)
	}

	isRetry := commitNum+1 == state.NextHolderCommitNum
	if isRetry {
		if state.CurrentHolderCommitInfo != nil && !info.Equal(state.CurrentHolderCommitInfo) {
			return signererror.Policy(
				"retry of holder commit %d with changed info", commitNum)
		}
	} else if state.MutualCloseSigned {
		return signererror.Policy(
			"cannot sign a new holder commitment after mutual close has been signed")
	}

	if commitNum+2 <= state.NextHolderCommitNum {
		return signererror.Policy(
			"cannot re-sign holder commit %d, already revoked "+
				"(next_holder_commit_num=%d)", commitNum, state.NextHolderCommitNum)
	}

	return nil
}

func (v *SimpleValidator) ValidateCounterpartyRevocation(
	state *lnwallet.EnforcementState, revokeNum uint64, secret [32]byte,
	point *btcec.PublicKey) error {

	switch revokeNum {
	case state.NextCounterpartyRevokeNum:
	case state.NextCounterpartyRevokeNum - 1:
		if state.NextCounterpartyRevokeNum == 0 {
			return signererror.Policy(
				"invalid revoke_num %d, next_counterparty_revoke_num is 0", revokeNum)
		}
	default:
		return signererror.Policy(
			"invalid revoke_num %d, expected %d (or idempotent retry of %d)",
			revokeNum, state.NextCounterpartyRevokeNum, state.NextCounterpartyRevokeNum-1)
	}
	return nil
}

func (v *SimpleValidator) ValidateHtlcTx(
	setup *lnwallet.ChannelSetup, chainState lnwallet.ChainState, isOffered bool,
	htlc *lnwallet.HTLCInfo2, feeratePerKw uint32) error {

	if err := v.Policy.checkFeerateWindow(feeratePerKw); err != nil {
		return err
	}
	if v.Policy.UseChainState && htlc.CltvExpiry <= chainState.CurrentHeight {
		return signererror.Policy(
			"htlc cltv_expiry %d has already passed current height %d",
			htlc.CltvExpiry, chainState.CurrentHeight)
	}
	return nil
}

func (v *SimpleValidator) validateSweepDestination(
	wallet lnwallet.WalletContext, destPath []uint32, destScript []byte) error {

	if len(destPath) > 0 {
		ok, err := wallet.CanSpend(destPath, destScript)
		if err != nil {
			return signererror.Wrap(err, "checking sweep destination ownership")
		}
		if ok {
			return nil
		}
	}
	if wallet.InAllowlist(destScript) {
		return nil
	}
	return signererror.Policy("sweep destination not to wallet or in allowlist")
}

func (v *SimpleValidator) ValidateDelayedSweep(
	setup *lnwallet.ChannelSetup, chainState lnwallet.ChainState, wallet lnwallet.WalletContext,
	destPath []uint32, destScript []byte, lockTime uint32) error {

	if v.Policy.UseChainState && lockTime > chainState.CurrentHeight {
		return signererror.Policy(
			"delayed sweep lock_time %d exceeds current height %d",
			lockTime, chainState.CurrentHeight)
	}
	return v.validateSweepDestination(wallet, destPath, destScript)
}

func (v *SimpleValidator) ValidateCounterpartyHtlcSweep(
	setup *lnwallet.ChannelSetup, chainState lnwallet.ChainState, wallet lnwallet.WalletContext,
	destPath []uint32, destScript []byte, lockTime uint32, htlc *lnwallet.HTLCInfo2) error {

	if lockTime > htlc.CltvExpiry {
		return signererror.Policy(
			"counterparty htlc sweep lock_time %d exceeds htlc cltv_expiry %d",
			lockTime, htlc.CltvExpiry)
	}
	return v.validateSweepDestination(wallet, destPath, destScript)
}

// ValidateOnchainTx delegates to the bound policy's ValidateOnchainTx,
// satisfying lnwallet.Validator for the funding-tx co-sign path the same
// way every other Validate* method here does.
func (v *SimpleValidator) ValidateOnchainTx(
	wallet lnwallet.WalletContext, channelsPerOutput map[int]*lnwallet.FundingOutputChannel,
	tx *wire.MsgTx, inputValuesSat []int64, outputPaths [][]uint32) error {

	return v.Policy.ValidateOnchainTx(wallet, channelsPerOutput, tx, inputValuesSat, outputPaths)
}

func (v *SimpleValidator) ValidateJusticeSweep(
	setup *lnwallet.ChannelSetup, chainState lnwallet.ChainState, wallet lnwallet.WalletContext,
	destPath []uint32, destScript []byte, lockTime uint32) error {

	if v.Policy.UseChainState && lockTime > chainState.CurrentHeight {
		return signererror.Policy(
			"justice sweep lock_time %d exceeds current height %d",
			lockTime, chainState.CurrentHeight)
	}
	return v.validateSweepDestination(wallet, destPath, destScript)
}
