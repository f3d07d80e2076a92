package policy

import (
	"bytes"

	"github.com/lightninglabs/remotesigner/lnwallet"
	"github.com/lightninglabs/remotesigner/signererror"
)

// holderBalance returns the holder's balance as recorded by info, whichever
// side of the commitment the holder sits on.
func holderBalance(info *lnwallet.CommitmentInfo2) uint64 {
	if info.IsCounterpartyBroadcaster {
		return info.ToCountersignerValueSat
	}
	return info.ToBroadcasterValueSat
}

func counterpartyBalance(info *lnwallet.CommitmentInfo2) uint64 {
	if info.IsCounterpartyBroadcaster {
		return info.ToBroadcasterValueSat
	}
	return info.ToCountersignerValueSat
}

func withinEpsilon(a, b, epsilon uint64) bool {
	var diff uint64
	if a > b {
		diff = a - b
	} else {
		diff = b - a
	}
	return diff <= epsilon
}

// ValidateMutualClose checks a proposed closing transaction's real outputs
// against the channel's last-signed commitments. The transaction itself
// carries outputs, not labels — nothing in a mutual close says which
// output is the holder's and which is the counterparty's, so this tries
// both assignments of outputs to sides (the only two possible for a
// one- or two-output close) and accepts if either resolves cleanly,
// closing the gap a validator that trusts a caller-supplied labeling would
// leave open. When both assignments fail, the forward (unswapped) order's
// error is returned, since it is the canonical ordering BOLT-2 close
// negotiation produces and so the more likely to describe the real defect.
func (v *SimpleValidator) ValidateMutualClose(
	setup *lnwallet.ChannelSetup, state *lnwallet.EnforcementState,
	wallet lnwallet.WalletContext, outputs []*lnwallet.CloseOutput) error {

	switch len(outputs) {
	case 0:
		return signererror.Policy("mutual close carries no outputs")
	case 1:
		if err := v.validateMutualCloseAssignment(
			setup, state, wallet, outputs[0], nil); err == nil {
			return nil
		}
		if err := v.validateMutualCloseAssignment(
			setup, state, wallet, nil, outputs[0]); err == nil {
			return nil
		}
		return v.validateMutualCloseAssignment(setup, state, wallet, outputs[0], nil)
	case 2:
		if err := v.validateMutualCloseAssignment(
			setup, state, wallet, outputs[0], outputs[1]); err == nil {
			return nil
		}
		if err := v.validateMutualCloseAssignment(
			setup, state, wallet, outputs[1], outputs[0]); err == nil {
			return nil
		}
		return v.validateMutualCloseAssignment(setup, state, wallet, outputs[0], outputs[1])
	default:
		return signererror.Policy(
			"mutual close must have one or two outputs, has %d", len(outputs))
	}
}

// validateMutualCloseAssignment checks one candidate holder/counterparty
// labeling of a close transaction's outputs. A close may carry one or two
// outputs; a side whose balance would be dust may be dropped entirely, but
// a side that is present must land within EpsilonSat of what both the
// holder's and the counterparty's most recent commitment agreed it was
// owed, since either commitment could be the one that ends up on chain if
// the close races a unilateral close.
func (v *SimpleValidator) validateMutualCloseAssignment(
	setup *lnwallet.ChannelSetup, state *lnwallet.EnforcementState,
	wallet lnwallet.WalletContext,
	holderOutput, counterpartyOutput *lnwallet.CloseOutput) error {

	if holderOutput == nil && counterpartyOutput == nil {
		return signererror.Policy("mutual close carries no outputs")
	}

	holderCommit := state.CurrentHolderCommitInfo
	counterpartyCommit := state.CurrentCounterpartyCommitInfo
	if holderCommit == nil || counterpartyCommit == nil {
		return signererror.Policy(
			"mutual close requested before both commitments have been signed")
	}
	if holderCommit.NumHTLCs() != 0 || counterpartyCommit.NumHTLCs() != 0 {
		return signererror.Policy(
			"mutual close requested while htlcs are still in flight")
	}

	var holderValue, counterpartyValue uint64
	if holderOutput != nil {
		holderValue = holderOutput.ValueSat
	}
	if counterpartyOutput != nil {
		counterpartyValue = counterpartyOutput.ValueSat
	}

	committed := holderValue + counterpartyValue
	if committed > setup.ChannelValueSat {
		return signererror.Policy(
			"mutual close outputs sum to %d, exceeds channel value %d",
			committed, setup.ChannelValueSat)
	}
	if err := v.Policy.checkFeeWindow(setup.ChannelValueSat - committed); err != nil {
		return err
	}

	if holderOutput != nil {
		if !withinEpsilon(holderValue, holderBalance(holderCommit), v.Policy.EpsilonSat) ||
			!withinEpsilon(holderValue, holderBalance(counterpartyCommit), v.Policy.EpsilonSat) {

			return signererror.Policy(
				"holder close output %d sat is not within %d of either "+
					"commitment's holder balance (holder commit %d, "+
					"counterparty commit %d)", holderValue, v.Policy.EpsilonSat,
				holderBalance(holderCommit), holderBalance(counterpartyCommit))
		}

		if len(setup.HolderShutdownScript) > 0 {
			if !bytes.Equal(holderOutput.PkScript, setup.HolderShutdownScript) {
				return signererror.Policy(
					"holder close output script does not match negotiated " +
						"holder_shutdown_script")
			}
		} else if !wallet.InAllowlist(holderOutput.PkScript) {
			return signererror.Policy(
				"holder close output script is neither the negotiated " +
					"shutdown script nor in the allowlist")
		}
	} else if holderBalance(holderCommit) > MinDustLimitSat ||
		holderBalance(counterpartyCommit) > MinDustLimitSat {

		return signererror.Policy(
			"holder close output omitted but holder balance is above dust")
	}

	if counterpartyOutput != nil {
		if !withinEpsilon(counterpartyValue, counterpartyBalance(holderCommit), v.Policy.EpsilonSat) ||
			!withinEpsilon(counterpartyValue, counterpartyBalance(counterpartyCommit), v.Policy.EpsilonSat) {

			return signererror.Policy(
				"counterparty close output %d sat is not within %d of "+
					"either commitment's counterparty balance", counterpartyValue,
				v.Policy.EpsilonSat)
		}
		if len(setup.CounterpartyShutdownScript) > 0 &&
			!bytes.Equal(counterpartyOutput.PkScript, setup.CounterpartyShutdownScript) {

			return signererror.Policy(
				"counterparty close output script does not match negotiated " +
					"counterparty_shutdown_script")
		}
	} else if counterpartyBalance(holderCommit) > MinDustLimitSat ||
		counterpartyBalance(counterpartyCommit) > MinDustLimitSat {

		return signererror.Policy(
			"counterparty close output omitted but counterparty balance is above dust")
	}

	return nil
}
