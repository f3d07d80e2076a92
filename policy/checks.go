package policy

import (
	"github.com/lightninglabs/remotesigner/lnwallet"
	"github.com/lightninglabs/remotesigner/signererror"
)

// checkCommitmentCommon applies the checks §4.4 requires of both the
// holder's and the counterparty's commitment, independent of direction:
// dust limits, HTLC count/value limits, and the overall fee window.
func (p *SimplePolicy) checkCommitmentCommon(
	setup *lnwallet.ChannelSetup, chainState lnwallet.ChainState,
	commitNum uint64, info *lnwallet.CommitmentInfo2) error {

	if info.ToBroadcasterValueSat > 0 && info.ToBroadcasterValueSat < MinDustLimitSat {
		return signererror.Policy(
			"to_broadcaster value %d below dust limit %d",
			info.ToBroadcasterValueSat, MinDustLimitSat)
	}
	if info.ToCountersignerValueSat > 0 && info.ToCountersignerValueSat < MinDustLimitSat {
		return signererror.Policy(
			"to_countersigner value %d below dust limit %d",
			info.ToCountersignerValueSat, MinDustLimitSat)
	}

	if info.NumHTLCs() > p.MaxHTLCs {
		return signererror.Policy(
			"commitment carries %d htlcs, exceeds max_htlcs %d",
			info.NumHTLCs(), p.MaxHTLCs)
	}

	htlcDustSat := MinDustLimitSat + uint64(p.RelayFeePerKw)*lnwallet.HTLCWeight/1000
	for _, h := range append(append([]lnwallet.HTLCInfo2{}, info.OfferedHTLCs...), info.ReceivedHTLCs...) {
		if h.ValueSat < htlcDustSat {
			return signererror.Policy(
				"htlc value %d below dust-plus-relay-fee floor %d",
				h.ValueSat, htlcDustSat)
		}
		if p.UseChainState {
			minExpiry := chainState.CurrentHeight + uint32(p.MinDelay)
			maxExpiry := chainState.CurrentHeight + uint32(p.MaxDelay)
			if h.CltvExpiry < minExpiry || h.CltvExpiry > maxExpiry {
				return signererror.Policy(
					"htlc cltv_expiry %d outside allowed window [%d, %d]",
					h.CltvExpiry, minExpiry, maxExpiry)
			}
		}
	}

	if info.TotalHTLCValueSat() > p.MaxHTLCValueSat {
		return signererror.Policy(
			"total htlc value %d exceeds max_htlc_value_sat %d",
			info.TotalHTLCValueSat(), p.MaxHTLCValueSat)
	}

	committed := info.ToBroadcasterValueSat + info.ToCountersignerValueSat +
		info.TotalHTLCValueSat()
	if committed > setup.ChannelValueSat {
		return signererror.Policy(
			"commitment outputs sum to %d, exceeds channel value %d",
			committed, setup.ChannelValueSat)
	}
	fee := setup.ChannelValueSat - committed
	if err := p.checkFeeWindow(fee); err != nil {
		return err
	}

	if commitNum == 0 {
		if info.NumHTLCs() != 0 {
			return signererror.Policy("first commitment may not carry htlcs")
		}
		if setup.IsOutbound {
			fundeeValue := info.ToCountersignerValueSat
			if info.IsCounterpartyBroadcaster {
				fundeeValue = info.ToBroadcasterValueSat
			}
			maxFundee := setup.PushValueMsat / 1000
			if fundeeValue > maxFundee {
				return signererror.Policy(
					"first commitment gives fundee %d sat, exceeds "+
						"push_value_msat/1000 %d", fundeeValue, maxFundee)
			}
		}
	}

	return nil
}

func (p *SimplePolicy) checkFeeWindow(feeSat uint64) error {
	if feeSat < p.MinFeeSat {
		return signererror.Policy(
			"fee below minimum: %d < %d", feeSat, p.MinFeeSat)
	}
	if feeSat > p.MaxFeeSat {
		return signererror.Policy(
			"fee above maximum: %d > %d", feeSat, p.MaxFeeSat)
	}
	return nil
}

func (p *SimplePolicy) checkFeerateWindow(feeratePerKw uint32) error {
	if feeratePerKw < p.MinFeeratePerKw {
		return signererror.Policy(
			"feerate below minimum: %d < %d", feeratePerKw, p.MinFeeratePerKw)
	}
	if feeratePerKw > p.MaxFeeratePerKw {
		return signererror.Policy(
			"feerate above maximum: %d > %d", feeratePerKw, p.MaxFeeratePerKw)
	}
	return nil
}

func (p *SimplePolicy) checkContestDelay(label string, delay uint16) error {
	if delay < p.MinDelay || delay > p.MaxDelay {
		return signererror.Policy(
			"%s contest delay %d outside allowed window [%d, %d]",
			label, delay, p.MinDelay, p.MaxDelay)
	}
	return nil
}
