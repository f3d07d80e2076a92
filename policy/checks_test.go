package policy

import (
	"testing"

	"github.com/lightninglabs/remotesigner/lnwallet"
)

func testSetup(channelValueSat uint64) *lnwallet.ChannelSetup {
	return &lnwallet.ChannelSetup{
		ChannelValueSat: channelValueSat,
		PushValueMsat:   0,
		IsOutbound:      true,
	}
}

func TestCheckCommitmentCommonDustRejected(t *testing.T) {
	p := MainnetPolicy()
	setup := testSetup(1_000_000)
	info := &lnwallet.CommitmentInfo2{
		ToBroadcasterValueSat:  100, // below MinDustLimitSat
		ToCountersignerValueSat: 998_900,
		FeeratePerKw:           253,
	}
	if err := p.checkCommitmentCommon(setup, lnwallet.ChainState{}, 1, info); err == nil {
		t.Fatalf("expected dust rejection")
	}
}

func TestCheckCommitmentCommonHappyPath(t *testing.T) {
	p := MainnetPolicy()
	setup := testSetup(1_000_000)
	info := &lnwallet.CommitmentInfo2{
		ToBroadcasterValueSat:  499_000,
		ToCountersignerValueSat: 500_000,
		FeeratePerKw:           253,
	}
	if err := p.checkCommitmentCommon(setup, lnwallet.ChainState{}, 1, info); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}

func TestCheckCommitmentCommonTooManyHTLCs(t *testing.T) {
	p := MainnetPolicy()
	p.MaxHTLCs = 1
	setup := testSetup(1_000_000)
	info := &lnwallet.CommitmentInfo2{
		ToBroadcasterValueSat:  400_000,
		ToCountersignerValueSat: 400_000,
		FeeratePerKw:           253,
		OfferedHTLCs: []lnwallet.HTLCInfo2{
			{ValueSat: 100_000, CltvExpiry: 500},
			{ValueSat: 100_000, CltvExpiry: 500},
		},
	}
	if err := p.checkCommitmentCommon(setup, lnwallet.ChainState{}, 1, info); err == nil {
		t.Fatalf("expected max_htlcs rejection")
	}
}

func TestCheckCommitmentCommonFirstCommitmentRejectsHTLCs(t *testing.T) {
	p := MainnetPolicy()
	setup := testSetup(1_000_000)
	info := &lnwallet.CommitmentInfo2{
		ToBroadcasterValueSat:  399_000,
		ToCountersignerValueSat: 400_000,
		FeeratePerKw:           253,
		OfferedHTLCs: []lnwallet.HTLCInfo2{
			{ValueSat: 200_000, CltvExpiry: 500},
		},
	}
	if err := p.checkCommitmentCommon(setup, lnwallet.ChainState{}, 0, info); err == nil {
		t.Fatalf("expected rejection of htlcs on the first commitment")
	}
}

func TestCheckCommitmentCommonFirstCommitmentPushCap(t *testing.T) {
	p := MainnetPolicy()
	setup := testSetup(1_000_000)
	setup.PushValueMsat = 500_000_000 // 500,000 sat pushed to fundee

	info := &lnwallet.CommitmentInfo2{
		IsCounterpartyBroadcaster: false,
		ToBroadcasterValueSat:     399_000,
		ToCountersignerValueSat:   600_000, // fundee (countersigner) above push cap
		FeeratePerKw:              253,
	}
	if err := p.checkCommitmentCommon(setup, lnwallet.ChainState{}, 0, info); err == nil {
		t.Fatalf("expected rejection of fundee value exceeding push_value_msat/1000")
	}

	info.ToCountersignerValueSat = 500_000
	info.ToBroadcasterValueSat = 499_000
	if err := p.checkCommitmentCommon(setup, lnwallet.ChainState{}, 0, info); err != nil {
		t.Fatalf("unexpected rejection at push cap boundary: %v", err)
	}
}

func TestCheckCommitmentCommonHTLCBelowDustFloor(t *testing.T) {
	p := MainnetPolicy()
	setup := testSetup(1_000_000)
	info := &lnwallet.CommitmentInfo2{
		ToBroadcasterValueSat:  400_000,
		ToCountersignerValueSat: 400_000,
		FeeratePerKw:           253,
		OfferedHTLCs: []lnwallet.HTLCInfo2{
			{ValueSat: 546, CltvExpiry: 500}, // exactly the dust limit, below dust+relay-fee floor
		},
	}
	if err := p.checkCommitmentCommon(setup, lnwallet.ChainState{}, 1, info); err == nil {
		t.Fatalf("expected rejection of htlc below dust-plus-relay-fee floor")
	}
}

func TestCheckCommitmentCommonCltvWindow(t *testing.T) {
	p := MainnetPolicy()
	setup := testSetup(602_589)
	chainState := lnwallet.ChainState{CurrentHeight: 1000}
	htlcValue := uint64(MinDustLimitSat) + uint64(p.RelayFeePerKw)*lnwallet.HTLCWeight/1000 + 1000

	info := &lnwallet.CommitmentInfo2{
		ToBroadcasterValueSat:  300_000,
		ToCountersignerValueSat: 300_000,
		FeeratePerKw:           253,
		OfferedHTLCs: []lnwallet.HTLCInfo2{
			{ValueSat: htlcValue, CltvExpiry: 1000 + uint32(p.MinDelay) - 1},
		},
	}
	if err := p.checkCommitmentCommon(setup, chainState, 1, info); err == nil {
		t.Fatalf("expected rejection of htlc cltv_expiry below current_height+min_delay")
	}

	info.OfferedHTLCs[0].CltvExpiry = 1000 + uint32(p.MinDelay)
	if err := p.checkCommitmentCommon(setup, chainState, 1, info); err != nil {
		t.Fatalf("unexpected rejection at cltv window boundary: %v", err)
	}
}
