package policy

import (
	"testing"

	"github.com/lightninglabs/remotesigner/lnwallet"
)

func testCommitInfo(holderBal, counterpartyBal uint64, counterpartyIsBroadcaster bool) *lnwallet.CommitmentInfo2 {
	info := &lnwallet.CommitmentInfo2{
		IsCounterpartyBroadcaster: counterpartyIsBroadcaster,
		FeeratePerKw:              253,
	}
	if counterpartyIsBroadcaster {
		info.ToBroadcasterValueSat = counterpartyBal
		info.ToCountersignerValueSat = holderBal
	} else {
		info.ToBroadcasterValueSat = holderBal
		info.ToCountersignerValueSat = counterpartyBal
	}
	return info
}

func TestValidateMutualCloseHappyPath(t *testing.T) {
	v := NewSimpleValidator(MainnetPolicy())
	wallet := newFakeWallet()

	setup := &lnwallet.ChannelSetup{ChannelValueSat: 1_000_000}
	state := lnwallet.NewEnforcementState()
	state.CurrentHolderCommitInfo = testCommitInfo(600_000, 399_500, false)
	state.CurrentCounterpartyCommitInfo = testCommitInfo(600_000, 399_500, true)

	holderScript := []byte{0x00, 0x14, 0x01}
	counterpartyScript := []byte{0x00, 0x14, 0x02}
	wallet.allowed[string(holderScript)] = true

	holderOut := &lnwallet.CloseOutput{ValueSat: 600_000, PkScript: holderScript}
	counterpartyOut := &lnwallet.CloseOutput{ValueSat: 399_500, PkScript: counterpartyScript}

	if err := v.ValidateMutualClose(setup, state, wallet, []*lnwallet.CloseOutput{holderOut, counterpartyOut}); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}

func TestValidateMutualCloseRejectsHTLCsInFlight(t *testing.T) {
	v := NewSimpleValidator(MainnetPolicy())
	wallet := newFakeWallet()

	setup := &lnwallet.ChannelSetup{ChannelValueSat: 1_000_000}
	state := lnwallet.NewEnforcementState()
	state.CurrentHolderCommitInfo = testCommitInfo(600_000, 399_500, false)
	state.CurrentHolderCommitInfo.OfferedHTLCs = []lnwallet.HTLCInfo2{{ValueSat: 1000}}
	state.CurrentCounterpartyCommitInfo = testCommitInfo(600_000, 399_500, true)

	holderOut := &lnwallet.CloseOutput{ValueSat: 600_000, PkScript: []byte{0x00}}
	counterpartyOut := &lnwallet.CloseOutput{ValueSat: 399_500, PkScript: []byte{0x01}}

	if err := v.ValidateMutualClose(setup, state, wallet, []*lnwallet.CloseOutput{holderOut, counterpartyOut}); err == nil {
		t.Fatalf("expected rejection: htlcs still in flight")
	}
}

func TestValidateMutualCloseEpsilonMismatch(t *testing.T) {
	v := NewSimpleValidator(MainnetPolicy())
	wallet := newFakeWallet()

	setup := &lnwallet.ChannelSetup{ChannelValueSat: 1_000_000}
	state := lnwallet.NewEnforcementState()
	state.CurrentHolderCommitInfo = testCommitInfo(600_000, 399_500, false)
	state.CurrentCounterpartyCommitInfo = testCommitInfo(600_000, 399_500, true)

	holderScript := []byte{0x00, 0x14, 0x01}
	wallet.allowed[string(holderScript)] = true

	// 50,000 sat off from the committed holder balance, well beyond
	// epsilon_sat.
	holderOut := &lnwallet.CloseOutput{ValueSat: 550_000, PkScript: holderScript}
	counterpartyOut := &lnwallet.CloseOutput{ValueSat: 449_500, PkScript: []byte{0x02}}

	if err := v.ValidateMutualClose(setup, state, wallet, []*lnwallet.CloseOutput{holderOut, counterpartyOut}); err == nil {
		t.Fatalf("expected rejection: holder output outside epsilon of committed balance")
	}
}

func TestValidateMutualCloseShutdownScriptMismatch(t *testing.T) {
	v := NewSimpleValidator(MainnetPolicy())
	wallet := newFakeWallet()

	negotiated := []byte{0x00, 0x14, 0xAA}
	setup := &lnwallet.ChannelSetup{
		ChannelValueSat:       1_000_000,
		HolderShutdownScript:  negotiated,
	}
	state := lnwallet.NewEnforcementState()
	state.CurrentHolderCommitInfo = testCommitInfo(600_000, 399_500, false)
	state.CurrentCounterpartyCommitInfo = testCommitInfo(600_000, 399_500, true)

	wrongScript := []byte{0x00, 0x14, 0xBB}
	wallet.allowed[string(wrongScript)] = true

	holderOut := &lnwallet.CloseOutput{ValueSat: 600_000, PkScript: wrongScript}
	counterpartyOut := &lnwallet.CloseOutput{ValueSat: 399_500, PkScript: []byte{0x02}}

	if err := v.ValidateMutualClose(setup, state, wallet, []*lnwallet.CloseOutput{holderOut, counterpartyOut}); err == nil {
		t.Fatalf("expected rejection: holder output does not match negotiated shutdown script")
	}

	holderOut.PkScript = negotiated
	if err := v.ValidateMutualClose(setup, state, wallet, []*lnwallet.CloseOutput{holderOut, counterpartyOut}); err != nil {
		t.Fatalf("unexpected failure with matching shutdown script: %v", err)
	}
}

func TestValidateMutualCloseOneSidedOutput(t *testing.T) {
	v := NewSimpleValidator(MainnetPolicy())
	wallet := newFakeWallet()

	setup := &lnwallet.ChannelSetup{ChannelValueSat: 1_000_000}
	state := lnwallet.NewEnforcementState()
	state.CurrentHolderCommitInfo = testCommitInfo(999_500, 0, false)
	state.CurrentCounterpartyCommitInfo = testCommitInfo(999_500, 0, true)

	holderScript := []byte{0x00, 0x14, 0x01}
	wallet.allowed[string(holderScript)] = true
	holderOut := &lnwallet.CloseOutput{ValueSat: 999_500, PkScript: holderScript}

	if err := v.ValidateMutualClose(setup, state, wallet, []*lnwallet.CloseOutput{holderOut}); err != nil {
		t.Fatalf("unexpected failure omitting dust counterparty output: %v", err)
	}
}
