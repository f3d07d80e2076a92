package policy

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/remotesigner/lnwallet"
)

func buildFundingTx(values ...int64) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	for _, v := range values {
		tx.AddTxOut(wire.NewTxOut(v, []byte{0x00, 0x14, 0x01}))
	}
	return tx
}

func TestValidateOnchainTxWalletOutput(t *testing.T) {
	p := MainnetPolicy()
	wallet := newFakeWallet()

	tx := buildFundingTx(500_000)
	wallet.spendable[string(tx.TxOut[0].PkScript)] = true

	err := p.ValidateOnchainTx(
		wallet, map[int]*lnwallet.FundingOutputChannel{}, tx,
		[]int64{500_500}, [][]uint32{{0, 0}})
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}

func TestValidateOnchainTxUnknownOutput(t *testing.T) {
	p := MainnetPolicy()
	wallet := newFakeWallet()

	tx := buildFundingTx(500_000)

	err := p.ValidateOnchainTx(
		wallet, map[int]*lnwallet.FundingOutputChannel{}, tx,
		[]int64{500_500}, [][]uint32{nil})
	if err == nil {
		t.Fatalf("expected rejection: output has no wallet path and no matching channel")
	}
}

func TestValidateOnchainTxFundingOutput(t *testing.T) {
	p := MainnetPolicy()
	wallet := newFakeWallet()

	localKey := testPubKey(10)
	remoteKey := testPubKey(11)
	_, pkScript, err := lnwallet.FundingScript(localKey, remoteKey)
	if err != nil {
		t.Fatalf("unable to build funding script: %v", err)
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1_000_000, pkScript))

	setup := &lnwallet.ChannelSetup{
		ChannelValueSat: 1_000_000,
		CounterpartyPoints: lnwallet.ChannelPoints{
			FundingPubKey: remoteKey,
		},
	}
	state := lnwallet.NewEnforcementState()
	state.NextHolderCommitNum = 1

	channels := map[int]*lnwallet.FundingOutputChannel{
		0: {Setup: setup, State: state, LocalFundingPubKey: localKey},
	}

	err = p.ValidateOnchainTx(
		wallet, channels, tx, []int64{1_000_500}, [][]uint32{nil})
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}

func TestValidateOnchainTxFundingOutputRequiresCounterSignedFirstCommit(t *testing.T) {
	p := MainnetPolicy()
	wallet := newFakeWallet()

	localKey := testPubKey(10)
	remoteKey := testPubKey(11)
	_, pkScript, err := lnwallet.FundingScript(localKey, remoteKey)
	if err != nil {
		t.Fatalf("unable to build funding script: %v", err)
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1_000_000, pkScript))

	setup := &lnwallet.ChannelSetup{
		ChannelValueSat: 1_000_000,
		CounterpartyPoints: lnwallet.ChannelPoints{
			FundingPubKey: remoteKey,
		},
	}
	state := lnwallet.NewEnforcementState() // NextHolderCommitNum still 0

	channels := map[int]*lnwallet.FundingOutputChannel{
		0: {Setup: setup, State: state, LocalFundingPubKey: localKey},
	}

	err = p.ValidateOnchainTx(
		wallet, channels, tx, []int64{1_000_500}, [][]uint32{nil})
	if err == nil {
		t.Fatalf("expected rejection: first holder commitment not yet counter-signed")
	}
}

func TestValidateOnchainTxFeeWindow(t *testing.T) {
	p := MainnetPolicy()
	wallet := newFakeWallet()

	tx := buildFundingTx(500_000)
	wallet.spendable[string(tx.TxOut[0].PkScript)] = true

	// inputs - outputs = 50 sat, below min_fee.
	err := p.ValidateOnchainTx(
		wallet, map[int]*lnwallet.FundingOutputChannel{}, tx,
		[]int64{500_050}, [][]uint32{{0}})
	if err == nil {
		t.Fatalf("expected rejection: fee below minimum")
	}
}
