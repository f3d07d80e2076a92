package policy

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/remotesigner/lnwallet"
	"github.com/lightninglabs/remotesigner/signererror"
)

// ValidateOnchainTx checks a transaction the node is about to co-sign that
// is not a commitment, HTLC, sweep or mutual close: typically a funding tx
// spending the node's own wallet UTXOs. Every output must either pay back
// to the wallet (outputPaths[i] non-empty) or be the funding output of a
// channel already known to the signer (channelsPerOutput[i] set).
func (p *SimplePolicy) ValidateOnchainTx(
	wallet lnwallet.WalletContext, channelsPerOutput map[int]*lnwallet.FundingOutputChannel,
	tx *wire.MsgTx, inputValuesSat []int64, outputPaths [][]uint32) error {

	if tx.Version != 2 {
		return signererror.BadFormat("onchain tx version %d, expected 2", tx.Version)
	}
	if len(inputValuesSat) != len(tx.TxIn) {
		return signererror.Invalid(
			"input_values_sat has %d entries, tx has %d inputs",
			len(inputValuesSat), len(tx.TxIn))
	}
	if len(outputPaths) != len(tx.TxOut) {
		return signererror.Invalid(
			"output_paths has %d entries, tx has %d outputs",
			len(outputPaths), len(tx.TxOut))
	}

	var sumIn, sumOut uint64
	for _, v := range inputValuesSat {
		if v < 0 {
			return signererror.Invalid("negative input value %d", v)
		}
		sumIn += uint64(v)
	}
	for _, out := range tx.TxOut {
		if out.Value < 0 {
			return signererror.BadFormat("negative output value %d", out.Value)
		}
		sumOut += uint64(out.Value)
	}
	if sumOut > sumIn {
		return signererror.Policy(
			"onchain tx outputs %d exceed inputs %d", sumOut, sumIn)
	}
	if err := p.checkFeeWindow(sumIn - sumOut); err != nil {
		return err
	}

	for i, out := range tx.TxOut {
		if len(outputPaths[i]) > 0 {
			ok, err := wallet.CanSpend(outputPaths[i], out.PkScript)
			if err != nil {
				return signererror.Wrap(err, "checking onchain output ownership")
			}
			if !ok {
				return signererror.Policy(
					"onchain output %d not spendable under supplied wallet path", i)
			}
			continue
		}

		fc, ok := channelsPerOutput[i]
		if !ok {
			return signererror.Policy(
				"onchain output %d has no wallet path and matches no known "+
					"channel's funding output", i)
		}
		if err := p.checkFundingOutput(fc, out); err != nil {
			return err
		}
	}

	return nil
}

func (p *SimplePolicy) checkFundingOutput(fc *lnwallet.FundingOutputChannel, out *wire.TxOut) error {
	setup := fc.Setup

	if setup.PushValueMsat/1000 > p.MaxPushSat {
		return signererror.Policy(
			"funding output push_value_msat/1000 %d exceeds max_push_sat %d",
			setup.PushValueMsat/1000, p.MaxPushSat)
	}
	if uint64(out.Value) != setup.ChannelValueSat {
		return signererror.Policy(
			"funding output value %d does not match channel_value_sat %d",
			out.Value, setup.ChannelValueSat)
	}

	_, pkScript, err := lnwallet.FundingScript(
		fc.LocalFundingPubKey, setup.CounterpartyPoints.FundingPubKey)
	if err != nil {
		return signererror.Wrap(err, "building expected funding script")
	}
	if !bytes.Equal(out.PkScript, pkScript) {
		return signererror.Policy(
			"funding output script does not match the 2-of-2 funding redeemscript")
	}

	if fc.State.NextHolderCommitNum != 1 {
		return signererror.Policy(
			"funding tx may not be signed before the first holder "+
				"commitment is counter-signed (next_holder_commit_num=%d)",
			fc.State.NextHolderCommitNum)
	}

	return nil
}
