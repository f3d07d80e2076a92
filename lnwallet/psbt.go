package lnwallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightninglabs/remotesigner/signererror"
)

// SignPSBTInput signs input idx of packet with key and records the result
// via psbt.Updater.Sign, the PSBT-native alternative to SignFundingInput for
// front ends that assemble a funding transaction as a PSBT (a dual-funded
// open contributing a counterparty UTXO alongside the signer's own,
// following the same Updater.Sign flow chantools' PSBT signer uses). Only
// the P2WPKH and P2SH-P2WPKH cases are handled; packet.Inputs[idx].WitnessUtxo
// must already be populated by the caller assembling the PSBT.
func SignPSBTInput(packet *psbt.Packet, idx int, key *btcec.PrivateKey) error {
	if idx < 0 || idx >= len(packet.Inputs) {
		return signererror.Invalid("psbt input index %d out of range", idx)
	}
	pIn := &packet.Inputs[idx]
	if pIn.WitnessUtxo == nil {
		return signererror.BadFormat("psbt input %d has no witness utxo", idx)
	}
	utxo := pIn.WitnessUtxo

	witnessScript, err := P2WPKHScript(key.PubKey())
	if err != nil {
		return signererror.Wrap(err, "building psbt input %d witness script", idx)
	}

	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx)
	sigHash, err := txscript.CalcWitnessSigHash(
		witnessScript, sigHashes, txscript.SigHashAll, packet.UnsignedTx, idx, utxo.Value,
	)
	if err != nil {
		return signererror.Wrap(err, "psbt input %d sighash", idx)
	}
	sig := ecdsa.Sign(key, sigHash)
	rawSig := append(sig.Serialize(), byte(txscript.SigHashAll))

	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return signererror.Wrap(err, "creating psbt updater")
	}

	// A plain P2WPKH output's pkScript doubles as its own witness
	// program; the PSBT code only wants an explicit witness script for
	// the P2SH-wrapped and bare P2WSH cases, matching the convention
	// chantools' own PSBT signer follows.
	updaterWitnessScript := witnessScript
	if txscript.IsPayToWitnessPubKeyHash(utxo.PkScript) {
		updaterWitnessScript = nil
	}

	status, err := updater.Sign(
		idx, rawSig, key.PubKey().SerializeCompressed(), nil, updaterWitnessScript,
	)
	if err != nil {
		return signererror.Wrap(err, "updating psbt input %d", idx)
	}
	if status != 0 {
		return signererror.New(
			signererror.Internal,
			"psbt updater returned non-success status %d for input %d", status, idx,
		)
	}
	return nil
}
