package lnwallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// signWitness produces a DER-encoded, SigHashAll-appended ECDSA signature
// over input inputIndex of tx, spending an output worth amtSat and gated
// by witnessScript — the primitive every witness builder below composes.
func signWitness(
	tx *wire.MsgTx, hc *txscript.TxSigHashes, inputIndex int, amtSat int64,
	witnessScript []byte, key *btcec.PrivateKey) ([]byte, error) {

	return txscript.RawTxInWitnessSignature(
		tx, hc, inputIndex, amtSat, witnessScript, txscript.SigHashAll, key,
	)
}

// CommitSpendTimeout builds the witness for sweeping a to-local output
// after its CSV delay has matured, spending the OP_ELSE branch of
// CommitScriptToSelf with the delayed payment key.
func CommitSpendTimeout(
	tx *wire.MsgTx, hc *txscript.TxSigHashes, inputIndex int, amtSat int64,
	witnessScript []byte, delayedKey *btcec.PrivateKey) (wire.TxWitness, error) {

	sig, err := signWitness(tx, hc, inputIndex, amtSat, witnessScript, delayedKey)
	if err != nil {
		return nil, err
	}

	return wire.TxWitness{sig, nil, witnessScript}, nil
}

// CommitSpendRevoke builds the witness for a justice spend of a breached
// to-local output, spending the OP_IF branch of CommitScriptToSelf with
// the revocation key recovered from the offender's leaked per-commitment
// secret.
func CommitSpendRevoke(
	tx *wire.MsgTx, hc *txscript.TxSigHashes, inputIndex int, amtSat int64,
	witnessScript []byte, revocationKey *btcec.PrivateKey) (wire.TxWitness, error) {

	sig, err := signWitness(tx, hc, inputIndex, amtSat, witnessScript, revocationKey)
	if err != nil {
		return nil, err
	}

	return wire.TxWitness{sig, {1}, witnessScript}, nil
}

// CommitSpendToRemoteConfirmed builds the witness for a to-remote output
// under Anchors, a single CHECKSIGVERIFY gated by a
// one-block relative maturity.
func CommitSpendToRemoteConfirmed(
	tx *wire.MsgTx, hc *txscript.TxSigHashes, inputIndex int, amtSat int64,
	witnessScript []byte, paymentKey *btcec.PrivateKey) (wire.TxWitness, error) {

	sig, err := signWitness(tx, hc, inputIndex, amtSat, witnessScript, paymentKey)
	if err != nil {
		return nil, err
	}

	return wire.TxWitness{sig, witnessScript}, nil
}

// HtlcSpendRevoke builds the witness for a justice spend of a breached
// HTLC output (offered or received), reusing the revocation branch both
// HTLC script templates share.
func HtlcSpendRevoke(
	tx *wire.MsgTx, hc *txscript.TxSigHashes, inputIndex int, amtSat int64,
	witnessScript []byte, revocationKey *btcec.PrivateKey,
	revocationPubKey *btcec.PublicKey) (wire.TxWitness, error) {

	sig, err := signWitness(tx, hc, inputIndex, amtSat, witnessScript, revocationKey)
	if err != nil {
		return nil, err
	}

	return wire.TxWitness{
		sig, revocationPubKey.SerializeCompressed(), witnessScript,
	}, nil
}

// HtlcSpendSuccess builds the witness the receiver of an HTLC uses to
// redeem it with the payment preimage, either directly against the
// offerer's commitment (second-level success transaction) or against the
// offerer's own offered-HTLC branch.
func HtlcSpendSuccess(
	tx *wire.MsgTx, hc *txscript.TxSigHashes, inputIndex int, amtSat int64,
	witnessScript []byte, receiverKey *btcec.PrivateKey,
	paymentPreimage []byte) (wire.TxWitness, error) {

	sig, err := signWitness(tx, hc, inputIndex, amtSat, witnessScript, receiverKey)
	if err != nil {
		return nil, err
	}

	return wire.TxWitness{sig, paymentPreimage, witnessScript}, nil
}

// HtlcSpendTimeout builds the witness the offerer of an HTLC uses to
// reclaim it after its absolute CLTV expiry, against the receiver's own
// received-HTLC branch. The caller must have already set tx.LockTime to
// the HTLC's expiry height and the spending input's sequence to the
// relative maturity the confirmedSpend (anchors) variant requires.
func HtlcSpendTimeout(
	tx *wire.MsgTx, hc *txscript.TxSigHashes, inputIndex int, amtSat int64,
	witnessScript []byte, senderKey *btcec.PrivateKey) (wire.TxWitness, error) {

	sig, err := signWitness(tx, hc, inputIndex, amtSat, witnessScript, senderKey)
	if err != nil {
		return nil, err
	}

	return wire.TxWitness{sig, nil, witnessScript}, nil
}

// SignRawSigHash returns a raw ECDSA signature (no sighash-type byte
// appended) over inputIndex of tx, the form required for the 2-of-2
// funding multisig co-signature and the mutual-close co-signature, which
// the caller assembles into the final witness alongside the counterparty's
// half.
func SignRawSigHash(
	tx *wire.MsgTx, hc *txscript.TxSigHashes, inputIndex int, amtSat int64,
	script []byte, key *btcec.PrivateKey) ([]byte, error) {

	sigHash, err := txscript.CalcWitnessSigHash(
		script, hc, txscript.SigHashAll, tx, inputIndex, amtSat,
	)
	if err != nil {
		return nil, err
	}

	sig := ecdsa.Sign(key, sigHash)
	return sig.Serialize(), nil
}
