package lnwallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/remotesigner/signererror"
)

// SpendType describes how one input of a funding transaction is spent,
// determining which sighash algorithm (legacy or segwit) its signature
// covers. An input the signer has no key for at all (a counterparty's
// coin contributed to a dual-funded open) carries SpendTypeInvalid and is
// left with an empty witness.
type SpendType uint8

const (
	SpendTypeInvalid SpendType = iota
	SpendTypeP2PKH
	SpendTypeP2WPKH
	SpendTypeP2SHP2WPKH
)

// SignFundingInput signs input idx of tx under key, using the sighash
// algorithm spendType selects: legacy for P2PKH, segwit (BIP-143) for
// P2WPKH and its P2SH-wrapped variant. amtSat is the coin being spent's
// value; the scriptPubKey or witness program itself is always derived from
// key, never accepted from a caller, since a front end's idea of what
// script a key locks is not something signing should trust.
func SignFundingInput(
	tx *wire.MsgTx, hc *txscript.TxSigHashes, idx int, amtSat int64,
	spendType SpendType, key *btcec.PrivateKey) (wire.TxWitness, error) {

	switch spendType {
	case SpendTypeP2WPKH, SpendTypeP2SHP2WPKH:
		witnessScript, err := P2WPKHScript(key.PubKey())
		if err != nil {
			return nil, err
		}
		sigHash, err := txscript.CalcWitnessSigHash(
			witnessScript, hc, txscript.SigHashAll, tx, idx, amtSat,
		)
		if err != nil {
			return nil, signererror.Wrap(err, "funding input %d sighash", idx)
		}
		sig := ecdsa.Sign(key, sigHash)
		return wire.TxWitness{
			append(sig.Serialize(), byte(txscript.SigHashAll)),
			key.PubKey().SerializeCompressed(),
		}, nil

	case SpendTypeP2PKH:
		prevScript, err := P2PKHScript(key.PubKey())
		if err != nil {
			return nil, err
		}
		sigHash, err := txscript.CalcSignatureHash(
			prevScript, txscript.SigHashAll, tx, idx,
		)
		if err != nil {
			return nil, signererror.Wrap(err, "funding input %d legacy sighash", idx)
		}
		sig := ecdsa.Sign(key, sigHash)
		sigScript, err := txscript.NewScriptBuilder().
			AddData(append(sig.Serialize(), byte(txscript.SigHashAll))).
			AddData(key.PubKey().SerializeCompressed()).
			Script()
		if err != nil {
			return nil, signererror.Wrap(err, "funding input %d sigscript", idx)
		}
		tx.TxIn[idx].SignatureScript = sigScript
		return nil, nil

	default:
		return nil, signererror.Invalid("funding input %d has invalid spend type", idx)
	}
}
