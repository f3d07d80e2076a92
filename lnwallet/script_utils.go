package lnwallet

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"golang.org/x/crypto/ripemd160"
)

// ripemd160H returns RIPEMD160(b), the digest BOLT-3's HTLC scripts commit
// to directly (payment_hash is already a SHA-256 digest, so this is not
// Hash160's ripemd160(sha256(.)) composition).
func ripemd160H(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}

// witnessScriptHash generates a pay-to-witness-script-hash public key
// script paying to a version 0 witness program committing to redeemScript.
func witnessScriptHash(redeemScript []byte) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	scriptHash := btcutil.Hash160(redeemScript)
	bldr.AddData(scriptHash)
	return bldr.Script()
}

// genMultiSigScript generates the non-p2sh 2-of-2 multisig redeem script for
// a funding output, with the pubkeys placed in the BOLT-3-mandated
// lexicographic order.
func genMultiSigScript(aPub, bPub []byte) ([]byte, error) {
	if len(aPub) != 33 || len(bPub) != 33 {
		return nil, fmt.Errorf("pubkey size error, compressed pubkeys only")
	}

	if bytes.Compare(aPub, bPub) > 0 {
		aPub, bPub = bPub, aPub
	}

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_2)
	bldr.AddData(aPub)
	bldr.AddData(bPub)
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	return bldr.Script()
}

// FundingScript returns the funding transaction's redeem script and its
// matching p2wsh pkScript for a 2-of-2 channel between localKey and
// remoteKey.
func FundingScript(localKey, remoteKey *btcec.PublicKey) (redeemScript, pkScript []byte, err error) {
	redeemScript, err = genMultiSigScript(
		localKey.SerializeCompressed(), remoteKey.SerializeCompressed(),
	)
	if err != nil {
		return nil, nil, err
	}
	pkScript, err = witnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}
	return redeemScript, pkScript, nil
}

// spendMultiSig returns the witness stack for spending a 2-of-2 funding
// output, ordering the two signatures to match the pubkey order
// genMultiSigScript placed them in.
func spendMultiSig(redeemScript []byte, pubA, sigA, pubB, sigB []byte) [][]byte {
	witness := make([][]byte, 4)
	witness[0] = nil
	if bytes.Compare(pubA, pubB) > 0 {
		witness[1] = sigB
		witness[2] = sigA
	} else {
		witness[1] = sigA
		witness[2] = sigB
	}
	witness[3] = redeemScript
	return witness
}

// CommitScriptToSelf returns the to-local output script of a commitment
// transaction: a revocable delivery to the broadcaster's delayed payment
// key, immediately spendable by the countersigner if it presents the
// revocation key instead.
//
//	OP_IF
//	    <revocation key>
//	OP_ELSE
//	    <csv delay>
//	    OP_CHECKSEQUENCEVERIFY
//	    OP_DROP
//	    <delayed key>
//	OP_ENDIF
//	OP_CHECKSIG
func CommitScriptToSelf(csvTimeout uint16, selfKey, revokeKey *btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)
	builder.AddData(revokeKey.SerializeCompressed())
	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(csvTimeout))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(selfKey.SerializeCompressed())
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// CommitScriptAnchor returns the anchor output script: spendable
// immediately by the funder's funding key, or by anyone after a 16-block
// relative delay (letting a party whose commitment never confirms sweep a
// dangling anchor for dust).
//
//	<funding key> OP_CHECKSIG OP_IFDUP
//	OP_NOTIF
//	    OP_16 OP_CHECKSEQUENCEVERIFY
//	OP_ENDIF
func CommitScriptAnchor(fundingKey *btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()

	builder.AddData(fundingKey.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_IFDUP)
	builder.AddOp(txscript.OP_NOTIF)
	builder.AddInt64(16)
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// CommitScriptToRemoteConfirmed returns the Anchors
// to-remote output script: a p2wsh requiring both the countersigner's
// signature and one confirmation (a 1-block relative delay), closing the
// malleability window CPFP-carve-out rules rely on.
//
//	<remote key> OP_CHECKSIGVERIFY
//	OP_1 OP_CHECKSEQUENCEVERIFY
func CommitScriptToRemoteConfirmed(remoteKey *btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()

	builder.AddData(remoteKey.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	builder.AddOp(txscript.OP_1)
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)

	return builder.Script()
}

// senderHTLCScript returns the offered-HTLC output script for the offering
// party's own commitment, per BOLT-3 "offered HTLC": spendable by the
// receiver with the payment preimage, by the receiver with the revocation
// key against a breached commitment, or by the offerer after the HTLC's
// absolute CLTV expiry.
func senderHTLCScript(
	senderHtlcKey, receiverHtlcKey, revocationKey *btcec.PublicKey,
	paymentHash []byte, confirmedSpend bool) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(btcutil.Hash160(revocationKey.SerializeCompressed()))
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddData(receiverHtlcKey.SerializeCompressed())
	builder.AddOp(txscript.OP_SWAP)
	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(32)
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_NOTIF)
	builder.AddOp(txscript.OP_DROP)
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_SWAP)
	builder.AddData(senderHtlcKey.SerializeCompressed())
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(ripemd160H(paymentHash))
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)
	if confirmedSpend {
		builder.AddInt64(1)
		builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
		builder.AddOp(txscript.OP_DROP)
	}
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// receiverHTLCScript returns the received-HTLC output script for the
// receiving party's own commitment: spendable by the receiver with the
// payment preimage after the relative CSV-1 confirmation (anchors) delay,
// by the sender with the revocation key, or by the sender after the
// absolute CLTV expiry.
func receiverHTLCScript(
	cltvExpiry uint32, senderHtlcKey, receiverHtlcKey, revocationKey *btcec.PublicKey,
	paymentHash []byte, confirmedSpend bool) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(btcutil.Hash160(revocationKey.SerializeCompressed()))
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddData(senderHtlcKey.SerializeCompressed())
	builder.AddOp(txscript.OP_SWAP)
	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(32)
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(ripemd160H(paymentHash))
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_SWAP)
	builder.AddData(receiverHtlcKey.SerializeCompressed())
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddOp(txscript.OP_DROP)
	builder.AddInt64(int64(cltvExpiry))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)
	if confirmedSpend {
		builder.AddInt64(1)
		builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
		builder.AddOp(txscript.OP_DROP)
	}
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// HTLCScript returns the output script for one HTLC carried by a
// commitment transaction, dispatching to the offered or received template
// and wrapping it as a p2wsh pkScript alongside the witness (redeem)
// script.
func HTLCScript(
	offered bool, confirmedSpend bool, cltvExpiry uint32,
	localHtlcKey, remoteHtlcKey, revocationKey *btcec.PublicKey,
	paymentHash []byte) (witnessScript, pkScript []byte, err error) {

	if offered {
		witnessScript, err = senderHTLCScript(
			localHtlcKey, remoteHtlcKey, revocationKey, paymentHash,
			confirmedSpend,
		)
	} else {
		witnessScript, err = receiverHTLCScript(
			cltvExpiry, remoteHtlcKey, localHtlcKey, revocationKey,
			paymentHash, confirmedSpend,
		)
	}
	if err != nil {
		return nil, nil, err
	}

	pkScript, err = witnessScriptHash(witnessScript)
	if err != nil {
		return nil, nil, err
	}
	return witnessScript, pkScript, nil
}

// P2WPKHScript returns the standard p2wpkh pkScript paying to pub, the
// shape Legacy and StaticRemoteKey commitments use for the to-remote
// output.
func P2WPKHScript(pub *btcec.PublicKey) ([]byte, error) {
	pkHash := btcutil.Hash160(pub.SerializeCompressed())
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(pkHash).
		Script()
}

// P2PKHScript returns the standard legacy p2pkh pkScript paying to pub,
// the scriptPubKey a SpendTypeP2PKH funding input's signature hash is
// calculated against.
func P2PKHScript(pub *btcec.PublicKey) ([]byte, error) {
	pkHash := btcutil.Hash160(pub.SerializeCompressed())
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pkHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}
