package keychain

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// P2WPKHScript returns the standard witness-pubkey-hash output script for
// pub, the shape CanSpend checks a candidate output against.
func P2WPKHScript(pub *btcec.PublicKey) ([]byte, error) {
	pkHash := btcutil.Hash160(pub.SerializeCompressed())
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(pkHash).
		Script()
}
