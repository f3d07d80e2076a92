// Package zpay32 implements the piece of BOLT-11 the signer actually
// needs: the signing digest an invoice's node signature is computed over.
// Parsing, encoding and field-by-field invoice construction live in the
// front-end; the signer only ever sees the already-assembled hrp and data
// part handed to it by sign_invoice.
package zpay32

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// SigningDigest returns the SHA-256 hash an invoice's node signature
// covers: the ASCII human-readable part concatenated with the tagged data
// part repacked from 5-bit groups into bytes. data is the bech32 data part
// excluding the trailing signature field, as assembled by the front end.
func SigningDigest(hrp string, data []byte) ([32]byte, error) {
	for i, group := range data {
		if group > 31 {
			return [32]byte{}, fmt.Errorf(
				"data group %d has value %d, not a 5-bit group", i, group)
		}
	}

	dataBytes, err := bech32.ConvertBits(data, 5, 8, true)
	if err != nil {
		return [32]byte{}, err
	}

	toSign := append([]byte(hrp), dataBytes...)
	return sha256.Sum256(toSign), nil
}
