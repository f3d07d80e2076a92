package channeldb

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/tlv"
)

// Every persisted record in this package is a flat tlv.Stream: a fixed set
// of typed fields, encoded once and read back by type rather than by
// position, so that a future field can be added without breaking records
// written by an older binary (an unknown odd type is skipped on decode, an
// unknown even type is a hard failure, tlv's usual forwards-compatibility
// rule).

func encodeOutpoint(w io.Writer, val interface{}, _ *[8]byte) error {
	op, ok := val.(*wire.OutPoint)
	if !ok {
		return tlv.NewTypeForEncodingErr(val, "*wire.OutPoint")
	}
	if _, err := w.Write(op.Hash[:]); err != nil {
		return err
	}
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], op.Index)
	_, err := w.Write(idx[:])
	return err
}

func decodeOutpoint(r io.Reader, val interface{}, _ *[8]byte, l uint64) error {
	op, ok := val.(*wire.OutPoint)
	if !ok {
		return tlv.NewTypeForDecodingErr(val, "*wire.OutPoint", l, 36)
	}
	if l != 36 {
		return tlv.NewTypeForDecodingErr(val, "*wire.OutPoint", l, 36)
	}
	var buf [36]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	copy(op.Hash[:], buf[:32])
	op.Index = binary.BigEndian.Uint32(buf[32:])
	return nil
}

// outpointRecord builds a record for a wire.OutPoint value field (stored
// inline in its parent struct, not as a pointer).
func outpointRecord(typ tlv.Type, op *wire.OutPoint) tlv.Record {
	return tlv.MakeDynamicRecord(
		typ, op, func() uint64 { return 36 }, encodeOutpoint, decodeOutpoint,
	)
}

func encodePubKey(w io.Writer, val interface{}, _ *[8]byte) error {
	pk, ok := val.(**btcec.PublicKey)
	if !ok {
		return tlv.NewTypeForEncodingErr(val, "*btcec.PublicKey")
	}
	_, err := w.Write((*pk).SerializeCompressed())
	return err
}

func decodePubKey(r io.Reader, val interface{}, _ *[8]byte, l uint64) error {
	pk, ok := val.(**btcec.PublicKey)
	if !ok {
		return tlv.NewTypeForDecodingErr(val, "*btcec.PublicKey", l, 33)
	}
	if l != 33 {
		return tlv.NewTypeForDecodingErr(val, "*btcec.PublicKey", l, 33)
	}
	var buf [33]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	parsed, err := btcec.ParsePubKey(buf[:])
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// pubKeyRecord builds a record for a non-nil public key field. Optional
// pubkey fields (the "previous counterparty point" slot, absent until the
// second commitment) are only added to the stream at all when non-nil; see
// the call sites in channel_record.go.
func pubKeyRecord(typ tlv.Type, pk **btcec.PublicKey) tlv.Record {
	return tlv.MakeDynamicRecord(
		typ, pk, func() uint64 { return 33 }, encodePubKey, decodePubKey,
	)
}

func scriptRecord(typ tlv.Type, script *[]byte) tlv.Record {
	return tlv.MakeDynamicRecord(
		typ, script,
		func() uint64 { return uint64(len(*script)) },
		tlv.EVarBytes, tlv.DVarBytes,
	)
}

// blobRecord wraps an already-serialized nested record (a CommitmentInfo2
// sub-stream, for instance) as an opaque variable-length field of the
// enclosing stream.
func blobRecord(typ tlv.Type, blob *[]byte) tlv.Record {
	return tlv.MakeDynamicRecord(
		typ, blob,
		func() uint64 { return uint64(len(*blob)) },
		tlv.EVarBytes, tlv.DVarBytes,
	)
}

func encodeStream(records ...tlv.Record) ([]byte, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeStream(data []byte, records ...tlv.Record) error {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}
	return stream.Decode(bytes.NewReader(data))
}
