package channeldb

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

const typeAllowlistScripts tlv.Type = 0

// serializeAllowlist encodes scripts as a count-prefixed list of
// length-prefixed entries, wrapped as a single opaque tlv field. The list
// itself needs no per-entry typing, only addressing by node_pubkey, so a
// one-field stream is simpler than one tlv record per script.
func serializeAllowlist(scripts [][]byte) ([]byte, error) {
	var buf bytes.Buffer

	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(scripts)))
	if _, err := buf.Write(count[:]); err != nil {
		return nil, err
	}

	for _, script := range scripts {
		var length [2]byte
		binary.BigEndian.PutUint16(length[:], uint16(len(script)))
		if _, err := buf.Write(length[:]); err != nil {
			return nil, err
		}
		if _, err := buf.Write(script); err != nil {
			return nil, err
		}
	}

	body := buf.Bytes()
	return encodeStream(scriptRecord(typeAllowlistScripts, &body))
}

func deserializeAllowlist(data []byte) ([][]byte, error) {
	var body []byte
	if err := decodeStream(data, scriptRecord(typeAllowlistScripts, &body)); err != nil {
		return nil, err
	}

	r := bytes.NewReader(body)

	var count [4]byte
	if _, err := io.ReadFull(r, count[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(count[:])

	scripts := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		var length [2]byte
		if _, err := io.ReadFull(r, length[:]); err != nil {
			return nil, err
		}
		l := binary.BigEndian.Uint16(length[:])

		script := make([]byte, l)
		if _, err := io.ReadFull(r, script); err != nil {
			return nil, err
		}
		scripts = append(scripts, script)
	}

	return scripts, nil
}
