package channeldb

import (
	"time"

	"github.com/lightningnetwork/lnd/tlv"
	"github.com/lightninglabs/remotesigner/keychain"
)

const (
	typeNodeSeed               tlv.Type = 0
	typeNodeKeyDerivationStyle tlv.Type = 1
	typeNodeNetwork            tlv.Type = 2
	typeNodeCreatedAt          tlv.Type = 3
)

// NodeEntry is the persisted form of nodes/<node_pubkey>: everything
// restore_node needs to rebuild a KeyManager bit-for-bit identical to the
// one new_node first created, plus the creation timestamp CreateNode stamps
// on first write (informational only; nothing in restore_node depends on
// it).
type NodeEntry struct {
	Seed               keychain.Seed
	KeyDerivationStyle keychain.KeyDerivationStyle
	Network            string
	CreatedAt          time.Time
}

func serializeNodeEntry(e *NodeEntry) ([]byte, error) {
	seed := e.Seed[:]
	style := uint8(e.KeyDerivationStyle)
	network := []byte(e.Network)
	createdAt := uint64(e.CreatedAt.Unix())

	return encodeStream(
		scriptRecord(typeNodeSeed, &seed),
		tlv.MakePrimitiveRecord(typeNodeKeyDerivationStyle, &style),
		scriptRecord(typeNodeNetwork, &network),
		tlv.MakePrimitiveRecord(typeNodeCreatedAt, &createdAt),
	)
}

func deserializeNodeEntry(data []byte) (*NodeEntry, error) {
	var (
		seed      []byte
		style     uint8
		network   []byte
		createdAt uint64
	)

	err := decodeStream(
		data,
		scriptRecord(typeNodeSeed, &seed),
		tlv.MakePrimitiveRecord(typeNodeKeyDerivationStyle, &style),
		scriptRecord(typeNodeNetwork, &network),
		tlv.MakePrimitiveRecord(typeNodeCreatedAt, &createdAt),
	)
	if err != nil {
		return nil, err
	}

	e := &NodeEntry{
		KeyDerivationStyle: keychain.KeyDerivationStyle(style),
		Network:            string(network),
		CreatedAt:          time.Unix(int64(createdAt), 0),
	}
	copy(e.Seed[:], seed)
	return e, nil
}
