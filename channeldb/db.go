package channeldb

import (
	"os"
	"path/filepath"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"go.etcd.io/bbolt"
)

const (
	dbName           = "signer.db"
	dbFilePermission = 0600
)

var (
	nodesBucket     = []byte("nodes")
	channelsBucket  = []byte("channels")
	allowlistBucket = []byte("allowlist")
)

// DB is the signer's persistence layer: three top-level buckets holding
// nodes/<node_pubkey>, channels/<node_pubkey>/<channel_id0> and
// allowlist/<node_pubkey> records, each a flat tlv-encoded blob.
type DB struct {
	*bbolt.DB
	dbPath string
	clock  clock.Clock
}

// Open opens (creating if necessary) the signer's bbolt database at dbPath,
// stamping every record it writes with clock.NewDefaultClock()'s wall-clock
// time. Tests that need a fixed or advanceable clock should build a DB
// directly and override the clock field rather than calling Open.
func Open(dbPath string) (*DB, error) {
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(dbPath, dbName)
	bdb, err := bbolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{nodesBucket, channelsBucket, allowlistBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return &DB{DB: bdb, dbPath: dbPath, clock: clock.NewDefaultClock()}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CreateNode writes a brand-new nodes/<nodeID> record. Fails if one already
// exists; node identities never change once created.
func (d *DB) CreateNode(nodeID [33]byte, entry *NodeEntry) error {
	entry.CreatedAt = time.Unix(d.clock.Now().Unix(), 0)
	data, err := serializeNodeEntry(entry)
	if err != nil {
		return err
	}

	return d.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(nodesBucket)
		if bucket.Get(nodeID[:]) != nil {
			return ErrNodeExists
		}
		return bucket.Put(nodeID[:], data)
	})
}

// FetchNode reads the nodes/<nodeID> record.
func (d *DB) FetchNode(nodeID [33]byte) (*NodeEntry, error) {
	var entry *NodeEntry
	err := d.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(nodesBucket).Get(nodeID[:])
		if data == nil {
			return ErrNodeNotFound
		}
		var err error
		entry, err = deserializeNodeEntry(data)
		return err
	})
	return entry, err
}

// FetchAllNodeIDs returns the compressed pubkey of every node with a
// persisted record, for daemon startup to restore each in turn.
func (d *DB) FetchAllNodeIDs() ([][33]byte, error) {
	var ids [][33]byte
	err := d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(nodesBucket).ForEach(func(k, v []byte) error {
			var id [33]byte
			copy(id[:], k)
			ids = append(ids, id)
			return nil
		})
	})
	return ids, err
}

func channelKey(nodeID [33]byte, channelID [32]byte) []byte {
	key := make([]byte, 33+32)
	copy(key, nodeID[:])
	copy(key[33:], channelID[:])
	return key
}

func channelNodePrefix(nodeID [33]byte) []byte {
	return nodeID[:]
}

// SaveChannel writes (creating or overwriting) the
// channels/<nodeID>/<channelID> record.
func (d *DB) SaveChannel(nodeID [33]byte, channelID [32]byte, entry *ChannelEntry) error {
	data, err := serializeChannelEntry(entry)
	if err != nil {
		return err
	}

	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(channelsBucket).Put(channelKey(nodeID, channelID), data)
	})
}

// FetchChannel reads a single channel record.
func (d *DB) FetchChannel(nodeID [33]byte, channelID [32]byte) (*ChannelEntry, error) {
	var entry *ChannelEntry
	err := d.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(channelsBucket).Get(channelKey(nodeID, channelID))
		if data == nil {
			return ErrChannelNotFound
		}
		var err error
		entry, err = deserializeChannelEntry(data)
		return err
	})
	return entry, err
}

// FetchNodeChannels returns every channel record persisted for nodeID, for
// restore_node to rebuild all of a node's ChannelSlots.
func (d *DB) FetchNodeChannels(nodeID [33]byte) (map[[32]byte]*ChannelEntry, error) {
	channels := make(map[[32]byte]*ChannelEntry)
	prefix := channelNodePrefix(nodeID)

	err := d.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(channelsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var channelID [32]byte
			copy(channelID[:], k[33:])

			entry, err := deserializeChannelEntry(v)
			if err != nil {
				return err
			}
			channels[channelID] = entry
		}
		return nil
	})
	return channels, err
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

// SaveAllowlist overwrites the allowlist/<nodeID> record with scripts.
func (d *DB) SaveAllowlist(nodeID [33]byte, scripts [][]byte) error {
	data, err := serializeAllowlist(scripts)
	if err != nil {
		return err
	}
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(allowlistBucket).Put(nodeID[:], data)
	})
}

// FetchAllowlist reads the allowlist/<nodeID> record, returning an empty
// slice (not an error) if none has ever been saved.
func (d *DB) FetchAllowlist(nodeID [33]byte) ([][]byte, error) {
	var scripts [][]byte
	err := d.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(allowlistBucket).Get(nodeID[:])
		if data == nil {
			return nil
		}
		var err error
		scripts, err = deserializeAllowlist(data)
		return err
	})
	return scripts, err
}
