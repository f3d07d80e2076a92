package channeldb

import "fmt"

var (
	// ErrNodeNotFound is returned when a lookup or update addresses a
	// node_pubkey that has no nodes/<node_pubkey> record.
	ErrNodeNotFound = fmt.Errorf("node not found")

	// ErrNodeExists is returned by CreateNode when node_pubkey already
	// has a record; node identities are immutable once created.
	ErrNodeExists = fmt.Errorf("node already exists")

	// ErrChannelNotFound is returned when a lookup addresses a
	// channel_id0 with no channels/<node_pubkey>/<channel_id0> record.
	ErrChannelNotFound = fmt.Errorf("channel not found")

	// ErrChannelExists reports that channel_id0 already has a record
	// under node_pubkey. SaveChannel overwrites existing records and
	// does not return it.
	ErrChannelExists = fmt.Errorf("channel already exists")
)
