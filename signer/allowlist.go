package signer

import (
	"sync"

	"github.com/lightningnetwork/lnd/queue"
)

// allowlistPersister is the slice of channeldb.DB the batcher needs.
type allowlistPersister interface {
	SaveAllowlist(nodeID [33]byte, scripts [][]byte) error
}

// allowlistBatcher coalesces repeated AddAllowlist/RemoveAllowlist calls
// into a single SaveAllowlist write. add_allowlist_entries is called one
// script at a time during a front-end's startup import; writing through to
// disk on every call would fsync once per script instead of once per
// batch. ConcurrentQueue never blocks the caller goroutine, so AddAllowlist
// returns as soon as the in-memory set is updated; the flush runs on a
// dedicated goroutine.
type allowlistBatcher struct {
	nodeID    [33]byte
	persister allowlistPersister

	q *queue.ConcurrentQueue

	quit chan struct{}
	wg   sync.WaitGroup
}

func newAllowlistBatcher(nodeID [33]byte, persister allowlistPersister) *allowlistBatcher {
	b := &allowlistBatcher{
		nodeID:    nodeID,
		persister: persister,
		q:         queue.NewConcurrentQueue(64),
		quit:      make(chan struct{}),
	}
	b.q.Start()
	b.wg.Add(1)
	go b.run()
	return b
}

// flush requests a write of the current allowlist snapshot. scriptsFn is
// called on the batcher goroutine to collect the latest snapshot at flush
// time, so two flushes queued back to back coalesce into one disk write of
// the final state rather than writing each intermediate state.
func (b *allowlistBatcher) flush(scriptsFn func() [][]byte) {
	select {
	case b.q.ChanIn() <- scriptsFn:
	case <-b.quit:
	}
}

func (b *allowlistBatcher) run() {
	defer b.wg.Done()

	for {
		select {
		case item := <-b.q.ChanOut():
			scriptsFn := item.(func() [][]byte)

			// Drain any further pending flushes so a burst of
			// AddAllowlist calls collapses to one write of the
			// latest snapshot.
			for drained := false; !drained; {
				select {
				case item := <-b.q.ChanOut():
					scriptsFn = item.(func() [][]byte)
				default:
					drained = true
				}
			}

			if err := b.persister.SaveAllowlist(b.nodeID, scriptsFn()); err != nil {
				log.Errorf("persisting allowlist for %x: %v", b.nodeID, err)
			}

		case <-b.quit:
			return
		}
	}
}

func (b *allowlistBatcher) stop() {
	close(b.quit)
	b.wg.Wait()
	b.q.Stop()
}
