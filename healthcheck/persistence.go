// Package healthcheck wires the signer's persistence backend into a
// periodic liveness observer, so a front end monitoring cmd/signerd finds
// out about a stuck or corrupted bbolt file before the next sign request
// fails on it.
package healthcheck

import (
	"time"

	"github.com/lightningnetwork/lnd/healthcheck"
	"go.etcd.io/bbolt"
)

// pinger is the slice of channeldb.DB a persistence check needs: a
// read-only round trip through the database file. Defined locally so this
// package does not import channeldb (channeldb has no reason to know it is
// being health-checked).
type pinger interface {
	View(fn func(tx *bbolt.Tx) error) error
}

// Config controls how often and how patiently the persistence backend is
// probed, mirroring the knobs cmd/signerd exposes for every other
// healthcheck.Observation in the daemon.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Backoff  time.Duration
	Attempts int
}

// DefaultConfig returns conservative defaults suitable for a local bbolt
// file: checked once a minute, three attempts a second apart before giving
// up.
func DefaultConfig() *Config {
	return &Config{
		Interval: time.Minute,
		Timeout:  5 * time.Second,
		Backoff:  time.Second,
		Attempts: 3,
	}
}

// NewPersistenceObservation builds the healthcheck.Observation that probes
// db with a no-op read transaction on cfg's schedule.
func NewPersistenceObservation(db pinger, cfg *Config) *healthcheck.Observation {
	check := func() error {
		return db.View(func(tx *bbolt.Tx) error { return nil })
	}

	return healthcheck.NewObservation(
		"persistence", check, cfg.Interval, cfg.Timeout, cfg.Backoff, cfg.Attempts,
	)
}

// Monitor runs the persistence observation (and any other observations
// cmd/signerd wants alongside it) on a shared schedule, shutting the
// daemon down via onFailure once every configured attempt has failed.
type Monitor struct {
	inner *healthcheck.Monitor
}

// NewMonitor builds a Monitor over observations, calling onFailure when any
// of them reports the backend unreachable.
func NewMonitor(onFailure func(err error), observations ...*healthcheck.Observation) *Monitor {
	return &Monitor{
		inner: healthcheck.NewMonitor(&healthcheck.Config{
			Checks:   observations,
			Shutdown: onFailure,
		}),
	}
}

// Start begins running every observation on its own schedule.
func (m *Monitor) Start() error {
	return m.inner.Start()
}

// Stop halts all observations.
func (m *Monitor) Stop() error {
	return m.inner.Stop()
}
