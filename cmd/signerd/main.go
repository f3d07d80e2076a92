package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/lightninglabs/remotesigner/channeldb"
	"github.com/lightninglabs/remotesigner/healthcheck"
	"github.com/lightninglabs/remotesigner/signer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownChannel is closed once by the first caller of requestShutdown,
// and selected on by signerdMain's main loop.
var shutdownChannel = make(chan struct{})

var shutdownOnce sync.Once

func requestShutdown() {
	shutdownOnce.Do(func() { close(shutdownChannel) })
}

func main() {
	if err := signerdMain(); err != nil {
		fmt.Fprintf(os.Stderr, "[signerd] %v\n", err)
		os.Exit(1)
	}
}

// signerdMain is the true entry point; factored out of main so deferred
// cleanups still run when a startup step fails partway through.
func signerdMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Infof("signerd starting, network=%s datadir=%s", cfg.Network, cfg.DataDir)

	db, err := channeldb.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening persistence backend: %w", err)
	}
	defer db.Close()

	nodes, err := loadNodes(db)
	if err != nil {
		return fmt.Errorf("restoring nodes: %w", err)
	}
	nodeGauge.Set(float64(len(nodes)))
	defer func() {
		for _, n := range nodes {
			n.Stop()
		}
	}()

	interval, err := time.ParseDuration(cfg.HealthCheckInterval)
	if err != nil {
		interval = time.Minute
	}
	hcCfg := healthcheck.DefaultConfig()
	hcCfg.Interval = interval

	monitor := healthcheck.NewMonitor(
		func(err error) {
			log.Errorf("persistence health check failed permanently: %v", err)
			requestShutdown()
		},
		healthcheck.NewPersistenceObservation(db, hcCfg),
	)
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("starting health monitor: %w", err)
	}
	defer monitor.Stop()

	cert, err := ensureTLSCert(cfg.TLSCertPath, cfg.TLSKeyPath)
	if err != nil {
		return fmt.Errorf("preparing TLS certificate: %w", err)
	}

	srv, err := newRPCServer(cfg, nodes, db, cert)
	if err != nil {
		return fmt.Errorf("starting rpc listener: %w", err)
	}
	defer srv.Stop()

	metricsServer := &http.Server{
		Addr:    "localhost:9092",
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %v", err)
		}
	}()
	defer metricsServer.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-interrupt:
		log.Infof("received interrupt, shutting down")
	case <-shutdownChannel:
		log.Infof("shutdown requested, shutting down")
	}

	return nil
}

// loadNodes restores every node identity persisted in db, the way a daemon
// restart must reconstruct every KeyManager and ChannelSlot without ever
// asking the operator for their seed again.
func loadNodes(db *channeldb.DB) (map[[33]byte]*signer.Node, error) {
	ids, err := db.FetchAllNodeIDs()
	if err != nil {
		return nil, err
	}

	nodes := make(map[[33]byte]*signer.Node, len(ids))
	for _, id := range ids {
		entry, err := db.FetchNode(id)
		if err != nil {
			return nil, fmt.Errorf("loading node %x: %w", id, err)
		}
		node, err := signer.RestoreNode(id, entry, db)
		if err != nil {
			return nil, fmt.Errorf("restoring node %x: %w", id, err)
		}
		nodes[id] = node
	}
	return nodes, nil
}
