package main

import (
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultDataDirname  = "data"
	defaultNetwork      = "testnet"
	defaultRPCPort      = 10019
	defaultLogLevel     = "info"
	appName             = "signerd"
)

func defaultHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "."+appName)
}

// config is signerd's full set of startup parameters, parsed from the
// command line and an optional config file by go-flags the way the
// teacher's daemon loads its own config.
type config struct {
	HomeDir string `long:"homedir" description:"base directory to store the signer's data and logs"`
	DataDir string `long:"datadir" description:"directory to store the signer's bbolt database"`
	LogDir  string `long:"logdir" description:"directory to store signerd's log file"`

	Network string `long:"network" description:"mainnet, testnet, regtest, simnet or signet"`

	RPCListen string `long:"rpclisten" description:"host:port to listen for signer clients on"`

	DebugLevel string `long:"debuglevel" description:"logging level for all subsystems"`

	TLSCertPath string `long:"tlscertpath" description:"path to write the self-signed TLS certificate to"`
	TLSKeyPath  string `long:"tlskeypath" description:"path to write the self-signed TLS private key to"`

	HealthCheckInterval string `long:"healthcheckinterval" description:"how often to probe the persistence backend, e.g. 1m"`
}

func defaultConfig() *config {
	homeDir := defaultHomeDir()
	return &config{
		HomeDir:             homeDir,
		DataDir:             filepath.Join(homeDir, defaultDataDirname),
		LogDir:              filepath.Join(homeDir, "logs"),
		Network:             defaultNetwork,
		RPCListen:           "localhost:10019",
		DebugLevel:          defaultLogLevel,
		TLSCertPath:         filepath.Join(homeDir, "tls.cert"),
		TLSKeyPath:          filepath.Join(homeDir, "tls.key"),
		HealthCheckInterval: "1m",
	}
}

// loadConfig parses the command line into a config seeded with defaults,
// and makes sure every directory it names exists.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.HomeDir, cfg.DataDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	setLogLevels(cfg.DebugLevel)

	return cfg, nil
}
