package signer

import (
	"github.com/btcsuite/btclog"
	"github.com/lightninglabs/remotesigner/build"
)

var log btclog.Logger = build.NewSubLogger("SGNR")

// UseLogger rewires package signer's logger, for cmd/signerd's startup
// verbosity configuration.
func UseLogger(logger btclog.Logger) {
	log = logger
}
