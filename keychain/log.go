package keychain

import (
	"github.com/btcsuite/btclog"
	"github.com/lightninglabs/remotesigner/build"
)

var log btclog.Logger = build.NewSubLogger("KCHN")

// UseLogger lets a daemon entry point redirect this package's log output.
func UseLogger(logger btclog.Logger) {
	log = logger
}
