package main

import (
	"github.com/btcsuite/btclog"
	"github.com/lightninglabs/remotesigner/build"
	"github.com/lightninglabs/remotesigner/channeldb"
	"github.com/lightninglabs/remotesigner/keychain"
	"github.com/lightninglabs/remotesigner/lnwallet"
	"github.com/lightninglabs/remotesigner/policy"
	"github.com/lightninglabs/remotesigner/signer"
)

var log = build.NewSubLogger("SGND")

// subsystemLoggers maps each package's subsystem tag to the UseLogger
// setter that rewires its package-level logger, so signerd can fan one
// --debuglevel flag out to every package this module built its own
// logging convention into.
var subsystemLoggers = map[string]func(btclog.Logger){
	"SGND": UseLogger,
	"SGNR": signer.UseLogger,
	"KCHN": keychain.UseLogger,
	"LNWL": lnwallet.UseLogger,
	"PLCY": policy.UseLogger,
	"CHDB": channeldb.UseLogger,
}

// UseLogger rewires signerd's own top-level logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// setLogLevels installs a fresh logger at level for every registered
// subsystem, called once at startup with the --debuglevel flag's value.
func setLogLevels(levelName string) {
	level, ok := btclog.LevelFromString(levelName)
	if !ok {
		level = btclog.LevelInfo
	}

	for tag, setter := range subsystemLoggers {
		logger := build.NewSubLogger(tag)
		logger.SetLevel(level)
		setter(logger)
	}
}
