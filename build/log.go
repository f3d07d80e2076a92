// Package build wires up the subsystem logging convention used throughout
// this module: a single btclog.Backend feeding per-package loggers, each
// tagged with a short subsystem code the way the lnd family of daemons does
// (SGNR, KCHN, LNWL, PLCY, CHDB below), so an operator can raise or lower
// verbosity per subsystem without recompiling.
package build

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
)

// LogWriter is an io.Writer that fans log output out to stdout and,
// once SetFile has been called, to a second writer. Nothing in this module
// calls SetFile, so output goes to stdout only.
type LogWriter struct {
	file io.Writer
}

// SetFile directs subsequent log output to w in addition to stdout.
func (w *LogWriter) SetFile(f io.Writer) {
	w.file = f
}

// Write implements io.Writer.
func (w *LogWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.file != nil {
		w.file.Write(p)
	}
	return len(p), nil
}

// Backend is the shared logging backend every subsystem logger is created
// from. Every package in this module declares a package-level `log` variable sourced
// from it via NewSubLogger, plus a `UseLogger` setter so a daemon entry
// point can rewire verbosity per subsystem.
var Backend = btclog.NewBackend(&LogWriter{})

// NewSubLogger returns a logger tagged with the given subsystem code (e.g.
// "SGNR" for package signer, "KCHN" for package keychain), backed by
// Backend.
func NewSubLogger(subsystem string) btclog.Logger {
	return Backend.Logger(subsystem)
}
