// Package logging builds the per-subsystem loggers used across the
// coordinator, one logrus.Logger per concern the same way the
// original wires up "lcm.db", "lcm.fs", "lcm.msg", "lcm.ROclient".
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Subsystem names, mirroring the original's per-module logger names.
const (
	Dispatch   = "lcm.dispatch"
	Registry   = "lcm.registry"
	Prober     = "lcm.prober"
	RO         = "lcm.ro"
	VCA        = "lcm.vca"
	Db         = "lcm.db"
	Fs         = "lcm.fs"
	Msg        = "lcm.msg"
	WorkflowNS  = "lcm.workflow.ns"
	WorkflowVIM = "lcm.workflow.vim"
	WorkflowSDN = "lcm.workflow.sdn"
	AdminAPI    = "lcm.adminapi"
)

// Config controls format and verbosity for every subsystem logger.
type Config struct {
	Level  string // logrus level name, default "info"
	Format string // "json" or "text", default "text"
}

// Factory hands out one *logrus.Entry per subsystem name, all sharing
// the same level/formatter configuration.
type Factory struct {
	base *logrus.Logger
}

// NewFactory builds a Factory from the given configuration.
func NewFactory(cfg Config) *Factory {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Factory{base: l}
}

// For returns the logger for the named subsystem.
func (f *Factory) For(subsystem string) *logrus.Entry {
	return f.base.WithField("subsystem", subsystem)
}
