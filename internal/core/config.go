package core

import (
	"github.com/jonboulle/clockwork"

	"github.com/drand/stepout/common/key"
	"github.com/drand/stepout/common/log"
	"github.com/drand/stepout/common/signature"
	"github.com/drand/stepout/internal/net"
)

// ConfigOption is a function that applies a specific setting to a Config.
type ConfigOption func(*Config)

// Archive keeps verified signatures.
type Archive interface {
	Put(sig *signature.Signature) error
}

// Config holds the collaborators of a Manager.
type Config struct {
	transport    net.Transport
	stepOutSrc   StepOutSource
	stepOut      *key.StepOutList
	archive      Archive
	callback     StateCallback
	keyCacheSize int
	logger       log.Logger
	clock        clockwork.Clock
}

// NewConfig returns the config with the default options set and the updated
// values given by the options.
func NewConfig(opts ...ConfigOption) *Config {
	c := &Config{
		keyCacheSize: DefaultKeyCacheSize,
		logger:       log.DefaultLogger(),
		clock:        clockwork.NewRealClock(),
	}
	for i := range opts {
		opts[i](c)
	}
	return c
}

// Logger returns the logger associated with this config.
func (c *Config) Logger() log.Logger {
	return c.logger
}

// WithTransport sets the transport signatures are fetched with.
func WithTransport(t net.Transport) ConfigOption {
	return func(c *Config) {
		c.transport = t
	}
}

// WithStepOutSource sets where ReloadStepOut reads the step-out list from.
func WithStepOutSource(s StepOutSource) ConfigOption {
	return func(c *Config) {
		c.stepOutSrc = s
	}
}

// WithStepOutList sets the step-out list in effect at construction.
func WithStepOutList(l *key.StepOutList) ConfigOption {
	return func(c *Config) {
		c.stepOut = l
	}
}

// WithArchive stores every verified signature in a.
func WithArchive(a Archive) ConfigOption {
	return func(c *Config) {
		c.archive = a
	}
}

// WithStateCallback sets the function notified of request state changes.
func WithStateCallback(cb StateCallback) ConfigOption {
	return func(c *Config) {
		c.callback = cb
	}
}

// WithKeyCacheSize bounds the number of member verification keys kept.
func WithKeyCacheSize(n int) ConfigOption {
	return func(c *Config) {
		c.keyCacheSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) ConfigOption {
	return func(c *Config) {
		c.logger = l
	}
}

// WithClock sets the clock request durations are measured with.
func WithClock(clk clockwork.Clock) ConfigOption {
	return func(c *Config) {
		c.clock = clk
	}
}
