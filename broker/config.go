package broker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/axmq/axd/hook"
	"github.com/axmq/axd/pkg/logger"
	"github.com/axmq/axd/session"
	"github.com/axmq/axd/store"
	"github.com/axmq/axd/types/message"
)

// Config holds the router's operational policy
type Config struct {
	// MaxInflight caps the per-session outbound QoS1/2 window. A
	// client's ReceiveMaximum can lower it, never raise it.
	MaxInflight uint16

	// MaxPayloadSize rejects publishes with larger payloads
	MaxPayloadSize int

	// MaxClientIDLen rejects connects with longer client IDs
	MaxClientIDLen int

	// MaxQueuedMessages bounds each session's pending queue (0 = unbounded)
	MaxQueuedMessages int

	// RetryInterval is how long an unacknowledged QoS1/2 message waits
	// before being resent with the duplicate flag
	RetryInterval time.Duration

	// MaxRetries caps total delivery attempts for an inflight message
	// before it is abandoned (0 = retry forever)
	MaxRetries int

	// SweepInterval is the period of the keepalive, expiry and
	// retransmission sweep
	SweepInterval time.Duration

	// MaxQoS caps the QoS granted to subscriptions and accepted on
	// publishes
	MaxQoS message.QoS

	// RetainAvailable disables the retained table when false
	RetainAvailable bool

	// MaxRetained bounds the retained table (0 = unbounded)
	MaxRetained int

	// OutboundQueueSize is the capacity of each connection's outbound
	// channel
	OutboundQueueSize int

	// InboundQueueSize is the capacity of the router's event channel
	InboundQueueSize int

	// SessionStore optionally persists durable sessions across restarts
	SessionStore session.Store

	// RetainedBackend optionally persists the retained table
	RetainedBackend store.Backend

	// Hooks supplies authentication and authorization decisions. Nil
	// allows everything.
	Hooks *hook.Manager

	// Logger receives router logs. Nil discards them.
	Logger logger.Logger

	// Registerer receives the router's metrics. Nil uses a private
	// registry.
	Registerer prometheus.Registerer
}

// DefaultConfig returns the default router configuration
func DefaultConfig() Config {
	return Config{
		MaxInflight:       100,
		MaxPayloadSize:    256 * 1024,
		MaxClientIDLen:    256,
		MaxQueuedMessages: 1024,
		RetryInterval:     5 * time.Second,
		MaxRetries:        0,
		SweepInterval:     time.Second,
		MaxQoS:            message.QoS2,
		RetainAvailable:   true,
		MaxRetained:       0,
		OutboundQueueSize: 128,
		InboundQueueSize:  1024,
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	def := DefaultConfig()

	if out.MaxInflight == 0 {
		out.MaxInflight = def.MaxInflight
	}
	if out.MaxPayloadSize <= 0 {
		out.MaxPayloadSize = def.MaxPayloadSize
	}
	if out.MaxClientIDLen <= 0 {
		out.MaxClientIDLen = def.MaxClientIDLen
	}
	if out.RetryInterval <= 0 {
		out.RetryInterval = def.RetryInterval
	}
	if out.SweepInterval <= 0 {
		out.SweepInterval = def.SweepInterval
	}
	if !out.MaxQoS.IsValid() {
		out.MaxQoS = def.MaxQoS
	}
	if out.OutboundQueueSize <= 0 {
		out.OutboundQueueSize = def.OutboundQueueSize
	}
	if out.InboundQueueSize <= 0 {
		out.InboundQueueSize = def.InboundQueueSize
	}
	if out.Hooks == nil {
		out.Hooks = hook.NewManager()
	}
	if out.Logger == nil {
		out.Logger = logger.Nop()
	}
	return out
}
