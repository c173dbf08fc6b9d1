package hook

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig controls per-client publish throttling
type RateLimitConfig struct {
	// Rate is the sustained publishes per second allowed per client
	Rate float64
	// Burst is the maximum burst size per client
	Burst int
	// IdleTimeout removes limiters for clients silent this long
	IdleTimeout time.Duration
}

// DefaultRateLimitConfig returns the default rate limiting configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:        100,
		Burst:       200,
		IdleTimeout: 10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitHook throttles publishes per client using a token bucket.
// Each client gets its own limiter; limiters idle past IdleTimeout are
// dropped on the cleanup pass.
type RateLimitHook struct {
	*Base
	config   RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimitHook creates a rate limiting hook with the given configuration
func NewRateLimitHook(config RateLimitConfig) *RateLimitHook {
	if config.Rate <= 0 {
		config.Rate = DefaultRateLimitConfig().Rate
	}
	if config.Burst <= 0 {
		config.Burst = DefaultRateLimitConfig().Burst
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultRateLimitConfig().IdleTimeout
	}

	h := &RateLimitHook{
		Base:     NewBase("ratelimit"),
		config:   config,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}

	go h.cleanupLoop()

	return h
}

// Provides indicates this hook gates publishes
func (h *RateLimitHook) Provides(event Event) bool {
	return event == OnPublish
}

// OnPublish consumes one token from the client's bucket. Clients over
// their rate get ErrRateLimited.
func (h *RateLimitHook) OnPublish(client *Client, topic string) error {
	h.mu.Lock()
	cl, ok := h.limiters[client.ID]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(h.config.Rate), h.config.Burst),
		}
		h.limiters[client.ID] = cl
	}
	cl.lastSeen = time.Now()
	h.mu.Unlock()

	if !cl.limiter.Allow() {
		return ErrRateLimited
	}

	return nil
}

// Stop stops the cleanup goroutine
func (h *RateLimitHook) Stop() error {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	return nil
}

func (h *RateLimitHook) cleanupLoop() {
	ticker := time.NewTicker(h.config.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case now := <-ticker.C:
			h.mu.Lock()
			for id, cl := range h.limiters {
				if now.Sub(cl.lastSeen) > h.config.IdleTimeout {
					delete(h.limiters, id)
				}
			}
			h.mu.Unlock()
		}
	}
}
