package hook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitHookAllowsWithinBurst(t *testing.T) {
	h := NewRateLimitHook(RateLimitConfig{Rate: 1, Burst: 5, IdleTimeout: time.Minute})
	defer h.Stop()

	client := &Client{ID: "c1"}
	for i := 0; i < 5; i++ {
		assert.NoError(t, h.OnPublish(client, "a/b"))
	}
}

func TestRateLimitHookRejectsOverBurst(t *testing.T) {
	h := NewRateLimitHook(RateLimitConfig{Rate: 0.001, Burst: 2, IdleTimeout: time.Minute})
	defer h.Stop()

	client := &Client{ID: "c1"}
	require.NoError(t, h.OnPublish(client, "a/b"))
	require.NoError(t, h.OnPublish(client, "a/b"))

	err := h.OnPublish(client, "a/b")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestRateLimitHookPerClient(t *testing.T) {
	h := NewRateLimitHook(RateLimitConfig{Rate: 0.001, Burst: 1, IdleTimeout: time.Minute})
	defer h.Stop()

	require.NoError(t, h.OnPublish(&Client{ID: "c1"}, "a/b"))
	assert.ErrorIs(t, h.OnPublish(&Client{ID: "c1"}, "a/b"), ErrRateLimited)

	// a different client has its own bucket
	assert.NoError(t, h.OnPublish(&Client{ID: "c2"}, "a/b"))
}

func TestRateLimitHookDefaults(t *testing.T) {
	h := NewRateLimitHook(RateLimitConfig{})
	defer h.Stop()

	assert.Equal(t, DefaultRateLimitConfig().Rate, h.config.Rate)
	assert.Equal(t, DefaultRateLimitConfig().Burst, h.config.Burst)
	assert.Equal(t, DefaultRateLimitConfig().IdleTimeout, h.config.IdleTimeout)
}

func TestRateLimitHookProvides(t *testing.T) {
	h := NewRateLimitHook(DefaultRateLimitConfig())
	defer h.Stop()

	assert.True(t, h.Provides(OnPublish))
	assert.False(t, h.Provides(OnACLCheck))
}

func TestRateLimitHookStopIdempotent(t *testing.T) {
	h := NewRateLimitHook(DefaultRateLimitConfig())
	require.NoError(t, h.Stop())
	require.NoError(t, h.Stop())
}
