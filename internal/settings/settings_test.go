package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults when no environment variables are set", func(t *testing.T) {
		s, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "info", s.LogLevel)
		assert.Equal(t, 16, s.DispatchConcurrency)
		assert.Equal(t, 2*time.Second, s.PollInterval)
		assert.False(t, s.UsesRedis())
	})

	t.Run("should read overrides from the TIERWATCH_ prefixed environment", func(t *testing.T) {
		t.Setenv("TIERWATCH_LOG_LEVEL", "debug")
		t.Setenv("TIERWATCH_DISPATCH_CONCURRENCY", "32")
		t.Setenv("TIERWATCH_REDIS_ADDR", "localhost:6379")

		s, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "debug", s.LogLevel)
		assert.Equal(t, 32, s.DispatchConcurrency)
		assert.True(t, s.UsesRedis())
	})
}
