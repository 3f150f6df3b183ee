package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palompy/gatekeeper/internal/config"
	"github.com/palompy/gatekeeper/internal/counter"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewCounterBackend_NoURLIsLocalOnly(t *testing.T) {
	backend, closeFn := newCounterBackend(config.RateLimitConfig{}, "development", discardLogger())
	defer closeFn()
	assert.Nil(t, backend)
}

func TestNewCounterBackend_InvalidURLIsLocalOnly(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	backend, closeFn := newCounterBackend(config.RateLimitConfig{
		RedisURL:     "http://:hunter2hunter2@cache:6379",
		RemoteDriver: config.RemoteDriverRESP,
	}, "production", log)
	defer closeFn()

	assert.Nil(t, backend)
	assert.Contains(t, buf.String(), "invalid REDIS_URL")
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestNewCounterBackend_Drivers(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		driver string
		want   any
	}{
		{config.RemoteDriverRESP, &counter.RESPClient{}},
		{config.RemoteDriverGoRedis, &counter.RedisBackend{}},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			backend, closeFn := newCounterBackend(config.RateLimitConfig{
				RedisURL:      "redis://" + mr.Addr(),
				RemoteDriver:  tt.driver,
				RemoteTimeout: time.Second,
			}, "development", discardLogger())
			defer closeFn()

			require.NotNil(t, backend)
			assert.IsType(t, tt.want, backend)

			key := "main-test:" + tt.driver
			n, err := backend.Increment(context.Background(), key, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
			assert.True(t, mr.Exists(key))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("loud"))
}
