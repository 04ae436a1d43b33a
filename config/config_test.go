package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnviron_Defaults(t *testing.T) {
	t.Setenv("PARTICIPANT_ID", "")
	t.Setenv("DISPLAY_NAME", "")

	cfg, err := FromEnviron()

	require.NoError(t, err)
	assert.Equal(t, ":7420", cfg.ListenAddr)
	assert.Equal(t, 100, cfg.BroadcastCapacity)
	assert.Equal(t, 256, cfg.EventCapacity)
	assert.Equal(t, int64(65536), cfg.MaxMessageSize)
	assert.Equal(t, 10*time.Second, cfg.WriteWait)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "_liveshare._tcp", cfg.MDNSService)
	assert.False(t, cfg.MDNSEnabled)
	assert.True(t, cfg.MetricsEnabled)
	assert.True(t, cfg.Color)
	assert.NotEmpty(t, cfg.ParticipantID)
	assert.NotEmpty(t, cfg.DisplayName)
}

func TestFromEnviron_Overrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("PARTICIPANT_ID", "alice")
	t.Setenv("DISPLAY_NAME", "Alice")
	t.Setenv("BROADCAST_CAPACITY", "8")
	t.Setenv("PONG_WAIT", "2s")
	t.Setenv("MDNS_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnviron()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "alice", cfg.ParticipantID)
	assert.Equal(t, "Alice", cfg.DisplayName)
	assert.Equal(t, 8, cfg.BroadcastCapacity)
	assert.Equal(t, 2*time.Second, cfg.PongWait)
	assert.True(t, cfg.MDNSEnabled)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestFromEnviron_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "capacity below one", key: "BROADCAST_CAPACITY", value: "0"},
		{name: "capacity not a number", key: "BROADCAST_CAPACITY", value: "many"},
		{name: "unknown log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "bad duration", key: "WRITE_WAIT", value: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnviron()
			assert.Error(t, err)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for level, want := range tests {
		assert.Equal(t, want, Config{LogLevel: level}.SlogLevel(), level)
	}
}

func TestConfig_AllowedOrigins(t *testing.T) {
	tests := []struct {
		value string
		want  []string
	}{
		{value: "*", want: []string{"*"}},
		{value: "http://a.test, http://b.test", want: []string{"http://a.test", "http://b.test"}},
		{value: "http://a.test,,", want: []string{"http://a.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, Config{CORSOrigins: tt.value}.AllowedOrigins())
		})
	}
}
