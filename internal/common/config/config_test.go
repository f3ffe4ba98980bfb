package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("X_A", "va")
	in := []byte("a: ${X_A:da}\nb: ${X_B:db}")
	out := resolveEnv(in)
	assert.Contains(t, string(out), "a: va")
	assert.Contains(t, string(out), "b: db")
}

func TestLoadConfig_Relay(t *testing.T) {
	tmp := t.TempDir()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	_ = os.Chdir(tmp)

	t.Setenv("X_RELAY_PORT", "4100")
	yaml := `
port: ${X_RELAY_PORT:3000}
pid: ${X_PID:/tmp/relay.pid}
session:
  type: redis
  default_capacity: 6
  redis:
    addr: 127.0.0.1:6379
websocket:
  pong_wait: 30s
metrics:
  enabled: true
`
	file := filepath.Join(tmp, "relay.yaml")
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))

	cfg, path, err := LoadConfig("relay.yaml")
	require.NoError(t, err)
	realFile, _ := filepath.EvalSymlinks(file)
	realPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, realFile, realPath)

	assert.Equal(t, 4100, cfg.Port)
	assert.Equal(t, "/tmp/relay.pid", cfg.PID)
	assert.Equal(t, "redis", cfg.Session.Type)
	assert.Equal(t, 6, cfg.Session.DefaultCapacity)
	assert.Equal(t, "127.0.0.1:6379", cfg.Session.Redis.Addr)
	assert.Equal(t, "grimrelay:", cfg.Session.Redis.Prefix)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, 10*time.Second, cfg.WebSocket.WriteWait)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	tmp := t.TempDir()
	_, _, err := LoadConfig(filepath.Join(tmp, "nope.yaml"))
	assert.Error(t, err)
}

func TestSetDefaults(t *testing.T) {
	cfg := &RelayConfig{}
	cfg.SetDefaults()
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "memory", cfg.Session.Type)
	assert.Equal(t, DefaultCapacity, cfg.Session.DefaultCapacity)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
	assert.Equal(t, int64(512*1024), cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, 256, cfg.WebSocket.SendQueueSize)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, "grimrelay", cfg.Metrics.Namespace)
	assert.Equal(t, "grimrelay", cfg.Tracing.ServiceName)
}
