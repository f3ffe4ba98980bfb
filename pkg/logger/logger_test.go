package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amoylab/grimrelay/internal/common/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetLogLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"dpanic":  zapcore.DPanicLevel,
		"panic":   zapcore.PanicLevel,
		"fatal":   zapcore.FatalLevel,
		"unknown": zapcore.InfoLevel, // default
	}
	for in, exp := range cases {
		assert.Equal(t, exp, getLogLevel(in), in)
	}
}

func TestSetDefaultsAndNewLogger(t *testing.T) {
	cfg := &config.LoggerConfig{}
	setLoggerDefaults(cfg)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 3, cfg.MaxBackups)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.NotEmpty(t, cfg.TimeZone)
	assert.NotEmpty(t, cfg.TimeFormat)

	assert.Equal(t, "2006-01-02 15:04:05", cfg.TimeFormat)
	assert.NotNil(t, newEncoder(cfg))

	lg, err := NewLogger(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, lg)
}

func TestNewLogger_FileWithStacktrace(t *testing.T) {
	tmp := t.TempDir()
	cfg := &config.LoggerConfig{
		Output:     "file",
		FilePath:   filepath.Join(tmp, "logs", "relay.log"),
		Format:     "console",
		Color:      true,
		Stacktrace: true,
		Level:      "debug",
		TimeZone:   "UTC",
	}

	lg, err := NewLogger(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, lg)

	lg.Debug("debug message")
	lg.Error("error message")

	_, err = os.Stat(filepath.Dir(cfg.FilePath))
	assert.NoError(t, err)
}

func TestWithConnection(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lg := WithConnection(zap.New(core), "c1", "ABC123", "")
	lg.Info("bound")

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "c1", fields["conn_id"])
	assert.Equal(t, "ABC123", fields["session_id"])
	_, hasPlayer := fields["player_id"]
	assert.False(t, hasPlayer)
}

func TestNewLogger_Outputs(t *testing.T) {
	tmp := t.TempDir()

	lg, err := NewLogger(&config.LoggerConfig{Output: OutputStderr})
	assert.NoError(t, err)
	assert.NotNil(t, lg)

	path := filepath.Join(tmp, "both.log")
	lg, err = NewLogger(&config.LoggerConfig{Output: OutputBoth, FilePath: path, TimeZone: "UTC"})
	assert.NoError(t, err)
	lg.Info("written twice")
	_ = lg.Sync()
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "written twice")

	_, err = NewLogger(&config.LoggerConfig{Output: OutputFile})
	assert.ErrorContains(t, err, "needs file_path")

	_, err = NewLogger(&config.LoggerConfig{Output: "syslog"})
	assert.ErrorContains(t, err, "unknown logger output")
}

func TestLoadLocation(t *testing.T) {
	assert.Equal(t, time.Local, loadLocation(""))
	assert.Equal(t, time.Local, loadLocation("Local"))
	assert.Equal(t, time.Local, loadLocation("Not/AZone"))
	assert.Equal(t, "UTC", loadLocation("UTC").String())
}
