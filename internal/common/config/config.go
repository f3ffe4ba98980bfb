package config

import (
	"os"
	"regexp"
	"time"

	"github.com/amoylab/grimrelay/pkg/helper"
	"github.com/amoylab/grimrelay/pkg/trace"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort     = 3000
	DefaultCapacity = 8
)

type (
	// RelayConfig represents the relay server configuration
	RelayConfig struct {
		Port      int             `yaml:"port"`
		PID       string          `yaml:"pid"`
		Logger    LoggerConfig    `yaml:"logger"`
		Session   SessionConfig   `yaml:"session"`
		WebSocket WebSocketConfig `yaml:"websocket"`
		CORS      CORSConfig      `yaml:"cors"`
		Metrics   MetricsConfig   `yaml:"metrics"`
		Tracing   trace.Config    `yaml:"tracing"`
	}

	// SessionConfig represents the session storage configuration
	SessionConfig struct {
		Type            string             `yaml:"type"`             // "memory" or "redis"
		DefaultCapacity int                `yaml:"default_capacity"` // roster bound for host-created sessions
		LocationSeed    int64              `yaml:"location_seed"`    // 0 seeds from the clock
		Redis           SessionRedisConfig `yaml:"redis"`
	}

	// SessionRedisConfig represents the Redis configuration for session storage
	SessionRedisConfig struct {
		ClusterType string `yaml:"cluster_type"` // single, sentinel, cluster
		Addr        string `yaml:"addr"`         // comma or semicolon separated for sentinel/cluster
		MasterName  string `yaml:"master_name"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		Prefix      string `yaml:"prefix"`
	}

	// WebSocketConfig tunes the duplex transport
	WebSocketConfig struct {
		Path             string        `yaml:"path"`
		ReadBufferSize   int           `yaml:"read_buffer_size"`
		WriteBufferSize  int           `yaml:"write_buffer_size"`
		MaxMessageSize   int64         `yaml:"max_message_size"`
		SendQueueSize    int           `yaml:"send_queue_size"`
		WriteWait        time.Duration `yaml:"write_wait"`
		PongWait         time.Duration `yaml:"pong_wait"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	}

	// CORSConfig represents the CORS configuration
	CORSConfig struct {
		AllowOrigins     []string `yaml:"allow_origins"`
		AllowMethods     []string `yaml:"allow_methods"`
		AllowHeaders     []string `yaml:"allow_headers"`
		ExposeHeaders    []string `yaml:"expose_headers"`
		AllowCredentials bool     `yaml:"allow_credentials"`
	}

	// MetricsConfig represents the prometheus configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Path      string    `yaml:"path"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}
)

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*RelayConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg RelayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	cfg.SetDefaults()
	return &cfg, cfgPath, nil
}

// SetDefaults fills zero values with the relay defaults
func (c *RelayConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Session.Type == "" {
		c.Session.Type = "memory"
	}
	if c.Session.DefaultCapacity <= 0 {
		c.Session.DefaultCapacity = DefaultCapacity
	}
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = "grimrelay:"
	}

	ws := &c.WebSocket
	if ws.Path == "" {
		ws.Path = "/ws"
	}
	if ws.ReadBufferSize <= 0 {
		ws.ReadBufferSize = 1024
	}
	if ws.WriteBufferSize <= 0 {
		ws.WriteBufferSize = 1024
	}
	if ws.MaxMessageSize <= 0 {
		ws.MaxMessageSize = 512 * 1024
	}
	if ws.SendQueueSize <= 0 {
		ws.SendQueueSize = 256
	}
	if ws.WriteWait <= 0 {
		ws.WriteWait = 10 * time.Second
	}
	if ws.PongWait <= 0 {
		ws.PongWait = 60 * time.Second
	}
	if ws.HandshakeTimeout <= 0 {
		ws.HandshakeTimeout = 10 * time.Second
	}

	if len(c.CORS.AllowOrigins) == 0 {
		c.CORS.AllowOrigins = []string{"*"}
	}
	if len(c.CORS.AllowMethods) == 0 {
		c.CORS.AllowMethods = []string{"GET", "OPTIONS"}
	}
	if len(c.CORS.AllowHeaders) == 0 {
		c.CORS.AllowHeaders = []string{"Content-Type", "Authorization"}
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "grimrelay"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "grimrelay"
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
