package config

import "time"

// CurrentVersion is the configuration file format version
const CurrentVersion = 1

// Config represents the entire server configuration.
// Every field can be set from the YAML file, a WSECHO_* environment variable
// or a command-line flag.
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Echo      EchoConfig      `yaml:"echo"`
	Feed      FeedConfig      `yaml:"feed" envPrefix:"FEED_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Discovery DiscoveryConfig `yaml:"discovery" envPrefix:"MDNS_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig controls the listener and the WebSocket endpoint
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	WSPath          string        `yaml:"ws_path" env:"WS_PATH"`
	Engine          string        `yaml:"engine" env:"ENGINE"`                                              // "gorilla" or "raw"
	AllowedOrigins  []string      `yaml:"allowed_origins,omitempty" env:"ALLOWED_ORIGINS" envSeparator:","` // Hosts allowed besides same-origin; "*" = any
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	CloseTimeout    time.Duration `yaml:"close_timeout" env:"CLOSE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	CaptureDir      string        `yaml:"capture_dir,omitempty" env:"CAPTURE_DIR"`                          // Empty disables message capture
}

// EchoConfig controls message assembly and the reply
type EchoConfig struct {
	Prefix          string `yaml:"prefix" env:"PREFIX"`
	MaxMessageBytes int    `yaml:"max_message_bytes" env:"MAX_MESSAGE_BYTES"`
	ChunkSize       int    `yaml:"chunk_size" env:"CHUNK_SIZE"`
}

// FeedConfig controls the RSS proxy endpoint
type FeedConfig struct {
	URL                 string        `yaml:"url" env:"URL"`
	Path                string        `yaml:"path" env:"PATH"`
	Timeout             time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxBodyBytes        int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host" env:"MAX_IDLE_CONNS_PER_HOST"`
	MaxRetries          int           `yaml:"max_retries" env:"MAX_RETRIES"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// DiscoveryConfig controls the mDNS announcement
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Instance string `yaml:"instance,omitempty" env:"INSTANCE"` // Defaults to the hostname
}

// LogConfig controls logging output
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   // debug, info, warn or error
	Format string `yaml:"format" env:"FORMAT"` // console or json
}

// Default returns a Config with every field set to its default value
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Addr:            ":8080",
			WSPath:          "/ws",
			Engine:          "gorilla",
			IdleTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			CloseTimeout:    5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Echo: EchoConfig{
			Prefix:          "Echo ",
			MaxMessageBytes: 64 * 1024,
			ChunkSize:       4096,
		},
		Feed: FeedConfig{
			URL:                 "http://scripting.com/rss.xml",
			Path:                "/rss",
			Timeout:             10 * time.Second,
			MaxBodyBytes:        4 << 20,
			MaxIdleConnsPerHost: 4,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Discovery: DiscoveryConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
