package config

import "time"

// RedisConfig holds connection settings for the external store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// SessionConfig holds session token settings.
type SessionConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`

	// StoreTimeout bounds each store round-trip made by a handler.
	StoreTimeout time.Duration `mapstructure:"store_timeout" yaml:"store_timeout"`
	// KDFIterations is the credential derivation work factor.
	KDFIterations int `mapstructure:"kdf_iterations" yaml:"kdf_iterations"`
	// ServerNick is the nickname on server-sent notices.
	ServerNick string `mapstructure:"server_nick" yaml:"server_nick"`
	// PreviewWorkers bounds concurrent link-preview fetches; 0 disables
	// previews entirely.
	PreviewWorkers int `mapstructure:"preview_workers" yaml:"preview_workers"`
	// WSRateLimit caps inbound events per connection per minute; 0
	// disables the limiter.
	WSRateLimit int `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"`
	// InMemoryStore replaces Redis with the process-local store. Useful
	// for development; state is lost on restart.
	InMemoryStore bool `mapstructure:"in_memory_store" yaml:"in_memory_store"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Session: SessionConfig{
			Secret:   "change-me",
			Issuer:   "chatspace",
			Audience: "chatspace-clients",
			TTL:      24 * time.Hour,
		},
		StoreTimeout:   5 * time.Second,
		KDFIterations:  4096,
		ServerNick:     "server",
		PreviewWorkers: 4,
		WSRateLimit:    120,
	}
}
