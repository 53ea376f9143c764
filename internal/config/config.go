// Package config loads the server's JSON configuration file. Missing files
// are created with the default values so a freshly unpacked deployment runs
// without any manual setup. Environment variables prefixed with TALKLINE_
// override file values (e.g. TALKLINE_SERVER_PORT=20000).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is the config file used when no explicit path is given.
const DefaultPath = "config.json"

// Config is the root configuration document.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Logging LoggingConfig `mapstructure:"logging"`
	Admin   AdminConfig   `mapstructure:"admin"`
}

// ServerConfig holds the TCP listen endpoint.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ClientConfig holds the endpoint used by the bundled test clients.
type ClientConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the dial address in host:port form.
func (c ClientConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LimitsConfig holds the protocol limits. Timeouts and windows are expressed
// in seconds in the file, matching the documented schema.
type LimitsConfig struct {
	MaxMessageSize             int     `mapstructure:"max_message_size"`
	ReadTimeoutSeconds         float64 `mapstructure:"read_timeout"`
	MaxNameLength              int     `mapstructure:"max_name_length"`
	RateLimitMessagesPerSecond int     `mapstructure:"rate_limit_messages_per_second"`
	RateLimitWindowSeconds     float64 `mapstructure:"rate_limit_window_seconds"`
}

// ReadTimeout returns the name-registration read timeout as a duration.
func (l LimitsConfig) ReadTimeout() time.Duration {
	return time.Duration(l.ReadTimeoutSeconds * float64(time.Second))
}

// RateLimitWindow returns the rate-limit window as a duration.
func (l LimitsConfig) RateLimitWindow() time.Duration {
	return time.Duration(l.RateLimitWindowSeconds * float64(time.Second))
}

// LoggingConfig controls the log level and the optional file sink.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	LogToFile bool   `mapstructure:"log_to_file"`
	LogFile   string `mapstructure:"log_file"`
}

// AdminConfig controls the HTTP endpoint serving statistics, the audit log
// export, and Prometheus metrics.
type AdminConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 10000)

	v.SetDefault("client.host", "127.0.0.1")
	v.SetDefault("client.port", 10000)

	v.SetDefault("limits.max_message_size", 4096)
	v.SetDefault("limits.read_timeout", 30.0)
	v.SetDefault("limits.max_name_length", 50)
	v.SetDefault("limits.rate_limit_messages_per_second", 10)
	v.SetDefault("limits.rate_limit_window_seconds", 1.0)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.log_to_file", false)
	v.SetDefault("logging.log_file", "server.log")

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.listen_addr", "0.0.0.0:10001")
}

// Load reads the config file at path. If the file does not exist it is
// created with the default values and the defaults are returned.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)

	v.SetEnvPrefix("TALKLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		// First run: persist the defaults so operators have a file to edit.
		if werr := v.WriteConfigAs(path); werr != nil {
			return Config{}, fmt.Errorf("config: failed to create %s: %w", path, werr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to unmarshal %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration without touching the filesystem.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
}
