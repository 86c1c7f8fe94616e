package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/wirechat-lite/internal/auth"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	HTTPAddr          string        `mapstructure:"http_addr" yaml:"http_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	AuthTimeout    time.Duration `mapstructure:"auth_timeout" yaml:"auth_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout" yaml:"gateway_timeout"`

	MaxFrameSize       int  `mapstructure:"max_frame_size" yaml:"max_frame_size"`
	MaxMessageLength   int  `mapstructure:"max_message_length" yaml:"max_message_length"`
	OutboxSize         int  `mapstructure:"outbox_size" yaml:"outbox_size"`
	MaxConnections     int  `mapstructure:"max_connections" yaml:"max_connections"`
	RateLimitPerMinute int  `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	MaxAuthAttempts    int  `mapstructure:"max_auth_attempts" yaml:"max_auth_attempts"`
	EchoToSender       bool `mapstructure:"echo_to_sender" yaml:"echo_to_sender"`

	DatabasePath string            `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret    string            `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer    string            `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	TokenTTL     time.Duration     `mapstructure:"token_ttl" yaml:"token_ttl"`
	SeedUsers    []auth.Credential `mapstructure:"seed_users" yaml:"seed_users"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":5555",
		HTTPAddr:           ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		AuthTimeout:        30 * time.Second,
		WriteTimeout:       5 * time.Second,
		GatewayTimeout:     5 * time.Second,
		MaxFrameSize:       4096,
		MaxMessageLength:   1000,
		OutboxSize:         64,
		MaxConnections:     1024,
		RateLimitPerMinute: 120,
		MaxAuthAttempts:    5,
		EchoToSender:       true,
		DatabasePath:       "wirechat.db",
		JWTIssuer:          "wirechat-lite",
		TokenTTL:           24 * time.Hour,
		LogLevel:           "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Booleans are not merged since their zero value is meaningful.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.AuthTimeout != 0 {
		c.AuthTimeout = other.AuthTimeout
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.GatewayTimeout != 0 {
		c.GatewayTimeout = other.GatewayTimeout
	}
	if other.MaxFrameSize != 0 {
		c.MaxFrameSize = other.MaxFrameSize
	}
	if other.MaxMessageLength != 0 {
		c.MaxMessageLength = other.MaxMessageLength
	}
	if other.OutboxSize != 0 {
		c.OutboxSize = other.OutboxSize
	}
	if other.MaxConnections != 0 {
		c.MaxConnections = other.MaxConnections
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.MaxAuthAttempts != 0 {
		c.MaxAuthAttempts = other.MaxAuthAttempts
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.TokenTTL != 0 {
		c.TokenTTL = other.TokenTTL
	}
	if len(other.SeedUsers) > 0 {
		c.SeedUsers = other.SeedUsers
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	positive := map[string]time.Duration{
		"shutdown_timeout": c.ShutdownTimeout,
		"auth_timeout":     c.AuthTimeout,
		"write_timeout":    c.WriteTimeout,
		"gateway_timeout":  c.GatewayTimeout,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.MaxFrameSize < 64 {
		errs = append(errs, fmt.Errorf("max_frame_size must be at least 64, got %d", c.MaxFrameSize))
	}
	if c.MaxMessageLength <= 0 || c.MaxMessageLength > c.MaxFrameSize {
		errs = append(errs, fmt.Errorf("max_message_length must be in (0, max_frame_size], got %d", c.MaxMessageLength))
	}
	if c.OutboxSize <= 0 {
		errs = append(errs, fmt.Errorf("outbox_size must be positive, got %d", c.OutboxSize))
	}
	if c.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("max_connections must be positive, got %d", c.MaxConnections))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_per_minute must not be negative, got %d", c.RateLimitPerMinute))
	}
	if c.MaxAuthAttempts < 0 {
		errs = append(errs, fmt.Errorf("max_auth_attempts must not be negative, got %d", c.MaxAuthAttempts))
	}
	if c.JWTSecret != "" && c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("token_ttl must be positive when jwt_secret is set, got %s", c.TokenTTL))
	}
	return errors.Join(errs...)
}
