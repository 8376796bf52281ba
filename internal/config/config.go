package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// WebSocket session limits.
	MaxMessageBytes     int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	SendBufferSize      int           `mapstructure:"send_buffer_size" yaml:"send_buffer_size"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	WSMessagesPerSecond float64       `mapstructure:"ws_messages_per_second" yaml:"ws_messages_per_second"`
	WSBurst             int           `mapstructure:"ws_burst" yaml:"ws_burst"`
	RequireWSToken      bool          `mapstructure:"require_ws_token" yaml:"require_ws_token"`

	MembershipCacheTTL time.Duration `mapstructure:"membership_cache_ttl" yaml:"membership_cache_ttl"`

	UploadDir      string `mapstructure:"upload_dir" yaml:"upload_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`

	LiveKitEnabled   bool   `mapstructure:"livekit_enabled" yaml:"livekit_enabled"`
	LiveKitURL       string `mapstructure:"livekit_url" yaml:"livekit_url"`
	LiveKitAPIKey    string `mapstructure:"livekit_api_key" yaml:"livekit_api_key"`
	LiveKitAPISecret string `mapstructure:"livekit_api_secret" yaml:"livekit_api_secret"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",

		DatabasePath: "studyhub.db",

		JWTSecret:   "change-me-in-production",
		JWTIssuer:   "studyhub",
		JWTAudience: "studyhub-clients",
		JWTTTL:      24 * time.Hour,

		MaxMessageBytes:     64 * 1024,
		SendBufferSize:      64,
		WriteTimeout:        10 * time.Second,
		WSMessagesPerSecond: 10,
		WSBurst:             20,

		MembershipCacheTTL: 30 * time.Second,

		UploadDir:      "uploads",
		MaxUploadBytes: 50 << 20,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Boolean switches are only ever turned on.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
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
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.JWTTTL != 0 {
		c.JWTTTL = other.JWTTTL
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.SendBufferSize != 0 {
		c.SendBufferSize = other.SendBufferSize
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.WSMessagesPerSecond != 0 {
		c.WSMessagesPerSecond = other.WSMessagesPerSecond
	}
	if other.WSBurst != 0 {
		c.WSBurst = other.WSBurst
	}
	if other.RequireWSToken {
		c.RequireWSToken = true
	}
	if other.MembershipCacheTTL != 0 {
		c.MembershipCacheTTL = other.MembershipCacheTTL
	}
	if other.UploadDir != "" {
		c.UploadDir = other.UploadDir
	}
	if other.MaxUploadBytes != 0 {
		c.MaxUploadBytes = other.MaxUploadBytes
	}
	if other.LiveKitEnabled {
		c.LiveKitEnabled = true
	}
	if other.LiveKitURL != "" {
		c.LiveKitURL = other.LiveKitURL
	}
	if other.LiveKitAPIKey != "" {
		c.LiveKitAPIKey = other.LiveKitAPIKey
	}
	if other.LiveKitAPISecret != "" {
		c.LiveKitAPISecret = other.LiveKitAPISecret
	}
}
