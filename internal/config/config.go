package config

import (
	"fmt"
	"time"

	"github.com/vyrodovalexey/avsecgw/internal/admin"
	"github.com/vyrodovalexey/avsecgw/internal/guard"
	"github.com/vyrodovalexey/avsecgw/internal/keyvault"
	"github.com/vyrodovalexey/avsecgw/internal/middleware"
	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
	"github.com/vyrodovalexey/avsecgw/internal/ratelimit/store"
	"github.com/vyrodovalexey/avsecgw/internal/token"
)

// Block store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the root of the gateway configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Keys      KeysConfig      `yaml:"keys"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Token     TokenConfig     `yaml:"token"`
	Limits    LimitsConfig    `yaml:"limits"`
	CSRF      CSRFConfig      `yaml:"csrf"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	Port           int      `yaml:"port"`
	ReadTimeout    Duration `yaml:"readTimeout"`
	WriteTimeout   Duration `yaml:"writeTimeout"`
	IdleTimeout    Duration `yaml:"idleTimeout"`
	MaxHeaderBytes int      `yaml:"maxHeaderBytes"`

	// ProtectedPaths are path prefixes that require a valid bearer
	// token.
	ProtectedPaths []string `yaml:"protectedPaths"`

	// TrustedProxies are CIDRs or addresses whose X-Forwarded-For
	// headers are honored for client address extraction.
	TrustedProxies []string `yaml:"trustedProxies"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// KeysConfig configures the key vault file locations.
type KeysConfig struct {
	SymmetricKeyFile string   `yaml:"symmetricKeyFile"`
	PrivateKeyFile   string   `yaml:"privateKeyFile"`
	PublicKeyFile    string   `yaml:"publicKeyFile"`
	RotationGrace    Duration `yaml:"rotationGrace"`
}

// RateLimitConfig configures the sliding windows, the flood
// pre-limiter, and the blocklist backend.
type RateLimitConfig struct {
	AddrPerMinute    int      `yaml:"addrPerMinute"`
	SubjectPerMinute int      `yaml:"subjectPerMinute"`
	PenaltyCap       Duration `yaml:"penaltyCap"`

	FloodRPS   int `yaml:"floodRps"`
	FloodBurst int `yaml:"floodBurst"`

	// Store selects the blocklist backend: memory or redis.
	Store string      `yaml:"store"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis blocklist backend.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// MonitorConfig configures the security monitor.
type MonitorConfig struct {
	Capacity int `yaml:"capacity"`

	BruteForceThreshold int      `yaml:"bruteForceThreshold"`
	BruteForceWindow    Duration `yaml:"bruteForceWindow"`
	HighVolumeThreshold int      `yaml:"highVolumeThreshold"`
	HighVolumeWindow    Duration `yaml:"highVolumeWindow"`

	// AutoBlock blocks the offending subject when brute force is
	// detected.
	AutoBlock         bool     `yaml:"autoBlock"`
	AutoBlockDuration Duration `yaml:"autoBlockDuration"`
}

// TokenConfig configures token issuance.
type TokenConfig struct {
	Issuer   string   `yaml:"issuer"`
	Audience string   `yaml:"audience"`
	TTL      Duration `yaml:"ttl"`
}

// LimitsConfig configures request size and content type limits.
type LimitsConfig struct {
	MaxBodyBytes        int64    `yaml:"maxBodyBytes"`
	AllowedContentTypes []string `yaml:"allowedContentTypes"`
}

// CSRFConfig configures double-submit CSRF protection.
type CSRFConfig struct {
	ExemptPaths  []string `yaml:"exemptPaths"`
	CookieSecure bool     `yaml:"cookieSecure"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills in zero fields with default values.
func (c *Config) SetDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.IdleTimeout <= 0 {
		c.Server.IdleTimeout = Duration(120 * time.Second)
	}
	if c.Server.MaxHeaderBytes <= 0 {
		c.Server.MaxHeaderBytes = 1 << 20
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	keys := keyvault.DefaultConfig()
	if c.Keys.SymmetricKeyFile == "" {
		c.Keys.SymmetricKeyFile = keys.SymmetricKeyFile
	}
	if c.Keys.PrivateKeyFile == "" {
		c.Keys.PrivateKeyFile = keys.PrivateKeyFile
	}
	if c.Keys.PublicKeyFile == "" {
		c.Keys.PublicKeyFile = keys.PublicKeyFile
	}
	if c.Keys.RotationGrace <= 0 {
		c.Keys.RotationGrace = Duration(keys.RotationGrace)
	}

	gd := guard.DefaultConfig()
	if c.RateLimit.AddrPerMinute <= 0 {
		c.RateLimit.AddrPerMinute = gd.AddrLimit
	}
	if c.RateLimit.SubjectPerMinute <= 0 {
		c.RateLimit.SubjectPerMinute = gd.SubjectLimit
	}
	if c.RateLimit.PenaltyCap <= 0 {
		c.RateLimit.PenaltyCap = Duration(5 * time.Minute)
	}
	if c.RateLimit.FloodRPS <= 0 {
		c.RateLimit.FloodRPS = 50
	}
	if c.RateLimit.FloodBurst <= 0 {
		c.RateLimit.FloodBurst = 100
	}
	if c.RateLimit.Store == "" {
		c.RateLimit.Store = StoreMemory
	}
	redis := store.DefaultRedisConfig()
	if c.RateLimit.Redis.Address == "" {
		c.RateLimit.Redis.Address = redis.Address
	}
	if c.RateLimit.Redis.Prefix == "" {
		c.RateLimit.Redis.Prefix = redis.Prefix
	}

	if c.Monitor.Capacity <= 0 {
		c.Monitor.Capacity = monitor.DefaultBufferSize
	}
	if c.Monitor.BruteForceThreshold <= 0 {
		c.Monitor.BruteForceThreshold = monitor.BruteForceThreshold
	}
	if c.Monitor.BruteForceWindow <= 0 {
		c.Monitor.BruteForceWindow = Duration(monitor.BruteForceWindow)
	}
	if c.Monitor.HighVolumeThreshold <= 0 {
		c.Monitor.HighVolumeThreshold = monitor.HighVolumeThreshold
	}
	if c.Monitor.HighVolumeWindow <= 0 {
		c.Monitor.HighVolumeWindow = Duration(monitor.HighVolumeWindow)
	}
	if c.Monitor.AutoBlockDuration <= 0 {
		c.Monitor.AutoBlockDuration = Duration(15 * time.Minute)
	}

	td := token.DefaultConfig()
	if c.Token.Issuer == "" {
		c.Token.Issuer = td.Issuer
	}
	if c.Token.Audience == "" {
		c.Token.Audience = td.Audience
	}
	if c.Token.TTL <= 0 {
		c.Token.TTL = Duration(td.TTL)
	}

	if c.Limits.MaxBodyBytes <= 0 {
		c.Limits.MaxBodyBytes = middleware.DefaultMaxBodySize
	}
	if len(c.Limits.AllowedContentTypes) == 0 {
		c.Limits.AllowedContentTypes = []string{
			middleware.ContentTypeJSON,
			middleware.ContentTypeFormURLEncoded,
		}
	}

	if len(c.CSRF.ExemptPaths) == 0 {
		c.CSRF.ExemptPaths = middleware.DefaultCSRFConfig().ExemptPaths
	}
}

// Validate checks the configuration for inconsistencies. It assumes
// SetDefaults has been applied.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.RateLimit.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RateLimit.Redis.Address == "" {
			return fmt.Errorf("rateLimit.redis.address required for redis store")
		}
	default:
		return fmt.Errorf("unknown rateLimit.store %q", c.RateLimit.Store)
	}

	if _, err := observability.NewLogger(c.LogConfig()); err != nil {
		return fmt.Errorf("invalid log configuration: %w", err)
	}

	return nil
}

// LogConfig converts the log section.
func (c *Config) LogConfig() observability.LogConfig {
	return observability.LogConfig{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Output: c.Log.Output,
	}
}

// VaultConfig converts the keys section.
func (c *Config) VaultConfig() *keyvault.Config {
	return &keyvault.Config{
		SymmetricKeyFile: c.Keys.SymmetricKeyFile,
		PrivateKeyFile:   c.Keys.PrivateKeyFile,
		PublicKeyFile:    c.Keys.PublicKeyFile,
		RotationGrace:    c.Keys.RotationGrace.Duration(),
	}
}

// GuardConfig converts the rate limit section into guard windows.
func (c *Config) GuardConfig() *guard.Config {
	return &guard.Config{
		AddrLimit:     c.RateLimit.AddrPerMinute,
		AddrWindow:    time.Minute,
		SubjectLimit:  c.RateLimit.SubjectPerMinute,
		SubjectWindow: time.Minute,
	}
}

// RedisStoreConfig converts the redis subsection.
func (c *Config) RedisStoreConfig() *store.RedisConfig {
	rc := store.DefaultRedisConfig()
	rc.Address = c.RateLimit.Redis.Address
	rc.Password = c.RateLimit.Redis.Password
	rc.DB = c.RateLimit.Redis.DB
	rc.Prefix = c.RateLimit.Redis.Prefix
	return rc
}

// TokenConfig converts the token section.
func (c *Config) TokenConfig() *token.Config {
	return &token.Config{
		TTL:      c.Token.TTL.Duration(),
		Issuer:   c.Token.Issuer,
		Audience: c.Token.Audience,
	}
}

// MonitorOptions converts the monitor section into monitor options.
func (c *Config) MonitorOptions() []monitor.Option {
	return []monitor.Option{
		monitor.WithBufferSize(c.Monitor.Capacity),
		monitor.WithBruteForceLimits(c.Monitor.BruteForceThreshold, c.Monitor.BruteForceWindow.Duration()),
		monitor.WithHighVolumeLimits(c.Monitor.HighVolumeThreshold, c.Monitor.HighVolumeWindow.Duration()),
	}
}

// PipelineConfig converts the limits, CSRF, flood, and protected path
// settings into the middleware pipeline configuration.
func (c *Config) PipelineConfig() *middleware.PipelineConfig {
	return &middleware.PipelineConfig{
		SecurityHeaders: middleware.DefaultSecurityHeadersConfig(),
		CSRF: &middleware.CSRFConfig{
			ExemptPaths:  c.CSRF.ExemptPaths,
			CookieSecure: c.CSRF.CookieSecure,
		},
		Guard: &middleware.GuardConfig{
			ProtectedPaths: c.Server.ProtectedPaths,
		},
		MaxBodySize:         c.Limits.MaxBodyBytes,
		AllowedContentTypes: c.Limits.AllowedContentTypes,
		FloodRPS:            c.RateLimit.FloodRPS,
		FloodBurst:          c.RateLimit.FloodBurst,
	}
}

// AdminConfig converts the server section.
func (c *Config) AdminConfig() *admin.Config {
	return &admin.Config{
		Port:           c.Server.Port,
		Address:        c.Server.Address,
		ReadTimeout:    c.Server.ReadTimeout.Duration(),
		WriteTimeout:   c.Server.WriteTimeout.Duration(),
		IdleTimeout:    c.Server.IdleTimeout.Duration(),
		MaxHeaderBytes: c.Server.MaxHeaderBytes,
	}
}
