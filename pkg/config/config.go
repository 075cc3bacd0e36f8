// Package config loads the CodeCanvas service configuration.
//
// Sources are layered: built-in defaults, a YAML or JSON file, a .env file,
// then environment variables. The result is validated before use.
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	logger := cfg.Log.NewLogger(os.Stderr)
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Provider names.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Rate limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the complete service configuration.
type Config struct {
	Server        ServerConfig
	Provider      ProviderConfig
	RateLimit     RateLimitConfig
	Log           LogConfig
	Observability ObservabilityConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// TrustedProxies lists the proxy addresses or CIDR ranges whose
	// X-Forwarded-For and X-Real-IP headers are believed. Empty means the
	// peer address is always the client.
	TrustedProxies []string
}

// TrustedPrefixes parses TrustedProxies. A bare address is a single-host
// prefix.
func (s ServerConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, entry := range s.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// defaultModels are used when no model is configured.
var defaultModels = map[string]string{
	ProviderGemini:    "gemini-2.5-flash",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-sonnet-4-20250514",
}

// ProviderConfig selects and configures the generation client.
type ProviderConfig struct {
	Name string

	// Model defaults per provider. See ResolvedModel.
	Model   string
	APIKey  string
	BaseURL string

	// MaxTokens caps generated tokens. Zero leaves it to the provider.
	MaxTokens int
}

// RateLimitConfig configures per-address limiting of /api/generate.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
	Backend  string
	RedisURL string
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string
	Format string
}

// ObservabilityConfig toggles engine metrics and tracing.
type ObservabilityConfig struct {
	Metrics bool
	Tracing bool
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Provider: ProviderConfig{
			Name: ProviderGemini,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 5,
			Window:   time.Minute,
			Backend:  BackendMemory,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: true,
		},
	}
}

// ResolvedModel returns Model, or the provider's default model.
func (p ProviderConfig) ResolvedModel() string {
	if p.Model != "" {
		return p.Model
	}
	return defaultModels[p.Name]
}

// APIKeyConfigured reports whether a provider credential is present.
func (c Config) APIKeyConfigured() bool {
	return c.Provider.APIKey != ""
}

// SlogLevel maps Level to a slog.Level. Unknown levels map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a text or JSON slog logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
