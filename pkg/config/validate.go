package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey is returned by Validate when no credential is configured.
var ErrMissingAPIKey = errors.New("provider api key is required")

// Validate checks required fields and value ranges. All problems are
// reported together.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must not be negative"))
	}
	if _, err := c.Server.TrustedPrefixes(); err != nil {
		errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
	}

	envName, known := providerKeyEnv[c.Provider.Name]
	if !known {
		errs = append(errs, fmt.Errorf("provider.name must be %q, %q or %q, got %q",
			ProviderGemini, ProviderOpenAI, ProviderAnthropic, c.Provider.Name))
	}
	if c.Provider.APIKey == "" {
		if known {
			errs = append(errs, fmt.Errorf("%w: set %s or provider.api_key", ErrMissingAPIKey, envName))
		} else {
			errs = append(errs, ErrMissingAPIKey)
		}
	}
	if c.Provider.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("provider.max_tokens must not be negative"))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			errs = append(errs, fmt.Errorf("ratelimit.requests must be > 0, got %d", c.RateLimit.Requests))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, fmt.Errorf("ratelimit.window must be > 0"))
		}
		switch c.RateLimit.Backend {
		case BackendMemory:
		case BackendRedis:
			if c.RateLimit.RedisURL == "" {
				errs = append(errs, fmt.Errorf("ratelimit.redis_url is required when ratelimit.backend is %q", BackendRedis))
			}
		default:
			errs = append(errs, fmt.Errorf("ratelimit.backend must be %q or %q, got %q",
				BackendMemory, BackendRedis, c.RateLimit.Backend))
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
