package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultConfigFile is looked for in the working directory when no path is given.
const DefaultConfigFile = "codecanvas.yaml"

// Load builds the configuration.
//
// The loading order is:
//  1. Built-in defaults
//  2. Config file (explicit path, CODECANVAS_CONFIG, ./codecanvas.yaml)
//  3. envFiles loaded into the process environment (default ".env");
//     variables already set are not overridden
//  4. Environment variable overrides
//  5. Validation
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Defaults()

	if file := discoverConfigFile(path); file != "" {
		values, err := ValuesFromFile(file)
		if err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", file, err)
		}
		cfg = apply(cfg, values)
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := loadEnvFiles(envFiles); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func discoverConfigFile(path string) string {
	if path != "" {
		return path
	}
	if envPath := os.Getenv("CODECANVAS_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// loadEnvFiles loads each existing file. Missing files are skipped.
func loadEnvFiles(files []string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading env file %s: %w", file, err)
		}
	}
	return nil
}

// apply overlays file values on cfg. Absent keys keep their current values.
func apply(cfg Config, v Values) Config {
	server := v.Section("server")
	cfg.Server.Host = server.String("host", cfg.Server.Host)
	cfg.Server.Port = server.Int("port", cfg.Server.Port)
	cfg.Server.ShutdownTimeout = server.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout)
	cfg.Server.AllowedOrigins = server.StringSlice("allowed_origins", cfg.Server.AllowedOrigins)
	cfg.Server.TrustedProxies = server.StringSlice("trusted_proxies", cfg.Server.TrustedProxies)

	provider := v.Section("provider")
	cfg.Provider.Name = provider.String("name", cfg.Provider.Name)
	cfg.Provider.Model = provider.String("model", cfg.Provider.Model)
	cfg.Provider.APIKey = provider.String("api_key", cfg.Provider.APIKey)
	cfg.Provider.BaseURL = provider.String("base_url", cfg.Provider.BaseURL)
	cfg.Provider.MaxTokens = provider.Int("max_tokens", cfg.Provider.MaxTokens)

	rl := v.Section("ratelimit")
	cfg.RateLimit.Enabled = rl.Bool("enabled", cfg.RateLimit.Enabled)
	cfg.RateLimit.Requests = rl.Int("requests", cfg.RateLimit.Requests)
	cfg.RateLimit.Window = rl.Duration("window", cfg.RateLimit.Window)
	cfg.RateLimit.Backend = rl.String("backend", cfg.RateLimit.Backend)
	cfg.RateLimit.RedisURL = rl.String("redis_url", cfg.RateLimit.RedisURL)

	cfg.Log.Level = v.String("log.level", cfg.Log.Level)
	cfg.Log.Format = v.String("log.format", cfg.Log.Format)

	cfg.Observability.Metrics = v.Bool("observability.metrics", cfg.Observability.Metrics)
	cfg.Observability.Tracing = v.Bool("observability.tracing", cfg.Observability.Tracing)
	return cfg
}

// providerKeyEnv maps provider names to their credential variable.
var providerKeyEnv = map[string]string{
	ProviderGemini:    "GEMINI_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODECANVAS_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("CODECANVAS_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("CODECANVAS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CODECANVAS_TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = strings.Split(v, ",")
	}
	if v := os.Getenv("CODECANVAS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if name, ok := providerKeyEnv[cfg.Provider.Name]; ok {
		if v := os.Getenv(name); v != "" {
			cfg.Provider.APIKey = v
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RateLimit.Backend = BackendRedis
		cfg.RateLimit.RedisURL = v
	}
}
