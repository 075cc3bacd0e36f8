package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/codecanvas/pkg/config"
)

// isolate clears every variable Load reads and moves into a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, name := range []string{
		"CODECANVAS_CONFIG", "CODECANVAS_PROVIDER", "CODECANVAS_MODEL", "CODECANVAS_PORT",
		"CODECANVAS_LOG_LEVEL", "CODECANVAS_TRUSTED_PROXIES", "GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "REDIS_URL",
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, config.ProviderGemini, cfg.Provider.Name)
	assert.Empty(t, cfg.Provider.Model)
	assert.Equal(t, "gemini-2.5-flash", cfg.Provider.ResolvedModel())
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, config.BackendMemory, cfg.RateLimit.Backend)
	assert.False(t, cfg.APIKeyConfigured())
}

func TestLoad_MissingAPIKey(t *testing.T) {
	isolate(t)

	_, err := config.Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("CODECANVAS_PORT", "9090")
	t.Setenv("CODECANVAS_MODEL", "gemini-2.5-pro")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CODECANVAS_TRUSTED_PROXIES", "10.0.0.0/8,127.0.0.1")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.Provider.APIKey)
	assert.True(t, cfg.APIKeyConfigured())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-pro", cfg.Provider.Model)
	assert.Equal(t, config.BackendRedis, cfg.RateLimit.Backend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RateLimit.RedisURL)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
}

func TestLoad_ProviderSelectsKeyVariable(t *testing.T) {
	isolate(t)
	t.Setenv("CODECANVAS_PROVIDER", "anthropic")
	t.Setenv("GEMINI_API_KEY", "wrong")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.ProviderAnthropic, cfg.Provider.Name)
	assert.Equal(t, "a-key", cfg.Provider.APIKey)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "custom.yaml", `
server:
  port: 8081
  shutdown_timeout: 30
  trusted_proxies: [10.0.0.0/8, 192.168.1.7]
provider:
  name: openai
  model: gpt-4o-mini
  api_key: from-file
ratelimit:
  requests: 10
  window: 30s
log:
  level: debug
  format: json
observability:
  tracing: true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.7"}, cfg.Server.TrustedProxies)
	assert.Equal(t, config.ProviderOpenAI, cfg.Provider.Name)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	assert.Equal(t, "from-file", cfg.Provider.APIKey)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Observability.Tracing)
	assert.True(t, cfg.Observability.Metrics, "unset keys keep defaults")
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoad_DiscoversDefaultFileAndDotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, config.DefaultConfigFile, "server:\n  port: 7000\n")
	writeFile(t, dir, ".env", "GEMINI_API_KEY=dotenv-key\n")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "dotenv-key", cfg.Provider.APIKey)
}

func TestLoad_ConfigEnvVariable(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "elsewhere.json", `{"server":{"port":6000},"provider":{"api_key":"k"}}`)
	t.Setenv("CODECANVAS_CONFIG", path)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.Port)
}

func TestLoad_BadFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("GEMINI_API_KEY", "k")

	_, err := config.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = config.Load(writeFile(t, dir, "cfg.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported config file extension")

	_, err = config.Load(writeFile(t, dir, "broken.yaml", "server: [\n"))
	assert.ErrorContains(t, err, "parse yaml")
}

func TestValidate(t *testing.T) {
	valid := config.Defaults()
	valid.Provider.APIKey = "k"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"port", func(c *config.Config) { c.Server.Port = 0 }, "server.port"},
		{"provider", func(c *config.Config) { c.Provider.Name = "bard" }, "provider.name"},
		{"requests", func(c *config.Config) { c.RateLimit.Requests = 0 }, "ratelimit.requests"},
		{"window", func(c *config.Config) { c.RateLimit.Window = 0 }, "ratelimit.window"},
		{"backend", func(c *config.Config) { c.RateLimit.Backend = "etcd" }, "ratelimit.backend"},
		{"redis url", func(c *config.Config) { c.RateLimit.Backend = config.BackendRedis }, "ratelimit.redis_url"},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"trusted proxy", func(c *config.Config) { c.Server.TrustedProxies = []string{"proxy.internal"} }, "server.trusted_proxies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	disabled := valid
	disabled.RateLimit.Enabled = false
	disabled.RateLimit.Requests = 0
	assert.NoError(t, disabled.Validate(), "limits are not checked when disabled")
}

func TestServerConfig_TrustedPrefixes(t *testing.T) {
	none, err := config.Defaults().Server.TrustedPrefixes()
	require.NoError(t, err)
	assert.Empty(t, none, "no proxy is trusted by default")

	s := config.ServerConfig{TrustedProxies: []string{"10.1.2.3/8", " 192.168.1.7 ", "::1", "::ffff:172.16.0.1"}}
	prefixes, err := s.TrustedPrefixes()
	require.NoError(t, err)
	got := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.7/32", "::1/128", "172.16.0.1/32"}, got)

	_, err = config.ServerConfig{TrustedProxies: []string{"10.0.0.0/33"}}.TrustedPrefixes()
	assert.ErrorContains(t, err, `trusted proxy "10.0.0.0/33"`)
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := config.LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	config.LogConfig{Level: "debug", Format: "text"}.NewLogger(&buf).Debug("dbg")
	assert.Contains(t, buf.String(), "msg=dbg")
}

func TestResolvedModel(t *testing.T) {
	tests := []struct {
		provider config.ProviderConfig
		want     string
	}{
		{config.ProviderConfig{Name: config.ProviderGemini}, "gemini-2.5-flash"},
		{config.ProviderConfig{Name: config.ProviderOpenAI}, "gpt-4o-mini"},
		{config.ProviderConfig{Name: config.ProviderAnthropic}, "claude-sonnet-4-20250514"},
		{config.ProviderConfig{Name: config.ProviderOpenAI, Model: "gpt-4.1"}, "gpt-4.1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.provider.ResolvedModel(), tt.provider.Name)
	}
}
