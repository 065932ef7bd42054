package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "LLM_PROVIDER", "LLM_API_KEY", "GEMINI_API_KEY", "DATABASE_URL", "RATE_LIMITS", "CORS_ORIGINS", "RENDER_TIMEOUT", "LLM_TIMEOUT", "API_URL", "TRUST_PROXY_HEADERS"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.False(t, cfg.Server.TrustProxyHeaders)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "reject", cfg.LLM.Fallback)
	assert.Equal(t, "sqlite:///./diagrams.db", cfg.Database.URL)
	assert.False(t, cfg.Database.IsMongo())
	assert.Equal(t, "200/day,50/hour,20/minute", cfg.RateLimit.Limits)
	assert.Equal(t, 60*time.Second, cfg.Renderer.Timeout)
	assert.Equal(t, "http://localhost:8000", cfg.UI.APIURL)
	assert.Error(t, cfg.ValidateServer())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("DATABASE_URL", "mongodb://localhost:27017")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("RENDER_TIMEOUT", "15")
	t.Setenv("LLM_TIMEOUT", "90s")
	t.Setenv("API_URL", "http://api:8000/")
	t.Setenv("GRAPHVIZ_PATH", "/opt/graphviz/bin")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "key", cfg.LLM.APIKey)
	assert.True(t, cfg.Database.IsMongo())
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORS.Origins)
	assert.Equal(t, 15*time.Second, cfg.Renderer.Timeout)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "http://api:8000", cfg.UI.APIURL)
	assert.Equal(t, []string{"/opt/graphviz/bin"}, cfg.Renderer.SearchPath)
	assert.True(t, cfg.Server.TrustProxyHeaders)
	assert.NoError(t, cfg.ValidateServer())
}

func TestFromEnvInvalid(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("RENDER_TIMEOUT", "soon")
	t.Setenv("TRUST_PROXY_HEADERS", "maybe")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "RENDER_TIMEOUT")
	assert.Contains(t, err.Error(), "TRUST_PROXY_HEADERS")
}
