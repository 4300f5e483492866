package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT_PER_MINUTE", "DB_PATH", "LLM_PROVIDER", "OPENAI_MODEL", "LLM_TIMEOUT", "LLM_ENHANCE_ENABLED", "LOG_MODE"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg := Load()
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, ":4000", cfg.Addr())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, "./data/designs.db", cfg.DBPath)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.True(t, cfg.EnhanceEnabled)
	assert.Equal(t, "development", cfg.LogMode)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	t.Setenv("DB_PATH", "")
	t.Setenv("LLM_PROVIDER", " OpenAI ")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("LLM_ENHANCE_ENABLED", "off")

	cfg := Load()
	assert.Equal(t, ":9001", cfg.Addr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 0, cfg.RateLimitPerMinute)
	assert.Empty(t, cfg.DBPath)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
	assert.False(t, cfg.EnhanceEnabled)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "lots")
	t.Setenv("LLM_TIMEOUT", "-3s")
	t.Setenv("LLM_ENHANCE_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.True(t, cfg.EnhanceEnabled)
}
