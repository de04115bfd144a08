package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SIGNATURE_MODE", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, SignatureModeAdvisory, cfg.Payment.SignatureMode)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.True(t, cfg.Payment.SimulationEnabled)
	assert.Equal(t, "order-events", cfg.Kafka.TopicOrder)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("FRONTEND_URL", "https://shop.example.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com,http://localhost:5173")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PAYMENT_WEBHOOK_SIGNATURE_MODE", "Enforce")
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec")
	t.Setenv("PAYMENT_API_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9001", cfg.Server.Port)
	assert.Equal(t, "https://shop.example.com", cfg.Server.FrontendURL)
	assert.Equal(t, []string{"https://shop.example.com", "http://localhost:5173"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, SignatureModeEnforce, cfg.Payment.SignatureMode)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
}

func TestLoadRejectsEnforceWithoutSecret(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SIGNATURE_MODE", "enforce")
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownSignatureMode(t *testing.T) {
	t.Setenv("PAYMENT_WEBHOOK_SIGNATURE_MODE", "maybe")

	_, err := Load()
	assert.Error(t, err)
}
