package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 20*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Ticketing.CancelCutoff)
	assert.Equal(t, 10, cfg.Ticketing.MaxQuantity)
	assert.Equal(t, "Africa/Dakar", cfg.Ticketing.VenueTimezone)
	assert.Equal(t, "KANZEY.CO", cfg.Payment.PartnerName)
	assert.Equal(t, "ticketing.ticket.issued", cfg.Kafka.Topics.TicketIssued)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("INTOUCH_API_URL", "https://api.intouch.test/v1/")
	t.Setenv("PAYMENT_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("QR_CODE_BASE_URL", "https://kanzey.co/verify-ticket/")

	cfg := Load()

	assert.Equal(t, "https://api.intouch.test/v1", cfg.Payment.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "https://kanzey.co/verify-ticket", cfg.Ticketing.QRBaseURL)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "lots")
	t.Setenv("PAYMENT_VERIFY_LOCK_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 10*time.Second, cfg.Ticketing.VerifyLockTTL)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Payment.BaseURL = ""
	cfg.Payment.MerchantID = ""
	cfg.Auth.JWTSecret = ""
	cfg.Auth.OIDCIssuer = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTOUCH_API_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg.Payment.BaseURL = "https://api.intouch.test"
	cfg.Payment.MerchantID = "KANZ1"
	cfg.Auth.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Username: "u", Password: "p", Host: "h", Port: "5432", Database: "db", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", d.DSN())
}
