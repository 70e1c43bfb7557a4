package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Payment   PaymentConfig
	Auth      AuthConfig
	Ticketing TicketingConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	Debug        bool

	MigrationsDir string
	AutoMigrate   bool
}

// DSN builds a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	TicketCreated  string
	TicketIssued   string
	PaymentUpdated string
}

// PaymentConfig holds the InTouch aggregator credentials.
type PaymentConfig struct {
	BaseURL       string
	MerchantID    string
	LoginAgent    string
	PasswordAgent string
	Username      string
	Password      string
	PartnerName   string
	Timeout       time.Duration
}

type AuthConfig struct {
	OIDCIssuer   string
	OIDCClientID string
	JWTSecret    string
}

type TicketingConfig struct {
	QRBaseURL        string
	CallbackURL      string
	FrontendURL      string
	RedirectURL      string
	CancelCutoff     time.Duration
	MaxQuantity      int
	VenueTimezone    string
	VerifyLockTTL    time.Duration
	DefaultPageLimit int
}

type LogConfig struct {
	Dir   string
	Level string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8080"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "ticketing"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "ticketing"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			Debug:        getEnvBool("DB_DEBUG", false),

			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				TicketCreated:  getEnv("KAFKA_TOPIC_TICKET_CREATED", "ticketing.ticket.created"),
				TicketIssued:   getEnv("KAFKA_TOPIC_TICKET_ISSUED", "ticketing.ticket.issued"),
				PaymentUpdated: getEnv("KAFKA_TOPIC_PAYMENT_UPDATED", "ticketing.payment.updated"),
			},
		},
		Payment: PaymentConfig{
			BaseURL:       strings.TrimRight(getEnv("INTOUCH_API_URL", ""), "/"),
			MerchantID:    getEnv("INTOUCH_MERCHANT_ID", ""),
			LoginAgent:    getEnv("INTOUCH_LOGIN_AGENT", ""),
			PasswordAgent: getEnv("INTOUCH_PASSWORD_AGENT", ""),
			Username:      getEnv("INTOUCH_USERNAME", ""),
			Password:      getEnv("INTOUCH_PASSWORD", ""),
			PartnerName:   getEnv("INTOUCH_PARTNER_NAME", "KANZEY.CO"),
			Timeout:       getEnvDuration("PAYMENT_TIMEOUT", 20*time.Second),
		},
		Auth: AuthConfig{
			OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
			OIDCClientID: getEnv("OIDC_CLIENT_ID", ""),
			JWTSecret:    getEnv("JWT_SECRET", ""),
		},
		Ticketing: TicketingConfig{
			QRBaseURL:        strings.TrimRight(getEnv("QR_CODE_BASE_URL", "http://localhost:5173/verify-ticket"), "/"),
			CallbackURL:      getEnv("PAYMENT_CALLBACK_URL", "http://localhost:8080/api/payments/callback"),
			FrontendURL:      strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
			RedirectURL:      getEnv("INTOUCH_REDIRECT_URL", ""),
			CancelCutoff:     getEnvDuration("TICKET_CANCEL_CUTOFF", 24*time.Hour),
			MaxQuantity:      getEnvInt("TICKET_MAX_QUANTITY", 10),
			VenueTimezone:    getEnv("VENUE_TIMEZONE", "Africa/Dakar"),
			VerifyLockTTL:    getEnvDuration("PAYMENT_VERIFY_LOCK_TTL", 10*time.Second),
			DefaultPageLimit: getEnvInt("TICKET_PAGE_LIMIT", 10),
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "logs"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate reports every missing setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Host == "" || c.Database.Database == "" {
		errs = append(errs, errors.New("database host and name are required"))
	}
	if c.Payment.BaseURL == "" {
		errs = append(errs, errors.New("INTOUCH_API_URL is required"))
	}
	if c.Payment.MerchantID == "" {
		errs = append(errs, errors.New("INTOUCH_MERCHANT_ID is required"))
	}
	if c.Auth.OIDCIssuer == "" && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("either OIDC_ISSUER or JWT_SECRET must be set"))
	}
	if c.Ticketing.MaxQuantity < 1 {
		errs = append(errs, fmt.Errorf("TICKET_MAX_QUANTITY must be positive, got %d", c.Ticketing.MaxQuantity))
	}
	if _, err := time.LoadLocation(c.Ticketing.VenueTimezone); err != nil {
		errs = append(errs, fmt.Errorf("VENUE_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
