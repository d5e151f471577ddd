// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for the admin middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// RateLimitConfig provides per-action public rate limit settings.
type RateLimitConfig interface {
	GetBookingRatePerMinute() float64
	GetManageRatePerMinute() float64
	GetLookupRatePerMinute() float64
	GetRateBurst() int
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetShopNotifyAddress() string
}

// NotificationConfig provides settings for the side-effect coordinator.
type NotificationConfig interface {
	GetAppBaseURL() string
	GetShopName() string
}

// SMSConfig provides settings for the SMS gateway client.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	GetSMSFromNumber() string
}

// CalendarConfig provides settings for Google Calendar sync.
type CalendarConfig interface {
	GetCalendarID() string
	GetCalendarAccessToken() string
	IsCalendarEnabled() bool
}

// PaymentConfig provides settings for the payment gateway.
type PaymentConfig interface {
	GetMercadoPagoAccessToken() string
	IsPaymentMockEnabled() bool
}

// VehicleDataConfig provides settings for VIN decoding and tire fitment lookups.
type VehicleDataConfig interface {
	GetVPICBaseURL() string
	GetTireFitmentURL() string
	GetTireFitmentKey() string
	GetVehicleCacheTTL() time.Duration
}

// RedisConfig provides redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
}

// SchedulerConfig provides settings for the asynq reminder scheduler.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetRedisTLSInsecure() bool
}

// =============================================================================
// Config struct
// =============================================================================

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	JWTAccessSecret string

	CORSAllowAll bool
	CORSOrigins  []string

	BookingRatePerMinute float64
	ManageRatePerMinute  float64
	LookupRatePerMinute  float64
	RateBurst            int

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
	ShopNotifyEmail  string

	AppBaseURL string
	ShopName   string

	SMSGatewayURL string
	SMSGatewayKey string
	SMSFromNumber string

	CalendarID          string
	CalendarAccessToken string

	MercadoPagoAccessToken string
	PaymentMock            bool

	VPICBaseURL     string
	TireFitmentURL  string
	TireFitmentKey  string
	VehicleCacheTTL time.Duration

	RedisURL         string
	AsynqQueueName   string
	AsynqConcurrency int
	RedisTLSInsecure bool
}

// Load reads configuration from environment variables, consulting a local
// .env file first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: os.Getenv("JWT_ACCESS_SECRET"),

		CORSAllowAll: getBool("CORS_ALLOW_ALL", false),
		CORSOrigins:  getList("CORS_ORIGINS"),

		BookingRatePerMinute: getFloat("RATE_BOOKING_PER_MINUTE", 5),
		ManageRatePerMinute:  getFloat("RATE_MANAGE_PER_MINUTE", 10),
		LookupRatePerMinute:  getFloat("RATE_LOOKUP_PER_MINUTE", 30),
		RateBurst:            getInt("RATE_BURST", 5),

		EmailEnabled:     getBool("EMAIL_ENABLED", true),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getInt("SMTP_PORT", 587),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Ortiz Tire & Auto"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@ortiztire.example"),
		ShopNotifyEmail:  os.Getenv("SHOP_NOTIFY_EMAIL"),

		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:3000"),
		ShopName:   getEnv("SHOP_NAME", "Ortiz Tire & Auto"),

		SMSGatewayURL: os.Getenv("SMS_GATEWAY_URL"),
		SMSGatewayKey: os.Getenv("SMS_GATEWAY_KEY"),
		SMSFromNumber: os.Getenv("SMS_FROM_NUMBER"),

		CalendarID:          os.Getenv("GOOGLE_CALENDAR_ID"),
		CalendarAccessToken: os.Getenv("GOOGLE_CALENDAR_ACCESS_TOKEN"),

		MercadoPagoAccessToken: os.Getenv("MERCADOPAGO_ACCESS_TOKEN"),
		PaymentMock:            getBool("PAYMENT_GATEWAY_MOCK", false),

		VPICBaseURL:     getEnv("VPIC_BASE_URL", "https://vpic.nhtsa.dot.gov/api"),
		TireFitmentURL:  os.Getenv("TIRE_FITMENT_URL"),
		TireFitmentKey:  os.Getenv("TIRE_FITMENT_KEY"),
		VehicleCacheTTL: getDuration("VEHICLE_CACHE_TTL", 24*time.Hour),

		RedisURL:         os.Getenv("REDIS_URL"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getInt("ASYNQ_CONCURRENCY", 10),
		RedisTLSInsecure: getBool("REDIS_TLS_INSECURE", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

func (c *Config) GetBookingRatePerMinute() float64 { return c.BookingRatePerMinute }
func (c *Config) GetManageRatePerMinute() float64  { return c.ManageRatePerMinute }
func (c *Config) GetLookupRatePerMinute() float64  { return c.LookupRatePerMinute }
func (c *Config) GetRateBurst() int                { return c.RateBurst }

func (c *Config) GetEmailEnabled() bool        { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string          { return c.SMTPHost }
func (c *Config) GetSMTPPort() int             { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string      { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string      { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string     { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string  { return c.EmailFromAddress }
func (c *Config) GetShopNotifyAddress() string { return c.ShopNotifyEmail }

func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }
func (c *Config) GetShopName() string   { return c.ShopName }

func (c *Config) GetSMSGatewayURL() string { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string { return c.SMSGatewayKey }
func (c *Config) GetSMSFromNumber() string { return c.SMSFromNumber }

func (c *Config) GetCalendarID() string          { return c.CalendarID }
func (c *Config) GetCalendarAccessToken() string { return c.CalendarAccessToken }
func (c *Config) IsCalendarEnabled() bool {
	return c.CalendarID != "" && c.CalendarAccessToken != ""
}

func (c *Config) GetMercadoPagoAccessToken() string { return c.MercadoPagoAccessToken }
func (c *Config) IsPaymentMockEnabled() bool        { return c.PaymentMock }

func (c *Config) GetVPICBaseURL() string            { return c.VPICBaseURL }
func (c *Config) GetTireFitmentURL() string         { return c.TireFitmentURL }
func (c *Config) GetTireFitmentKey() string         { return c.TireFitmentKey }
func (c *Config) GetVehicleCacheTTL() time.Duration { return c.VehicleCacheTTL }

func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
