package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort     string
	AppEnv      string
	StoreDriver string // "dynamo" | "memory"

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTSecret  string
	JWTExpiry  time.Duration
	CookieName string

	BcryptCost           int
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	ClientURL            string   // base URL embedded in password reset links
	AllowedOrigins       []string // CORS allowed origins

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion   string
	SNSTopicARN string // auth events are dropped when empty

	RedisAddr     string // attempt limiter falls back to in-process counters when empty
	RedisPassword string

	// TrustProxy makes the router take the client address from
	// X-Forwarded-For / X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxy bool

	RateLimitRPS       float64
	RateLimitBurst     int
	AttemptLimit       int // per client address and window
	AttemptGlobalLimit int // across all clients, per endpoint and window
	AttemptWindow      time.Duration
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users      string
	UserEmails string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	clientURL := getEnv("CLIENT_URL", "http://localhost:5173")
	return &Config{
		AppPort:     getEnv("APP_PORT", "5000"),
		AppEnv:      getEnv("APP_ENV", "development"),
		StoreDriver: getEnv("STORE_DRIVER", "dynamo"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:      getEnv("DYNAMO_TABLE_USERS", "users"),
			UserEmails: getEnv("DYNAMO_TABLE_USER_EMAILS", "user_emails"),
		},

		JWTSecret:  getEnv("JWT_SECRET", ""),
		JWTExpiry:  getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),
		CookieName: getEnv("COOKIE_NAME", "token"),

		BcryptCost:           getEnvInt("BCRYPT_COST", 10),
		VerificationTokenTTL: getEnvDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour),
		ResetTokenTTL:        getEnvDuration("RESET_TOKEN_TTL", time.Hour),
		ClientURL:            strings.TrimRight(clientURL, "/"),
		AllowedOrigins:       strings.Split(getEnv("ALLOWED_ORIGINS", clientURL), ","),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:   getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		TrustProxy: getEnvBool("TRUST_PROXY", false),

		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
		AttemptLimit:       getEnvInt("ATTEMPT_LIMIT", 10),
		AttemptGlobalLimit: getEnvInt("ATTEMPT_GLOBAL_LIMIT", 500),
		AttemptWindow:      getEnvDuration("ATTEMPT_WINDOW", 15*time.Minute),
	}
}

// IsProduction reports whether the service runs with production settings
// (JSON logs, Secure cookies, mandatory JWT secret).
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.JWTSecret = "dev-secret-change-me"
	}
	switch c.StoreDriver {
	case "dynamo", "memory":
	default:
		return errors.New("STORE_DRIVER must be one of: dynamo, memory")
	}
	if c.JWTExpiry <= 0 || c.VerificationTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("24h", "15m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
