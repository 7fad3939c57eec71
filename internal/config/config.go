package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	// Verification code policy.
	CodeTTL       time.Duration // validity window of an issued code
	IssueCooldown time.Duration // minimum gap between issues per (subject, purpose)

	// Order auto-confirmation policy. GracePeriod is owned by the order
	// domain; it is injected here rather than hard-coded in the sweep.
	ConfirmGracePeriod time.Duration
	ReconcileInterval  time.Duration
	ReconcileAutostart bool

	// Default retention for the explicit cleanup operation when the caller
	// does not supply one.
	CleanupRetention time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	VerificationCodes string
	Orders            string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			VerificationCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "verification_codes"),
			Orders:            getEnv("DYNAMO_TABLE_ORDERS", "orders"),
		},

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),

		CodeTTL:       getEnvDuration("CODE_TTL", 5*time.Minute),
		IssueCooldown: getEnvDuration("CODE_ISSUE_COOLDOWN", 60*time.Second),

		ConfirmGracePeriod: getEnvDuration("CONFIRM_GRACE_PERIOD", time.Hour),
		ReconcileInterval:  getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileAutostart: getEnvBool("RECONCILE_AUTOSTART", true),

		CleanupRetention: getEnvDuration("CLEANUP_RETENTION", 7*24*time.Hour),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
