package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort   string
	AppEnv    string
	AppURL    string // public base URL used in emailed links
	LogLevel  string
	LogFormat string // "text" | "json"

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion   string
	SNSTopicARN string // empty disables event publishing

	GoogleClientID string

	LemonSqueezyAPIKey  string
	LemonSqueezyStoreID string
	LemonSqueezyBaseURL string
	PlanVariants        map[string]string // plan name -> variant id; missing entries are unconfigured

	CronSecret        string
	EarlyAdopterSlots int
	AllowedOrigins    []string // CORS allowed origins
	TrustedProxies    []string // CIDRs whose X-Forwarded-For is believed
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Profiles      string
	Organizations string
	Sessions      string
	Deliveries    string
	DeliveryFiles string
	AccessCodes   string
	Invitations   string
	Subscriptions string
	EarlyAdopter  string
	Waitlist      string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:   getEnv("APP_PORT", "3000"),
		AppEnv:    getEnv("APP_ENV", "development"),
		AppURL:    strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Profiles:      getEnv("DYNAMO_TABLE_PROFILES", "profiles"),
			Organizations: getEnv("DYNAMO_TABLE_ORGANIZATIONS", "organizations"),
			Sessions:      getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Deliveries:    getEnv("DYNAMO_TABLE_DELIVERIES", "deliveries"),
			DeliveryFiles: getEnv("DYNAMO_TABLE_DELIVERY_FILES", "delivery_files"),
			AccessCodes:   getEnv("DYNAMO_TABLE_ACCESS_CODES", "delivery_access_codes"),
			Invitations:   getEnv("DYNAMO_TABLE_INVITATIONS", "organization_invitations"),
			Subscriptions: getEnv("DYNAMO_TABLE_SUBSCRIPTIONS", "subscriptions"),
			EarlyAdopter:  getEnv("DYNAMO_TABLE_EARLY_ADOPTER", "early_adopter_slots"),
			Waitlist:      getEnv("DYNAMO_TABLE_WAITLIST", "waitlist"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "sealdrop-deliveries"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@sealdrop.app"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:   getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		LemonSqueezyAPIKey:  getEnv("LEMONSQUEEZY_API_KEY", ""),
		LemonSqueezyStoreID: getEnv("LEMONSQUEEZY_STORE_ID", ""),
		LemonSqueezyBaseURL: getEnv("LEMONSQUEEZY_BASE_URL", "https://api.lemonsqueezy.com"),
		PlanVariants: planVariants(map[string]string{
			"starter":    "LEMONSQUEEZY_VARIANT_STARTER",
			"pro":        "LEMONSQUEEZY_VARIANT_PRO",
			"enterprise": "LEMONSQUEEZY_VARIANT_ENTERPRISE",
		}),

		CronSecret:        getEnv("CRON_SECRET", ""),
		EarlyAdopterSlots: getEnvInt("EARLY_ADOPTER_SLOTS", 100),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustedProxies:    splitList(getEnv("TRUSTED_PROXIES", "")),
	}
}

func planVariants(keys map[string]string) map[string]string {
	out := make(map[string]string, len(keys))
	for plan, key := range keys {
		if v := getEnv(key, ""); v != "" {
			out[plan] = v
		}
	}
	return out
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
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
