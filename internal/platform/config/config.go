package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                    string
	DatabaseURL             string
	JWTSecret               string
	TokenTTL                time.Duration
	DataEncryptionKey       string
	FrontendDir             string
	Environment             string
	LogLevel                string
	BusinessTimezone        string
	LoggingWindow           time.Duration
	SeedAdminUsername       string
	SeedAdminPassword       string
	EmailEnabled            bool
	EmailTransport          string
	EmailFrom               string
	SMTPHost                string
	SMTPPort                int
	SMTPUser                string
	SMTPPassword            string
	SMTPUseTLS              bool
	ReportRecipient         string
	WeeklyReportEnabled     bool
	WeeklyReportWeekday     time.Weekday
	WeeklyReportTime        string
	StorageDriver           string
	StorageDir              string
	S3Bucket                string
	S3Prefix                string
	SlackBotToken           string
	SlackAlertChannel       string
	RunMigrations           bool
	RunSeed                 bool
	MaxBodyBytes            int64
	MaxUploadBytes          int64
	LoginRateLimitPerMinute int
	APIRateLimitPerMinute   int
	MetricsEnabled          bool
	RetentionEnabled        bool
	RetentionTime           string
	IdempotencyKeyTTL       time.Duration
	JobRunRetention         time.Duration
	AuditRetention          time.Duration
}

const (
	EmailTransportSMTP = "smtp"
	EmailTransportSES  = "ses"

	StorageLocal = "local"
	StorageS3    = "s3"
)

// Load reads configuration from the environment. A .env file in the working
// directory, when present, is loaded first and never overrides real variables.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:                    getEnv("APP_ADDR", ":3001"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		TokenTTL:                getEnvDuration("TOKEN_TTL", 12*time.Hour),
		DataEncryptionKey:       getEnv("DATA_ENCRYPTION_KEY", ""),
		FrontendDir:             getEnv("FRONTEND_DIR", "public"),
		Environment:             getEnv("APP_ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		BusinessTimezone:        getEnv("BUSINESS_TIMEZONE", "America/Vancouver"),
		LoggingWindow:           getEnvDuration("LOGGING_WINDOW", 48*time.Hour),
		SeedAdminUsername:       getEnv("SEED_ADMIN_USERNAME", ""),
		SeedAdminPassword:       getEnv("SEED_ADMIN_PASSWORD", ""),
		EmailEnabled:            getEnvBool("EMAIL_ENABLED", false),
		EmailTransport:          strings.ToLower(getEnv("EMAIL_TRANSPORT", EmailTransportSMTP)),
		EmailFrom:               getEnv("EMAIL_FROM", "no-reply@example.com"),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                getEnvInt("SMTP_PORT", 587),
		SMTPUser:                getEnv("SMTP_USER", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:              getEnvBool("SMTP_USE_TLS", true),
		ReportRecipient:         getEnv("REPORT_RECIPIENT", ""),
		WeeklyReportEnabled:     getEnvBool("WEEKLY_REPORT_ENABLED", true),
		WeeklyReportWeekday:     getEnvWeekday("WEEKLY_REPORT_WEEKDAY", time.Monday),
		WeeklyReportTime:        getEnv("WEEKLY_REPORT_TIME", "09:00"),
		StorageDriver:           strings.ToLower(getEnv("STORAGE_DRIVER", StorageLocal)),
		StorageDir:              getEnv("STORAGE_DIR", "storage"),
		S3Bucket:                getEnv("S3_BUCKET", ""),
		S3Prefix:                getEnv("S3_PREFIX", ""),
		SlackBotToken:           getEnv("SLACK_BOT_TOKEN", ""),
		SlackAlertChannel:       getEnv("SLACK_ALERT_CHANNEL", ""),
		RunMigrations:           getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:                 getEnvBool("RUN_SEED", true),
		MaxBodyBytes:            int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		MaxUploadBytes:          int64(getEnvInt("MAX_UPLOAD_BYTES", 20*1024*1024)),
		LoginRateLimitPerMinute: getEnvInt("LOGIN_RATE_LIMIT_PER_MINUTE", 10),
		APIRateLimitPerMinute:   getEnvInt("API_RATE_LIMIT_PER_MINUTE", 600),
		MetricsEnabled:          getEnvBool("METRICS_ENABLED", true),
		RetentionEnabled:        getEnvBool("RETENTION_ENABLED", true),
		RetentionTime:           getEnv("RETENTION_TIME", "03:30"),
		IdempotencyKeyTTL:       getEnvDuration("IDEMPOTENCY_KEY_TTL", 24*time.Hour),
		JobRunRetention:         getEnvDuration("JOB_RUN_RETENTION", 90*24*time.Hour),
		AuditRetention:          getEnvDuration("AUDIT_RETENTION", 0),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
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

func getEnvWeekday(key string, fallback time.Weekday) time.Weekday {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == value || strings.ToLower(d.String()[:3]) == value {
			return d
		}
	}
	return fallback
}

// ReportClock splits WeeklyReportTime ("HH:MM") into hour and minute.
func (c Config) ReportClock() (int, int, error) {
	return clockOf("WEEKLY_REPORT_TIME", c.WeeklyReportTime)
}

func (c Config) RetentionClock() (int, int, error) {
	return clockOf("RETENTION_TIME", c.RetentionTime)
}

func clockOf(key, value string) (int, int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("%s must be HH:MM: %w", key, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		return fmt.Errorf("BUSINESS_TIMEZONE %q is not a known zone: %w", c.BusinessTimezone, err)
	}
	if c.LoggingWindow <= 0 {
		return fmt.Errorf("LOGGING_WINDOW must be positive")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be set or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.MaxUploadBytes < c.MaxBodyBytes {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be at least MAX_BODY_BYTES")
	}
	if c.LoginRateLimitPerMinute <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.APIRateLimitPerMinute < 0 {
		return fmt.Errorf("API_RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.EmailEnabled {
		switch c.EmailTransport {
		case EmailTransportSMTP:
			if c.SMTPHost == "" {
				return fmt.Errorf("SMTP_HOST must be set when EMAIL_TRANSPORT is smtp")
			}
		case EmailTransportSES:
		default:
			return fmt.Errorf("EMAIL_TRANSPORT must be smtp or ses")
		}
		if strings.TrimSpace(c.ReportRecipient) == "" {
			return fmt.Errorf("REPORT_RECIPIENT must be set when EMAIL_ENABLED is true")
		}
	}
	switch c.StorageDriver {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET must be set when STORAGE_DRIVER is s3")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be local or s3")
	}
	if _, _, err := c.ReportClock(); err != nil {
		return err
	}
	if c.IdempotencyKeyTTL < 0 || c.JobRunRetention < 0 || c.AuditRetention < 0 {
		return fmt.Errorf("retention durations must not be negative")
	}
	if c.RetentionEnabled {
		if _, _, err := c.RetentionClock(); err != nil {
			return err
		}
	}
	return nil
}
