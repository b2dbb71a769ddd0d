package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	AuthJWTSecret string
	AuthTokenTTL  time.Duration

	BootstrapAdminEmail    string
	BootstrapAdminName     string
	BootstrapAdminPassword string
	SeedCatalog            bool

	Telemetry TelemetryConfig

	DBURL             string
	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitPerMinute int
	RateLimitBurst     int

	Storage StorageConfig
	SMTP    SMTPConfig

	DocumentProfilePath string

	Scheduler SchedulerConfig
}

// TelemetryConfig covers logging and trace export.
type TelemetryConfig struct {
	LogLevel       string
	LogFormat      string
	TracingEnabled bool
	OTLPEndpoint   string
	SampleRatio    float64
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLTTL    time.Duration
}

// Enabled reports whether an object store is configured.
func (c StorageConfig) Enabled() bool {
	return c.Endpoint != ""
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminInbox string
}

type SchedulerConfig struct {
	Enabled          bool
	TickInterval     time.Duration
	BackupHourUTC    int
	ReminderAfter    time.Duration
	ExpiryBatchLimit int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "seqdesk"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   environment,
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		NodeID:        getenvInt64("NODE_ID", 1),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthTokenTTL:  getenvDuration("AUTH_TOKEN_TTL", 12*time.Hour),

		BootstrapAdminEmail:    strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", "")),
		BootstrapAdminName:     getenv("BOOTSTRAP_ADMIN_NAME", "Administrator"),
		BootstrapAdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		SeedCatalog:            getenvBool("SEED_CATALOG", false),

		Telemetry: TelemetryConfig{
			LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:      strings.ToLower(getenv("LOG_FORMAT", "json")),
			TracingEnabled: getenvBool("TRACING_ENABLED", false),
			OTLPEndpoint:   getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SampleRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBURL:             strings.TrimSpace(getenv("DATABASE_URL", "")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "seqdesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		RateLimitPerMinute: getenvInt("RATE_LIMIT_PER_MINUTE", 30),
		RateLimitBurst:     getenvInt("RATE_LIMIT_BURST", 10),

		Storage: StorageConfig{
			Endpoint:  strings.TrimSpace(getenv("MINIO_ENDPOINT", "")),
			AccessKey: getenv("MINIO_ACCESS_KEY", ""),
			SecretKey: getenv("MINIO_SECRET_KEY", ""),
			Bucket:    getenv("MINIO_BUCKET", "seqdesk"),
			UseSSL:    getenvBool("MINIO_USE_SSL", false),
			URLTTL:    getenvDuration("MINIO_URL_TTL", 24*time.Hour),
		},
		SMTP: SMTPConfig{
			Host:       strings.TrimSpace(getenv("SMTP_HOST", "")),
			Port:       getenvInt("SMTP_PORT", 587),
			Username:   getenv("SMTP_USERNAME", ""),
			Password:   getenv("SMTP_PASSWORD", ""),
			From:       getenv("SMTP_FROM", "no-reply@seqdesk.local"),
			AdminInbox: getenv("SMTP_ADMIN_INBOX", ""),
		},

		DocumentProfilePath: getenv("DOCUMENT_PROFILE_PATH", ""),

		Scheduler: SchedulerConfig{
			Enabled:          getenvBool("SCHEDULER_ENABLED", true),
			TickInterval:     getenvDuration("SCHEDULER_TICK_INTERVAL", time.Minute),
			BackupHourUTC:    getenvInt("SCHEDULER_BACKUP_HOUR_UTC", 2),
			ReminderAfter:    getenvDuration("SCHEDULER_INQUIRY_REMINDER_AFTER", 48*time.Hour),
			ExpiryBatchLimit: getenvInt("SCHEDULER_EXPIRY_BATCH_LIMIT", 200),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment is true for local and test environments.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
