package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Event bus drivers.
const (
	EventsGoChannel = "gochannel"
	EventsKafka     = "kafka"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Version   string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Dashboard DashboardConfig
	Exports   ExportsConfig
	Storage   StorageConfig
	Mail      MailConfig
	SMS       SMSConfig
	Payment   PaymentConfig
	Events    EventsConfig
	Cron      CronConfig
	Rollbar   RollbarConfig
	Delivery  DeliveryConfig
	School    SchoolConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	AutoMigrate   bool
	MigrationsDir string

	// ConnMaxLifetime recycles pooled connections; ConnectRetries bounds the startup ping loop.
	ConnMaxLifetime time.Duration
	ConnectRetries  int
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL renders the connection as a postgres:// URL for golang-migrate.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs dashboard and portal memoization.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExportsConfig configures generated report files and their download links.
type ExportsConfig struct {
	SignedURLSecret string
	SignedURLTTL    time.Duration
	RetainFor       time.Duration
	BaseURL         string
}

// StorageConfig selects where generated files are kept.
type StorageConfig struct {
	Driver     string
	LocalDir   string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Key      string
	S3Secret   string
	S3Prefix   string
}

// MailConfig configures SendGrid delivery. Empty APIKey disables email.
type MailConfig struct {
	APIKey    string
	FromName  string
	FromEmail string
}

// SMSConfig configures Twilio delivery. Empty AccountSID disables SMS.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// PaymentConfig configures the Midtrans Snap gateway. Empty ServerKey disables online payments.
type PaymentConfig struct {
	ServerKey  string
	Production bool
}

// EventsConfig selects the domain event transport.
type EventsConfig struct {
	Driver        string
	KafkaBrokers  []string
	ConsumerGroup string
}

// CronConfig holds schedules for recurring maintenance jobs.
type CronConfig struct {
	Enabled       bool
	OverdueSweep  string
	ExportCleanup string
}

// RollbarConfig configures 5xx error reporting. Empty Token disables it.
type RollbarConfig struct {
	Token string
}

// DeliveryConfig tunes the notification delivery worker pool.
type DeliveryConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// SchoolConfig holds school-day rules.
type SchoolConfig struct {
	// TeacherLateAfter is the check-in offset from midnight UTC after which a teacher is late.
	TeacherLateAfter time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Version = v.GetString("APP_VERSION")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
		MigrationsDir: v.GetString("DB_MIGRATIONS_DIR"),

		ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		ConnectRetries:  v.GetInt("DB_CONNECT_RETRIES"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		PoolSize: v.GetInt("REDIS_POOL_SIZE"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled: v.GetBool("DASHBOARD_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		RetainFor:       parseDuration(v.GetString("EXPORTS_RETAIN_FOR"), 72*time.Hour),
		BaseURL:         strings.TrimRight(v.GetString("EXPORTS_BASE_URL"), "/"),
	}

	cfg.Storage = StorageConfig{
		Driver:     strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:   v.GetString("STORAGE_LOCAL_DIR"),
		S3Bucket:   v.GetString("STORAGE_S3_BUCKET"),
		S3Region:   v.GetString("STORAGE_S3_REGION"),
		S3Endpoint: v.GetString("STORAGE_S3_ENDPOINT"),
		S3Key:      v.GetString("STORAGE_S3_ACCESS_KEY"),
		S3Secret:   v.GetString("STORAGE_S3_SECRET_KEY"),
		S3Prefix:   v.GetString("STORAGE_S3_PREFIX"),
	}

	cfg.Mail = MailConfig{
		APIKey:    v.GetString("SENDGRID_API_KEY"),
		FromName:  v.GetString("MAIL_FROM_NAME"),
		FromEmail: v.GetString("MAIL_FROM_EMAIL"),
	}

	cfg.SMS = SMSConfig{
		AccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
		AuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
		FromNumber: v.GetString("TWILIO_FROM_NUMBER"),
	}

	cfg.Payment = PaymentConfig{
		ServerKey:  v.GetString("MIDTRANS_SERVER_KEY"),
		Production: v.GetBool("MIDTRANS_PRODUCTION"),
	}

	cfg.Events = EventsConfig{
		Driver:        strings.ToLower(v.GetString("EVENTS_DRIVER")),
		KafkaBrokers:  splitAndTrim(v.GetString("KAFKA_BROKERS")),
		ConsumerGroup: v.GetString("KAFKA_CONSUMER_GROUP"),
	}

	cfg.Cron = CronConfig{
		Enabled:       v.GetBool("CRON_ENABLED"),
		OverdueSweep:  v.GetString("CRON_OVERDUE_SWEEP"),
		ExportCleanup: v.GetString("CRON_EXPORT_CLEANUP"),
	}

	cfg.Rollbar = RollbarConfig{Token: v.GetString("ROLLBAR_TOKEN")}

	cfg.Delivery = DeliveryConfig{
		Workers:    v.GetInt("DELIVERY_WORKERS"),
		BufferSize: v.GetInt("DELIVERY_BUFFER_SIZE"),
		MaxRetries: v.GetInt("DELIVERY_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("DELIVERY_RETRY_DELAY"), 5*time.Second),
	}

	cfg.School = SchoolConfig{
		TeacherLateAfter: parseDuration(v.GetString("TEACHER_LATE_AFTER"), 7*time.Hour+30*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("APP_VERSION", "dev")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sims")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("DB_MIGRATIONS_DIR", "")
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DB_CONNECT_RETRIES", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DASHBOARD_CACHE_ENABLED", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_RETAIN_FOR", "72h")
	v.SetDefault("EXPORTS_BASE_URL", "")

	v.SetDefault("STORAGE_DRIVER", StorageLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./exports")
	v.SetDefault("STORAGE_S3_REGION", "ap-southeast-1")
	v.SetDefault("STORAGE_S3_PREFIX", "exports")

	v.SetDefault("MAIL_FROM_NAME", "School Office")
	v.SetDefault("MAIL_FROM_EMAIL", "no-reply@school.local")

	v.SetDefault("MIDTRANS_PRODUCTION", false)

	v.SetDefault("EVENTS_DRIVER", EventsGoChannel)
	v.SetDefault("KAFKA_CONSUMER_GROUP", "sims-api")

	v.SetDefault("CRON_ENABLED", true)
	v.SetDefault("CRON_OVERDUE_SWEEP", "15 0 * * *")
	v.SetDefault("CRON_EXPORT_CLEANUP", "@hourly")

	v.SetDefault("DELIVERY_WORKERS", 2)
	v.SetDefault("DELIVERY_BUFFER_SIZE", 128)
	v.SetDefault("DELIVERY_MAX_RETRIES", 3)
	v.SetDefault("DELIVERY_RETRY_DELAY", "5s")

	v.SetDefault("TEACHER_LATE_AFTER", "7h30m")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
