package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	TLS       TLSConfig
	CMS       CMSConfig
	Sync      SyncConfig
	Redis     RedisConfig
	Firebase  FirebaseConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port          string
	Host          string
	AllowedHosts  []string
	MaxUploadSize int64
	// RequestTimeout bounds read routes; sync and upload routes are
	// bounded by Sync.Timeout instead.
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
	HSTSMaxAge   time.Duration
}

type CMSConfig struct {
	BaseURL         string
	FacilityDataset string
	OwnerDataset    string
	PageSize        int
	Timeout         time.Duration
}

type SyncConfig struct {
	BatchSize int
	Timeout   time.Duration
	LockTTL   time.Duration
}

// RedisConfig enables the distributed sync lock when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// FirebaseConfig enables refresh notifications when CredentialsFile is set.
type FirebaseConfig struct {
	CredentialsFile string
	Topic           string
	MessagesFile    string
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	RunOnStartup  bool
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	pageSize, err := getIntEnv("CMS_PAGE_SIZE", 1500)
	if err != nil {
		return nil, err
	}
	batchSize, err := getIntEnv("SYNC_BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}
	maxUpload, err := getIntEnv("MAX_UPLOAD_MB", 32)
	if err != nil {
		return nil, err
	}
	cmsTimeout, err := getDurationEnv("CMS_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}
	syncTimeout, err := getDurationEnv("SYNC_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	lockTTL, err := getDurationEnv("SYNC_LOCK_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getDurationEnv("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	hstsMaxAge, err := getDurationEnv("HSTS_MAX_AGE", 365*24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Host:           getEnv("HOST", "0.0.0.0"),
			AllowedHosts:   getListEnv("ALLOWED_HOSTS"),
			MaxUploadSize:  int64(maxUpload) << 20,
			RequestTimeout: requestTimeout,
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			DBName:      getEnv("DB_NAME", "nursinghomes"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
			HSTSMaxAge:   hstsMaxAge,
		},
		CMS: CMSConfig{
			BaseURL:         getEnv("CMS_BASE_URL", "https://data.cms.gov/provider-data/api/1/datastore/query"),
			FacilityDataset: getEnv("CMS_FACILITY_DATASET", "4pq5-n9py"),
			OwnerDataset:    getEnv("CMS_OWNER_DATASET", "y2hd-n93e"),
			PageSize:        pageSize,
			Timeout:         cmsTimeout,
		},
		Sync: SyncConfig{
			BatchSize: batchSize,
			Timeout:   syncTimeout,
			LockTTL:   lockTTL,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			Topic:           getEnv("FIREBASE_TOPIC", "dataset-updates"),
			MessagesFile:    getEnv("NOTIFICATION_MESSAGES_FILE", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", false),
			ScheduleTimes: getListEnv("SCHEDULER_TIMES"),
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "nursinghomes-api"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if len(cfg.Scheduler.ScheduleTimes) == 0 {
		cfg.Scheduler.ScheduleTimes = []string{"06:00"}
	}

	if cfg.CMS.PageSize <= 0 {
		return nil, fmt.Errorf("CMS_PAGE_SIZE must be positive")
	}
	if cfg.Sync.BatchSize <= 0 {
		return nil, fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}
	if cfg.Server.RequestTimeout < 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// getListEnv splits a comma-separated value, dropping blanks.
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
