package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/comuni-server/models"
)

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	Channel  string
}

type SupabaseConfig struct {
	URL    string
	Key    string
	Bucket string
}

type Config struct {
	Environment string
	Port        string
	LogLevel    string
	SentryDSN   string

	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxIdleConns int
	DBMaxOpenConns int

	JWTSecret      string
	AllowedOrigins []string
	Timezone       string
	RequestTimeout time.Duration

	// Workflow policy
	GroupApproval       string // auto | manual
	GroupApproverIDs    []string
	GroupListOrder      string // name | recent
	RecheckAdmin        bool
	StrictMembership    bool
	RepairOwnersOnStart bool

	RateLimitPerMin int
	RateLimitBurst  int

	Redis    RedisConfig
	Supabase SupabaseConfig
}

// Load reads configuration from the environment. A .env file is used when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "comuni"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 50),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: getEnvAsList("CORS_ORIGINS", []string{"http://localhost:8081", "http://localhost:19006"}),
		Timezone:       getEnv("APP_TIMEZONE", "UTC"),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),

		GroupApproval:       strings.ToLower(getEnv("GROUP_APPROVAL", "auto")),
		GroupApproverIDs:    getEnvAsList("GROUP_APPROVER_IDS", nil),
		GroupListOrder:      strings.ToLower(getEnv("GROUP_LIST_ORDER", "name")),
		RecheckAdmin:        getEnvAsBool("RECHECK_ADMIN", true),
		StrictMembership:    getEnvAsBool("STRICT_MEMBERSHIP", true),
		RepairOwnersOnStart: getEnvAsBool("REPAIR_OWNERS_ON_START", false),

		RateLimitPerMin: getEnvAsInt("RATE_LIMIT_PER_MIN", 20),
		RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 5),

		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_CHANNEL", "comuni:notifications"),
		},
		Supabase: SupabaseConfig{
			URL:    getEnv("SUPABASE_URL", ""),
			Key:    getEnv("SUPABASE_KEY", ""),
			Bucket: getEnv("SUPABASE_BUCKET", "group-covers"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.GroupApproval != "auto" && c.GroupApproval != "manual" {
		return fmt.Errorf("GROUP_APPROVAL must be auto or manual, got %q", c.GroupApproval)
	}
	if c.GroupListOrder != "name" && c.GroupListOrder != "recent" {
		return fmt.Errorf("GROUP_LIST_ORDER must be name or recent, got %q", c.GroupListOrder)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// SupabaseEnabled reports whether cover uploads can be served.
func (c *Config) SupabaseEnabled() bool {
	return c.Supabase.URL != "" && c.Supabase.Key != ""
}

// ConnectDB opens the postgres pool and migrates the workflow tables.
func ConnectDB(c *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
	log.WithField("dsn", maskPassword(dsn)).Info("config: connecting to database")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(c.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(c.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	log.Info("config: connected to PostgreSQL & migrated successfully")
	return db, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func maskPassword(dsn string) string {
	const marker = "password="
	start := strings.Index(dsn, marker)
	if start == -1 {
		return dsn
	}
	start += len(marker)
	end := strings.IndexByte(dsn[start:], ' ')
	if end == -1 {
		return dsn[:start] + "*****"
	}
	return dsn[:start] + "*****" + dsn[start+end:]
}
