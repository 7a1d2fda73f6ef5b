package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	UploadLimit    string        `mapstructure:"UPLOAD_LIMIT"`

	RedisURL          string        `mapstructure:"REDIS_URL"`
	DashboardCacheTTL time.Duration `mapstructure:"DASHBOARD_CACHE_TTL"`

	KafkaBrokers       []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaAuditTopic    string        `mapstructure:"KAFKA_AUDIT_TOPIC"`
	AuditRelayInterval time.Duration `mapstructure:"AUDIT_RELAY_INTERVAL"`
	AuditRelayBatch    int           `mapstructure:"AUDIT_RELAY_BATCH"`

	BlobBackend string `mapstructure:"BLOB_BACKEND"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`

	ClinicTimezone string `mapstructure:"CLINIC_TIMEZONE"`
	ClinicOpen     string `mapstructure:"CLINIC_OPEN"`
	ClinicClose    string `mapstructure:"CLINIC_CLOSE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"AUTH_ISSUER", "AUTH_SIGNING_KEY",
	"REQUEST_TIMEOUT", "BODY_LIMIT", "UPLOAD_LIMIT",
	"REDIS_URL", "DASHBOARD_CACHE_TTL",
	"KAFKA_BROKERS", "KAFKA_AUDIT_TOPIC", "AUDIT_RELAY_INTERVAL", "AUDIT_RELAY_BATCH",
	"BLOB_BACKEND", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT",
	"CLINIC_TIMEZONE", "CLINIC_OPEN", "CLINIC_CLOSE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_LIMIT", "10M")
	v.SetDefault("DASHBOARD_CACHE_TTL", "30s")
	v.SetDefault("KAFKA_AUDIT_TOPIC", "clinic.audit")
	v.SetDefault("AUDIT_RELAY_INTERVAL", "5s")
	v.SetDefault("AUDIT_RELAY_BATCH", 100)
	v.SetDefault("BLOB_BACKEND", "memory")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("CLINIC_TIMEZONE", "America/Guayaquil")
	v.SetDefault("CLINIC_OPEN", "08:00")
	v.SetDefault("CLINIC_CLOSE", "17:00")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(decoded []string, raw string) []string {
	if len(decoded) == 0 && raw != "" {
		decoded = strings.Split(raw, ",")
	}
	out := decoded[:0]
	for _, s := range decoded {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SigningKey decodes AUTH_SIGNING_KEY. It is nil when unset.
func (c *Config) SigningKey() ([]byte, error) {
	if c.AuthSigningKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.AuthSigningKey)
	if err != nil {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY is not valid hex: %w", err)
	}
	return key, nil
}

// Location loads CLINIC_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// ClinicHours returns CLINIC_OPEN and CLINIC_CLOSE as offsets from midnight.
func (c *Config) ClinicHours() (open, close time.Duration, err error) {
	if open, err = parseClock(c.ClinicOpen); err != nil {
		return 0, 0, fmt.Errorf("CLINIC_OPEN: %w", err)
	}
	if close, err = parseClock(c.ClinicClose); err != nil {
		return 0, 0, fmt.Errorf("CLINIC_CLOSE: %w", err)
	}
	if close <= open {
		return 0, 0, fmt.Errorf("CLINIC_CLOSE %s must be after CLINIC_OPEN %s", c.ClinicClose, c.ClinicOpen)
	}
	return open, close, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Validate refuses configurations that are unsafe or cannot start.
func (c *Config) Validate() error {
	key, err := c.SigningKey()
	if err != nil {
		return err
	}
	if !c.IsDev() && len(key) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes (64 hex chars) outside development (ENV=%q)", c.Env)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	switch c.BlobBackend {
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("BLOB_BACKEND=memory loses uploads on restart; use s3 in production")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND is s3")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be \"memory\" or \"s3\", got %q", c.BlobBackend)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaAuditTopic == "" {
		return fmt.Errorf("KAFKA_AUDIT_TOPIC is required when KAFKA_BROKERS is set")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, _, err := c.ClinicHours(); err != nil {
		return err
	}
	return nil
}
