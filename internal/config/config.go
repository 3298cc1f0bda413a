package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the service.
type Config struct {
	HTTPAddr    string
	DatabaseURL string
	EntryTypes  []string
	PageSize    int

	AdminEmail    string
	AdminPassword string
	JWTSecret     string
	TokenTTL      time.Duration

	TelegramToken    string
	TelegramAdminIDs []int64
	ReportInterval   time.Duration
	ExportDailyAt    string
	ExportRetention  time.Duration

	Blob BlobConfig

	LogLevel  string
	LogFormat string
}

// BlobConfig selects where export snapshots are stored.
type BlobConfig struct {
	Driver      string
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool
}

// MaxPageSize bounds PAGE_SIZE and the pageSize query parameter.
const MaxPageSize = 100

// Load reads configuration from environment variables with sane defaults.
// NOTE: the default credentials and secret are for local development only.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		DatabaseURL:   env("DATABASE_URL", "task_list.db"),
		EntryTypes:    splitList(os.Getenv("ENTRY_TYPES")),
		AdminEmail:    env("ADMIN_EMAIL", "admin@demo.com"),
		AdminPassword: env("ADMIN_PASSWORD", "123456"),
		JWTSecret:     env("JWT_SECRET", "secretKey"),
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		ExportDailyAt: strings.TrimSpace(os.Getenv("EXPORT_DAILY_AT")),
		Blob: BlobConfig{
			Driver:      env("BLOB_DRIVER", "fs"),
			FSRoot:      env("BLOB_FS_ROOT", "./exports"),
			S3Bucket:    strings.TrimSpace(os.Getenv("BLOB_S3_BUCKET")),
			S3Region:    env("BLOB_S3_REGION", "us-east-1"),
			S3Endpoint:  strings.TrimSpace(os.Getenv("BLOB_S3_ENDPOINT")),
			S3AccessKey: strings.TrimSpace(os.Getenv("BLOB_S3_ACCESS_KEY")),
			S3SecretKey: strings.TrimSpace(os.Getenv("BLOB_S3_SECRET_KEY")),
			S3PathStyle: strings.EqualFold(strings.TrimSpace(os.Getenv("BLOB_S3_PATH_STYLE")), "true"),
		},
		LogLevel:       env("LOG_LEVEL", "info"),
		LogFormat:      env("LOG_FORMAT", "json"),
		ReportInterval: parseInterval(strings.TrimSpace(os.Getenv("REPORT_INTERVAL_HOURS"))),
	}

	pageSize, err := positiveInt("PAGE_SIZE", 10, MaxPageSize)
	if err != nil {
		return cfg, err
	}
	cfg.PageSize = pageSize

	retentionDays, err := positiveInt("EXPORT_RETENTION_DAYS", 0, 0)
	if err != nil {
		return cfg, err
	}
	cfg.ExportRetention = time.Duration(retentionDays) * 24 * time.Hour

	ttl := env("TOKEN_TTL", "24h")
	cfg.TokenTTL, err = time.ParseDuration(ttl)
	if err != nil || cfg.TokenTTL <= 0 {
		return cfg, fmt.Errorf("TOKEN_TTL must be a positive duration, got %q", ttl)
	}

	cfg.TelegramAdminIDs, err = parseIDs(os.Getenv("TELEGRAM_ADMIN_IDS"))
	if err != nil {
		return cfg, err
	}

	switch cfg.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if cfg.Blob.S3Bucket == "" {
			return cfg, fmt.Errorf("BLOB_S3_BUCKET is required for the s3 blob driver")
		}
	default:
		return cfg, fmt.Errorf("unknown BLOB_DRIVER %q", cfg.Blob.Driver)
	}

	return cfg, nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// positiveInt reads a positive integer; max of 0 means unbounded.
func positiveInt(key string, fallback, max int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	if max > 0 && n > max {
		return 0, fmt.Errorf("%s must be at most %d, got %d", key, max, n)
	}
	return n, nil
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ADMIN_IDS: invalid chat id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
