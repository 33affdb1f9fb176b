package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port    string
	GinMode string
	Domain  string

	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	AuthProvider  string
	SessionSecret string
	AdminEmail    string
	AdminPassword string

	StorageDriver      string
	StorageBucket      string
	S3Endpoint         string
	S3Region           string
	S3AccessKeyID      string
	S3SecretAccessKey  string
	CloudinaryURL      string
	UploadDir          string
	CacheDir           string
	CacheMaxAge        time.Duration
	CorsAllowedOrigins []string
	TrustedProxies     []string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	ContactEmail string
}

var (
	ErrMissing = errors.New("required configuration missing")
	ErrInvalid = errors.New("invalid configuration")
)

// Load reads .env (when present) and the environment. Missing backend
// settings are fatal.
func Load() Config {
	_ = godotenv.Load()

	cfg, err := Parse(os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration")
	}
	return cfg
}

func Parse(lookup func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		value := strings.TrimSpace(lookup(key))
		if value == "" {
			return fallback
		}
		return value
	}

	cfg := Config{
		Port:    get("PORT", "8080"),
		GinMode: get("GIN_MODE", "debug"),
		Domain:  strings.TrimSuffix(get("DOMAIN", "http://localhost:8080"), "/"),

		SupabaseURL:       strings.TrimSuffix(get("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:   get("SUPABASE_ANON_KEY", ""),
		SupabaseJWTSecret: get("SUPABASE_JWT_SECRET", ""),

		DBDriver:    strings.ToLower(get("DB_DRIVER", "sqlite")),
		DatabaseURL: get("DATABASE_URL", ""),
		SQLitePath:  get("SQLITE_PATH", "nikwetu.db"),

		AuthProvider:  strings.ToLower(get("AUTH_PROVIDER", "supabase")),
		SessionSecret: get("SESSION_SECRET", ""),
		AdminEmail:    get("ADMIN_EMAIL", ""),
		AdminPassword: get("ADMIN_PASSWORD", ""),

		StorageDriver:      strings.ToLower(get("STORAGE_DRIVER", "disk")),
		StorageBucket:      get("STORAGE_BUCKET", "post-images"),
		S3Region:           get("S3_REGION", "us-east-1"),
		S3AccessKeyID:      get("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:  get("S3_SECRET_ACCESS_KEY", ""),
		CloudinaryURL:      get("CLOUDINARY_URL", ""),
		UploadDir:          get("UPLOAD_DIR", "uploads"),
		CacheDir:           get("CACHE_DIR", "cache"),
		CorsAllowedOrigins: splitCSV(get("CORS_ALLOWED_ORIGINS", "*")),
		TrustedProxies:     splitCSV(get("TRUSTED_PROXIES", "")),

		SMTPHost:     get("SMTP_HOST", ""),
		SMTPPort:     get("SMTP_PORT", "587"),
		SMTPUser:     get("SMTP_USER", ""),
		SMTPPassword: get("SMTP_PASSWORD", ""),
		SMTPFrom:     get("SMTP_FROM", ""),
		ContactEmail: get("CONTACT_EMAIL", ""),
	}

	if cfg.SupabaseURL == "" {
		return cfg, fmt.Errorf("%w: SUPABASE_URL", ErrMissing)
	}
	if cfg.SupabaseAnonKey == "" {
		return cfg, fmt.Errorf("%w: SUPABASE_ANON_KEY", ErrMissing)
	}
	if cfg.SessionSecret == "" {
		return cfg, fmt.Errorf("%w: SESSION_SECRET", ErrMissing)
	}

	if len(cfg.CorsAllowedOrigins) == 0 {
		cfg.CorsAllowedOrigins = []string{"*"}
	}

	cfg.S3Endpoint = get("S3_ENDPOINT", cfg.SupabaseURL+"/storage/v1/s3")

	maxAge, err := time.ParseDuration(get("CACHE_MAX_AGE", "1m"))
	if err != nil {
		return cfg, fmt.Errorf("%w: CACHE_MAX_AGE: %v", ErrInvalid, err)
	}
	cfg.CacheMaxAge = maxAge

	switch cfg.DBDriver {
	case "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("%w: DATABASE_URL (DB_DRIVER=postgres)", ErrMissing)
		}
	default:
		return cfg, fmt.Errorf("%w: DB_DRIVER %q", ErrInvalid, cfg.DBDriver)
	}

	switch cfg.AuthProvider {
	case "supabase", "local":
	default:
		return cfg, fmt.Errorf("%w: AUTH_PROVIDER %q", ErrInvalid, cfg.AuthProvider)
	}

	switch cfg.StorageDriver {
	case "disk":
	case "s3":
		if cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			return cfg, fmt.Errorf("%w: S3_ACCESS_KEY_ID/S3_SECRET_ACCESS_KEY (STORAGE_DRIVER=s3)", ErrMissing)
		}
	case "cloudinary":
		if cfg.CloudinaryURL == "" {
			return cfg, fmt.Errorf("%w: CLOUDINARY_URL (STORAGE_DRIVER=cloudinary)", ErrMissing)
		}
	default:
		return cfg, fmt.Errorf("%w: STORAGE_DRIVER %q", ErrInvalid, cfg.StorageDriver)
	}

	return cfg, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	var out []string
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
