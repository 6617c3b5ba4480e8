package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "github.com/NjengaIWJ/tetea-jamii/internal/platform/errors"
)

const (
	defaultTokenExpiry  = time.Hour
	defaultCookieMaxAge = 24 * time.Hour
	defaultPort         = 8080
)

// Loader reads configuration from an optional yaml file, then applies
// environment overrides loaded via .env.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader reading the default config path.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      "config.yaml",
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the yaml config path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load assembles configuration from defaults, the yaml file, and environment.
// The signing secret is mandatory; loading fails without it.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using system environment")
		}
	}

	cfg := defaults()

	path := l.path
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "failed to parse config file", err)
		}
	} else {
		path = ""
	}

	applyEnv(cfg)

	if cfg.Auth.Secret == "" {
		return nil, platformerrors.New(platformerrors.KindConfig, "config.load", "JWT_SECRET environment variable is not set")
	}
	if cfg.Auth.TokenExpiry <= 0 {
		cfg.Auth.TokenExpiry = defaultTokenExpiry
	}
	if cfg.Auth.CookieMaxAge <= 0 {
		cfg.Auth.CookieMaxAge = defaultCookieMaxAge
	}

	return &Result{Config: cfg, Path: path}, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: defaultPort,
			Mode: "development",
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "./logs",
			File:  "server.log",
		},
		Web: WebConfig{
			StaticDir: "./web",
		},
		Auth: AuthConfig{
			TokenExpiry:  defaultTokenExpiry,
			CookieMaxAge: defaultCookieMaxAge,
		},
		Storage: StorageConfig{
			DSN: "./data/tetea.db",
		},
		Limiter: LimiterConfig{
			MaxFailures: 5,
			BlockFor:    15 * time.Minute,
			Prefix:      "tetea",
		},
		Media: MediaConfig{
			MaxFileSize:  10 * 1024 * 1024,
			MaxFileCount: 6,
			MaxDimension: 1920,
			Quality:      80,
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Server.Mode = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("EXPIRY_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Auth.TokenExpiry = d
		}
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		cfg.Web.FrontendURL = v
	}
	if v := os.Getenv("SQLITE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Limiter.Enabled = true
		cfg.Limiter.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Limiter.Password = v
	}
	if v := os.Getenv("MEDIA_BUCKET"); v != "" {
		cfg.Media.Bucket = v
	}
	if v := os.Getenv("MEDIA_REGION"); v != "" {
		cfg.Media.Region = v
	}
	if v := os.Getenv("MEDIA_ENDPOINT"); v != "" {
		cfg.Media.Endpoint = v
	}
	if v := os.Getenv("MEDIA_ACCESS_KEY"); v != "" {
		cfg.Media.AccessKey = v
	}
	if v := os.Getenv("MEDIA_SECRET_KEY"); v != "" {
		cfg.Media.SecretKey = v
	}
	if v := os.Getenv("MEDIA_PUBLIC_URL"); v != "" {
		cfg.Media.PublicURL = v
	}
	if v := os.Getenv("EMAIL_HOST"); v != "" {
		cfg.Mail.Host = v
	}
	if v := os.Getenv("EMAIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Mail.Port = port
		}
	}
	if v := os.Getenv("EMAIL_USER"); v != "" {
		cfg.Mail.Username = v
		if cfg.Mail.To == "" {
			cfg.Mail.To = v
		}
	}
	if v := os.Getenv("EMAIL_PASS"); v != "" {
		cfg.Mail.Password = v
	}
	if v := os.Getenv("ADMIN_SEED_EMAIL"); v != "" {
		cfg.Auth.SeedEmail = v
	}
	if v := os.Getenv("ADMIN_SEED_USERNAME"); v != "" {
		cfg.Auth.SeedUsername = v
	}
	if v := os.Getenv("ADMIN_SEED_PASSWORD"); v != "" {
		cfg.Auth.SeedPassword = v
	}
}
