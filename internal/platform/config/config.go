package config

import "time"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Web     WebConfig     `yaml:"web"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Limiter LimiterConfig `yaml:"limiter"`
	Media   MediaConfig   `yaml:"media"`
	Mail    MailConfig    `yaml:"mail"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
	// Mode is either "production" or "development"; it drives cookie
	// secure/SameSite policy and gin's run mode.
	Mode string `yaml:"mode"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	StaticDir string `yaml:"static_dir"`
	// FrontendURL is the origin allowed for credentialed CORS requests.
	FrontendURL string `yaml:"frontend_url"`
}

type AuthConfig struct {
	// Secret signs session tokens. Required; startup fails without it.
	Secret string `yaml:"secret"`
	// TokenExpiry bounds token validity. Defaults to one hour.
	TokenExpiry time.Duration `yaml:"token_expiry"`
	// CookieMaxAge is the session cookie lifetime. The cookie may outlive
	// the token; the refresh endpoint renews the token within that window.
	CookieMaxAge time.Duration `yaml:"cookie_max_age"`
	// SeedEmail/SeedPassword create a bootstrap admin on an empty store.
	SeedEmail    string `yaml:"seed_email"`
	SeedUsername string `yaml:"seed_username"`
	SeedPassword string `yaml:"seed_password"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

type LimiterConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	Username    string        `yaml:"username,omitempty"`
	Password    string        `yaml:"password,omitempty"`
	DB          int           `yaml:"db,omitempty"`
	Prefix      string        `yaml:"prefix,omitempty"`
	MaxFailures int           `yaml:"max_failures"`
	BlockFor    time.Duration `yaml:"block_for"`
}

type MediaConfig struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	PublicURL    string `yaml:"public_url"`
	MaxFileSize  int64  `yaml:"max_file_size"`
	MaxFileCount int    `yaml:"max_file_count"`
	MaxDimension int    `yaml:"max_dimension"`
	Quality      int    `yaml:"quality"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	To       string `yaml:"to"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "production"
}
