package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// EnvConfig is the environment (or config file) representation of ServerConfig.
//
// Database:
//
//	DATABASE_URL - "memory" (default) or "postgres://..." / "postgresql://..."
//	DB_SCHEMA    - Postgres schema (default: h5p)
//	AUTO_MIGRATE - apply embedded migrations on startup
//
// Storage:
//
//	STORAGE_URL - one of:
//	              "memory://" (default)
//	              "file:///path/to/data"
//	              "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true&create_bucket=true"
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY - static S3 credentials
//
// HTTP:
//
//	API_KEY_SHA256       - hex SHA-256 of the accepted API key
//	CORS_ALLOWED_ORIGINS - comma separated browser origins, e.g. "https://lms.example.com"
type EnvConfig struct {
	Port         string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment  string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	DatabaseURL  string `yaml:"database_url" env:"DATABASE_URL" env-default:"memory"`
	DBSchema     string `yaml:"db_schema" env:"DB_SCHEMA" env-default:"h5p"`
	AutoMigrate  bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE" env-default:"false"`
	StorageURL   string `yaml:"storage_url" env:"STORAGE_URL" env-default:"memory://"`
	AccessKeyID  string `yaml:"aws_access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretKey    string `yaml:"aws_secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	APIKeySHA256 string `yaml:"api_key_sha256" env:"API_KEY_SHA256"`
	CORSOrigins  string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// WithEnv reads EnvConfig from the process environment.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env EnvConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		return env.apply(c)
	}
}

// WithConfigFile reads EnvConfig from a YAML, JSON, TOML or .env file;
// environment variables override file values.
func WithConfigFile(path string) Option {
	return func(c *ServerConfig) error {
		var env EnvConfig
		if err := cleanenv.ReadConfig(path, &env); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return env.apply(c)
	}
}

func (e EnvConfig) apply(c *ServerConfig) error {
	c.Port = e.Port
	c.Environment = e.Environment
	c.LogLevel = e.LogLevel
	c.DBSchema = e.DBSchema
	c.AutoMigrate = e.AutoMigrate
	c.APIKeySHA256 = e.APIKeySHA256
	c.CORSAllowedOrigins = splitList(e.CORSOrigins)

	if err := applyDatabaseURL(e.DatabaseURL, c); err != nil {
		return err
	}
	if err := applyStorageURL(e.StorageURL, c); err != nil {
		return err
	}
	if e.AccessKeyID != "" && e.SecretKey != "" {
		c.S3.AccessKeyID = e.AccessKeyID
		c.S3.SecretAccessKey = e.SecretKey
	}
	return nil
}

func applyDatabaseURL(dbURL string, c *ServerConfig) error {
	switch {
	case dbURL == "" || dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
	}
	return nil
}

func applyStorageURL(storageURL string, c *ServerConfig) error {
	if storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.StorageType = "memory"
		return nil
	}

	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		dir := u.Host + u.Path
		if dir == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.StorageType = "fs"
		c.FSBaseDir = dir
	case "s3":
		if u.Host == "" {
			return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
		}
		q := u.Query()
		c.StorageType = "s3"
		c.S3.Bucket = u.Host
		if region := q.Get("region"); region != "" {
			c.S3.Region = region
		}
		c.S3.Endpoint = q.Get("endpoint")
		if c.S3.UsePathStyle, err = parseBoolParam(q, "path_style"); err != nil {
			return err
		}
		if c.S3.CreateBucketIfNotExist, err = parseBoolParam(q, "create_bucket"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
	}
	return nil
}

func parseBoolParam(q url.Values, key string) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s in STORAGE_URL: %w", key, err)
	}
	return v, nil
}

// splitList parses a comma separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
