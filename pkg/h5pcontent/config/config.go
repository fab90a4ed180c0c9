package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/tendant/h5p-content/pkg/h5pcontent"
	"github.com/tendant/h5p-content/pkg/h5pcontent/repo/memory"
	repopg "github.com/tendant/h5p-content/pkg/h5pcontent/repo/postgres"
	"github.com/tendant/h5p-content/pkg/h5pcontent/repo/postgres/migrations"
	fsstorage "github.com/tendant/h5p-content/pkg/h5pcontent/storage/fs"
	memorystorage "github.com/tendant/h5p-content/pkg/h5pcontent/storage/memory"
	s3storage "github.com/tendant/h5p-content/pkg/h5pcontent/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		DBSchema:     "h5p",
		StorageType:  "memory",
		LogLevel:     "info",
		S3: S3Config{
			Region: "us-east-1",
		},
	}
}

// ServerConfig represents configuration for the h5p-content service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	LogLevel    string // debug, info, warn, error

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: h5p)
	AutoMigrate  bool   // apply embedded migrations when building the service

	// Object storage configuration
	StorageType string // "memory", "fs", "s3"
	FSBaseDir   string
	S3          S3Config

	// API key (hex SHA-256) accepted by the HTTP server; empty disables the check
	APIKeySHA256 string

	// Browser origins allowed to call the API; empty disables CORS
	CORSAllowedOrigins []string
}

// S3Config holds the S3 or MinIO object store settings
type S3Config struct {
	Bucket                 string
	Region                 string
	AccessKeyID            string
	SecretAccessKey        string
	Endpoint               string
	UsePathStyle           bool
	CreateBucketIfNotExist bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	default:
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.FSBaseDir == "" {
			return errors.New("fs base directory is required when using fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// Logger returns a JSON slog logger at the configured level
func (c *ServerConfig) Logger() *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// BuildService creates a Service from the configuration. The returned close
// function releases the database pool, if one was opened.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (h5pcontent.Service, func(), error) {
	if logger == nil {
		logger = c.Logger()
	}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.BuildObjectStore()
	if err != nil {
		closeRepo()
		return nil, nil, fmt.Errorf("failed to build object store: %w", err)
	}

	svc, err := h5pcontent.New(
		h5pcontent.WithRepository(repo),
		h5pcontent.WithObjectStore(store),
		h5pcontent.WithLogger(logger),
	)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}
	return svc, closeRepo, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (h5pcontent.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), func() {}, nil
	case "postgres":
		pool, err := c.OpenPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		if c.AutoMigrate {
			err = c.Migrate(ctx, pool)
		} else {
			err = c.CheckMigrations(pool)
		}
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repopg.NewWithPool(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// OpenPool creates a pgx pool whose sessions use the configured schema.
func (c *ServerConfig) OpenPool(ctx context.Context) (*pgxpool.Pool, error) {
	if c.DatabaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	schema := c.DBSchema
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if schema == "" {
			return nil
		}
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// Migrate creates the configured schema if needed and applies pending migrations.
func (c *ServerConfig) Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if c.DBSchema != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{c.DBSchema}.Sanitize()); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", c.DBSchema, err)
		}
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return migrations.MigrateUp(db)
}

// MigrationStatus reports the schema version of the configured database.
func (c *ServerConfig) MigrationStatus(pool *pgxpool.Pool) (migrations.Status, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return migrations.CurrentStatus(db)
}

// CheckMigrations fails unless the database schema matches the embedded migrations.
func (c *ServerConfig) CheckMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := migrations.CheckMigrationStatus(db); err != nil {
		return fmt.Errorf("%w; run 'h5padmin migrate up' or set AUTO_MIGRATE=true", err)
	}
	return nil
}

// BuildObjectStore creates the configured object store
func (c *ServerConfig) BuildObjectStore() (h5pcontent.ObjectStore, error) {
	switch c.StorageType {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		store, err := fsstorage.New(fsstorage.Config{BaseDir: c.FSBaseDir})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		store, err := s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}
}
