package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/valpere/geopogoda/internal/config"
	"github.com/valpere/geopogoda/internal/locations"
)

func buildDSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
}

func buildRedisAddr(cfg *config.RedisConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

func Connect(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  buildDSN(cfg),
		PreferSimpleProtocol: true, // Disable prepared statement cache for poolers
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := prepare(db); err != nil {
		return nil, err
	}

	return db, nil
}

// prepare sizes the connection pool and migrates the schema. The pool is
// closed when migration fails.
func prepare(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(db); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func ConnectRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     buildRedisAddr(cfg),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&locations.LocationRow{})
}

// OpenBackend connects the storage backend selected by cfg.Storage.Backend.
// The returned close function releases its connections and is never nil.
func OpenBackend(cfg *config.Config, log *zerolog.Logger) (locations.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Backend {
	case config.StorageFile, "":
		backend := locations.NewFileBackend(cfg.Storage.DataDir, cfg.Storage.FileName)
		log.Info().Str("path", backend.Path()).Msg("Using file location storage")
		return backend, noop, nil

	case config.StorageRedis:
		rdb, err := ConnectRedis(&cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		log.Info().
			Str("addr", buildRedisAddr(&cfg.Redis)).
			Str("key", cfg.Storage.RedisKey).
			Msg("Using Redis location storage")
		return locations.NewRedisBackend(rdb, cfg.Storage.RedisKey), rdb.Close, nil

	case config.StoragePostgres:
		db, err := Connect(&cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, fmt.Errorf("failed to get database instance: %w", err)
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Str("database", cfg.Database.Name).
			Msg("Using PostgreSQL location storage")
		return locations.NewPostgresBackend(db), sqlDB.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// CopyLocations replaces everything in dst with the contents of src and
// returns the number of entries copied.
func CopyLocations(ctx context.Context, src, dst locations.Backend) (int, error) {
	snapshot, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read locations from %s: %w", src.Name(), err)
	}
	if err := dst.Save(ctx, snapshot); err != nil {
		return 0, fmt.Errorf("failed to write locations to %s: %w", dst.Name(), err)
	}
	return len(snapshot), nil
}
