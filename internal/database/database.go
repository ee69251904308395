package database

import (
	"context"
	"fmt"
	"time"

	"jlrp/internal/config"
	"jlrp/internal/repositories"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const connectTimeout = 10 * time.Second

// Store is an open storage backend and the repositories built over it.
type Store struct {
	Repos repositories.Set
	close func(ctx context.Context) error
}

// Close releases the underlying connection pool.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open connects to the backend selected by cfg.DBDriver and prepares its
// schema or indexes.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	switch cfg.DBDriver {
	case "mongo":
		return openMongo(ctx, cfg, log)
	case "postgres":
		return openGORM(postgres.Open(cfg.DatabaseDSN), cfg, log)
	case "sqlite":
		return openGORM(sqlite.Open(cfg.DatabaseDSN), cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// OpenGORM opens a SQL database with the settings the repositories need.
func OpenGORM(dialector gorm.Dialector, verbose bool) (*gorm.DB, error) {
	level := gormlogger.Warn
	if verbose {
		level = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repositories.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return db, nil
}

func openGORM(dialector gorm.Dialector, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	db, err := OpenGORM(dialector, cfg.LogLevel == "debug")
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("database connected")
	return &Store{
		Repos: repositories.NewGORMSet(db),
		close: func(context.Context) error { return sqlDB.Close() },
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	db := client.Database(cfg.DBName)
	if err := repositories.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info().Str("driver", "mongo").Str("database", cfg.DBName).Msg("database connected")
	return &Store{
		Repos: repositories.NewMongoSet(db),
		close: client.Disconnect,
	}, nil
}
