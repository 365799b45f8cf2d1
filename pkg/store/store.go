package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/objectedge/occ-tools-sub002/pkg/apperrors"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store manages the SQLite database holding recorded interactions
type Store struct {
	db *gorm.DB
}

// slogWriter routes gorm's SQL log through slog at debug level
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...interface{}) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "gorm")
}

// Open opens (creating if needed) the database at dbPath and applies migrations
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		TranslateError: true,
		Logger: logger.New(slogWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		sqlDB.Close()
		return nil, err
	}

	// SQLite allows a single writer; one connection serializes transactions
	sqlDB.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

// dsn enables foreign keys and a busy timeout on every connection
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func migrate(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// wrapErr converts constraint failures into IntegrityError and wraps the rest
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "constraint failed") {
		return apperrors.NewIntegrityError(op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
