// Package postgres implements the job, artifact and catalog stores using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/lamim/programforge/internal/config"
)

// Store provides PostgreSQL-backed implementations of job.Store,
// job.ArtifactStore, catalog.Provider and catalog.ProfileResolver.
type Store struct {
	db *sql.DB
}

// Open connects to databaseURL and verifies the connection
func Open(ctx context.Context, databaseURL string, cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing connection pool
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
