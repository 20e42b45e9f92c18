package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Table names shared with the change feed
const (
	TasksTable    = "tasks"
	CommentsTable = "task_comments"
	MetricsTable  = "trading_metrics"
)

// ErrNotFound is returned when a row addressed by key does not exist
var ErrNotFound = errors.New("not found")

//go:embed schema.sql
var schemaSQL string

var channelPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// DB wraps the Postgres connection pool
type DB struct {
	*sql.DB
}

// New opens a connection pool and verifies it with a ping
func New(databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
// feedChannel is the NOTIFY channel the change triggers publish on.
func (db *DB) Migrate(ctx context.Context, feedChannel string) error {
	script, err := renderSchema(feedChannel)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func renderSchema(feedChannel string) (string, error) {
	if !channelPattern.MatchString(feedChannel) {
		return "", fmt.Errorf("invalid feed channel name: %q", feedChannel)
	}
	return strings.ReplaceAll(schemaSQL, "{{feed_channel}}", pq.QuoteLiteral(feedChannel)), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
