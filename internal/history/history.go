// Package history keeps an optional Postgres audit trail of poll cycles and
// booking attempts. Monitoring never depends on it: a nil Journal drops
// every record.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"visawatch/internal/config"
	"visawatch/pkg/types"
)

// CheckRecord is one poll-cycle observation.
type CheckRecord struct {
	CheckedAt time.Time
	Facility  string
	Found     types.Date
	Accepted  bool
	Note      string
}

// AttemptRecord is one booking attempt and its outcome.
type AttemptRecord struct {
	AttemptedAt time.Time
	Facility    string
	Date        types.Date
	Status      types.BookingStatus
	Detail      string
}

// Journal writes the audit trail. The zero-value nil Journal is valid and
// discards everything.
type Journal struct {
	db          *sql.DB
	autoMigrate bool
}

// Open connects the journal described by cfg. A disabled config yields a nil
// journal and no error.
func Open(cfg config.HistoryConfig) (*Journal, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("history config missing driver or dsn")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open history connection: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if cfg.CreateIfMissing && shouldAttemptCreateDatabase(cfg.Driver, err) {
			_ = db.Close()
			if err := createDatabase(ctx, cfg); err != nil {
				return nil, err
			}
			db, err = sql.Open(cfg.Driver, cfg.DSN)
			if err != nil {
				return nil, fmt.Errorf("open history connection: %w", err)
			}
			if err := db.PingContext(ctx); err != nil {
				return nil, fmt.Errorf("ping history connection: %w", err)
			}
		} else {
			return nil, fmt.Errorf("ping history connection: %w", err)
		}
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}
	journal := &Journal{db: db, autoMigrate: cfg.AutoMigrate}
	if cfg.AutoMigrate {
		if err := journal.ensureSchema(context.Background()); err != nil {
			return nil, err
		}
	}
	return journal, nil
}

// RecordCheck stores one poll-cycle observation.
func (j *Journal) RecordCheck(ctx context.Context, rec CheckRecord) error {
	if j == nil || j.db == nil {
		return nil
	}
	insert := func() error {
		var found any
		if !rec.Found.IsZero() {
			found = rec.Found.String()
		}
		_, err := j.db.ExecContext(ctx, `
        INSERT INTO checks (checked_at, facility, found_date, accepted, note)
        VALUES ($1,$2,$3,$4,$5)
    `, rec.CheckedAt, rec.Facility, found, rec.Accepted, rec.Note)
		return err
	}
	return j.withSchemaRetry(ctx, "insert check", insert)
}

// RecordAttempt stores one booking attempt.
func (j *Journal) RecordAttempt(ctx context.Context, rec AttemptRecord) error {
	if j == nil || j.db == nil {
		return nil
	}
	insert := func() error {
		_, err := j.db.ExecContext(ctx, `
        INSERT INTO attempts (attempted_at, facility, date, status, detail)
        VALUES ($1,$2,$3,$4,$5)
    `, rec.AttemptedAt, rec.Facility, rec.Date.String(), string(rec.Status), rec.Detail)
		return err
	}
	return j.withSchemaRetry(ctx, "insert attempt", insert)
}

// RecentAttempts returns the latest booking attempts, newest first. A nil
// journal returns no rows.
func (j *Journal) RecentAttempts(ctx context.Context, limit int) ([]AttemptRecord, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	var records []AttemptRecord
	query := func() error {
		rows, err := j.db.QueryContext(ctx, `
        SELECT attempted_at, facility, date, status, detail
        FROM attempts
        ORDER BY attempted_at DESC
        LIMIT $1
    `, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		records = records[:0]
		for rows.Next() {
			var (
				rec      AttemptRecord
				facility sql.NullString
				day      time.Time
				status   string
				detail   sql.NullString
			)
			if err := rows.Scan(&rec.AttemptedAt, &facility, &day, &status, &detail); err != nil {
				return err
			}
			rec.Facility = facility.String
			rec.Date = types.DateOf(day)
			rec.Status = types.BookingStatus(status)
			rec.Detail = detail.String
			records = append(records, rec)
		}
		return rows.Err()
	}
	if err := j.withSchemaRetry(ctx, "query attempts", query); err != nil {
		return nil, err
	}
	return records, nil
}

func (j *Journal) withSchemaRetry(ctx context.Context, what string, op func() error) error {
	if err := op(); err != nil {
		if j.autoMigrate && isUndefinedTableErr(err) {
			if schemaErr := j.ensureSchema(ctx); schemaErr != nil {
				return fmt.Errorf("ensure schema: %w", schemaErr)
			}
			if retryErr := op(); retryErr != nil {
				return fmt.Errorf("%s: %w", what, retryErr)
			}
			return nil
		}
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// Close closes the underlying connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	if j == nil || j.db == nil || !j.autoMigrate {
		return nil
	}
	schemaCtx := ctx
	if schemaCtx == nil || schemaCtx.Err() != nil {
		schemaCtx = context.Background()
	}
	schemaCtx, cancel := context.WithTimeout(schemaCtx, 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checks (
		    id BIGSERIAL PRIMARY KEY,
		    checked_at TIMESTAMPTZ NOT NULL,
		    facility TEXT,
		    found_date DATE,
		    accepted BOOLEAN NOT NULL DEFAULT FALSE,
		    note TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checks_checked_at ON checks (checked_at DESC)`,
		`CREATE TABLE IF NOT EXISTS attempts (
		    id BIGSERIAL PRIMARY KEY,
		    attempted_at TIMESTAMPTZ NOT NULL,
		    facility TEXT,
		    date DATE NOT NULL,
		    status TEXT NOT NULL,
		    detail TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_attempted_at ON attempts (attempted_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(schemaCtx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func shouldAttemptCreateDatabase(driver string, err error) bool {
	if !strings.EqualFold(driver, "postgres") {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "3D000"
	}
	return strings.Contains(strings.ToLower(err.Error()), "does not exist")
}

func createDatabase(ctx context.Context, cfg config.HistoryConfig) error {
	parsed, err := url.Parse(cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return errors.New("dsn missing database name")
	}
	if strings.EqualFold(dbName, "postgres") {
		return fmt.Errorf("target database %q cannot be auto-created", dbName)
	}
	parsed.Path = "/postgres"
	adminDB, err := sql.Open(cfg.Driver, parsed.String())
	if err != nil {
		return fmt.Errorf("connect admin database: %w", err)
	}
	defer adminDB.Close()
	if err := adminDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping admin database: %w", err)
	}
	stmt := fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))
	if _, err := adminDB.ExecContext(ctx, stmt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return nil
		}
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	return nil
}

func isUndefinedTableErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist")
}
