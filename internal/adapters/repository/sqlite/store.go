// Package sqlite provides a SQLite-backed encounter store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/fightlog/internal/adapters/repository"
	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/pkg/metrics"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const driver = "sqlite"

//go:embed schema.sql
var schema string

// Store persists finished encounters in SQLite. Each record is kept whole
// as JSON next to the columns used for listing and ranking.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save implements repository.Store.
func (s *Store) Save(ctx context.Context, rec encounter.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.Validate(rec); err != nil {
		metrics.RecordStoreError(driver)
		return fmt.Errorf("save: %w", err)
	}
	body, err := json.Marshal(rec)
	if err != nil {
		metrics.RecordStoreError(driver)
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", rec.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO encounters (id, adversary, zone, status, started_at, updated_at, total_damage, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Adversary.Name,
		rec.Zone,
		rec.Status.String(),
		toMillis(rec.StartedAt),
		toMillis(rec.UpdatedAt),
		rec.TotalDamage(),
		body,
	)
	if err != nil {
		metrics.RecordStoreError(driver)
		if isUniqueViolation(err) {
			return fmt.Errorf("save %s: %w", rec.ID, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("insert encounter %s: %w", rec.ID, err)
	}

	for _, p := range rec.Participants {
		if p.OutboundHitSum <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO participant_damage (encounter_id, name, damage) VALUES (?, ?, ?)`,
			rec.ID, p.Name, p.OutboundHitSum,
		); err != nil {
			metrics.RecordStoreError(driver)
			return fmt.Errorf("insert participant %s/%s: %w", rec.ID, p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordStoreError(driver)
		return fmt.Errorf("commit save %s: %w", rec.ID, err)
	}
	metrics.RecordRecordStored(driver)
	return nil
}

// Get implements repository.Store.
func (s *Store) Get(ctx context.Context, id string) (encounter.Record, error) {
	var body []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT body FROM encounters WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return encounter.Record{}, fmt.Errorf("get %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		metrics.RecordStoreError(driver)
		return encounter.Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	return decode(body)
}

// List implements repository.Store.
func (s *Store) List(ctx context.Context, limit int) ([]encounter.Record, error) {
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT body FROM encounters ORDER BY updated_at DESC, id LIMIT ?`, limit)
	if err != nil {
		metrics.RecordStoreError(driver)
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	defer rows.Close()

	var out []encounter.Record
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan encounter: %w", err)
		}
		rec, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encounters: %w", err)
	}
	return out, nil
}

// TopDamage implements repository.Store. A participant's best is the first
// stored encounter reaching their highest damage.
func (s *Store) TopDamage(ctx context.Context, n int) ([]repository.Entry, error) {
	if n < 1 {
		return nil, repository.ErrInvalidLimit
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, damage, encounter_id, adversary FROM (
		   SELECT p.name, p.damage, p.encounter_id, e.adversary,
		          ROW_NUMBER() OVER (PARTITION BY p.name ORDER BY p.damage DESC, e.updated_at, p.encounter_id) AS rn
		   FROM participant_damage p JOIN encounters e ON e.id = p.encounter_id
		 ) WHERE rn = 1
		 ORDER BY damage DESC, name
		 LIMIT ?`, n)
	if err != nil {
		metrics.RecordStoreError(driver)
		return nil, fmt.Errorf("top damage: %w", err)
	}
	defer rows.Close()

	var out []repository.Entry
	for rows.Next() {
		var e repository.Entry
		if err := rows.Scan(&e.Name, &e.Damage, &e.EncounterID, &e.Adversary); err != nil {
			return nil, fmt.Errorf("scan top damage: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top damage: %w", err)
	}
	repository.AssignRanks(out)
	return out, nil
}

// Count implements repository.Store. Query failures count as zero.
func (s *Store) Count(ctx context.Context) int {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM encounters`).Scan(&n); err != nil {
		metrics.RecordStoreError(driver)
		return 0
	}
	return n
}

func decode(body []byte) (encounter.Record, error) {
	var rec encounter.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return encounter.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ repository.Store = (*Store)(nil)
