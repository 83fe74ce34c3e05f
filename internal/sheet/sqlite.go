package sheet

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gridmind/gridmind/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteStore persists sheet snapshots in SQLite with WAL journaling.
// Separate write and read connections keep reads from queueing behind the
// single-writer lock.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB // write connection
	readDB *sql.DB // read-only connection
	mu     sync.RWMutex

	maxRetries    int
	baseRetryWait time.Duration
}

// NewSQLiteStore opens (or creates) the store at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	s := &SQLiteStore{
		dbPath:        dbPath,
		maxRetries:    5,
		baseRetryWait: 100 * time.Millisecond,
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening write database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	readDB, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(1000)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening read database: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	s.readDB = readDB

	if err := s.migrate(); err != nil {
		_ = db.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	migrations := []string{migrationV1}
	for i, migration := range migrations {
		version := i + 1
		if version <= currentVersion {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration transaction: %w", err)
		}
		for _, stmt := range splitStatements(migration) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("executing migration v%d: %w", version, err)
			}
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration v%d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration v%d: %w", version, err)
		}
	}
	return nil
}

// splitStatements splits a SQL script into individual statements, dropping
// comment-only fragments.
func splitStatements(script string) []string {
	var statements []string
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		var sqlLines []string
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				sqlLines = append(sqlLines, line)
			}
		}
		if len(sqlLines) > 0 {
			statements = append(statements, strings.Join(sqlLines, "\n"))
		}
	}
	return statements
}

// retryWrite retries writes that hit the SQLite busy lock.
func (s *SQLiteStore) retryWrite(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := fn(); err != nil {
			if isSQLiteBusy(err) {
				lastErr = err
				wait := s.baseRetryWait * time.Duration(1<<attempt)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
					continue
				}
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("%s failed after %d retries: %w", operation, s.maxRetries, lastErr)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// Save persists a snapshot, replacing any previous one with the same ID.
func (s *SQLiteStore) Save(ctx context.Context, snap *core.SheetSnapshot) error {
	columnsJSON, err := json.Marshal(snap.Columns)
	if err != nil {
		return fmt.Errorf("encoding columns: %w", err)
	}
	rowsJSON, err := json.Marshal(snap.Rows)
	if err != nil {
		return fmt.Errorf("encoding rows: %w", err)
	}

	return s.retryWrite(ctx, "Save", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sheets (id, columns_json, rows_json, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				columns_json = excluded.columns_json,
				rows_json = excluded.rows_json,
				updated_at = excluded.updated_at
		`, snap.ID, string(columnsJSON), string(rowsJSON),
			snap.UpdatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}

		// Replace dependent rows wholesale; snapshots are small.
		if _, err := tx.ExecContext(ctx, "DELETE FROM sheet_cells WHERE sheet_id = ?", snap.ID); err != nil {
			return err
		}
		for _, cell := range snap.Cells {
			cellJSON, err := json.Marshal(cell)
			if err != nil {
				return fmt.Errorf("encoding cell %s: %w", cell.Ref, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sheet_cells (sheet_id, row, col, cell_json)
				VALUES (?, ?, ?, ?)
			`, snap.ID, cell.Ref.Row, string(cell.Ref.Col), string(cellJSON)); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM sheet_instructions WHERE sheet_id = ?", snap.ID); err != nil {
			return err
		}
		for col, inst := range snap.Instructions {
			instJSON, err := json.Marshal(inst)
			if err != nil {
				return fmt.Errorf("encoding instruction for %s: %w", col, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sheet_instructions (sheet_id, col, instruction_json)
				VALUES (?, ?, ?)
			`, snap.ID, string(col), string(instJSON)); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

// Load retrieves a snapshot. Returns nil and no error when absent.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*core.SheetSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.readDB.QueryRowContext(ctx,
		"SELECT columns_json, rows_json, updated_at FROM sheets WHERE id = ?", id)

	var columnsJSON, rowsJSON, updatedAt string
	err := row.Scan(&columnsJSON, &rowsJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sheet: %w", err)
	}

	snap := &core.SheetSnapshot{ID: id, Instructions: make(map[core.ColumnID]*core.ColumnInstruction)}
	if err := json.Unmarshal([]byte(columnsJSON), &snap.Columns); err != nil {
		return nil, fmt.Errorf("decoding columns: %w", err)
	}
	if err := json.Unmarshal([]byte(rowsJSON), &snap.Rows); err != nil {
		return nil, fmt.Errorf("decoding rows: %w", err)
	}
	snap.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	cellRows, err := s.readDB.QueryContext(ctx,
		"SELECT cell_json FROM sheet_cells WHERE sheet_id = ? ORDER BY row, col", id)
	if err != nil {
		return nil, fmt.Errorf("querying cells: %w", err)
	}
	defer cellRows.Close()
	for cellRows.Next() {
		var cellJSON string
		if err := cellRows.Scan(&cellJSON); err != nil {
			return nil, fmt.Errorf("scanning cell: %w", err)
		}
		var cell core.Cell
		if err := json.Unmarshal([]byte(cellJSON), &cell); err != nil {
			return nil, fmt.Errorf("decoding cell: %w", err)
		}
		snap.Cells = append(snap.Cells, &cell)
	}
	if err := cellRows.Err(); err != nil {
		return nil, err
	}

	instRows, err := s.readDB.QueryContext(ctx,
		"SELECT col, instruction_json FROM sheet_instructions WHERE sheet_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying instructions: %w", err)
	}
	defer instRows.Close()
	for instRows.Next() {
		var col, instJSON string
		if err := instRows.Scan(&col, &instJSON); err != nil {
			return nil, fmt.Errorf("scanning instruction: %w", err)
		}
		var inst core.ColumnInstruction
		if err := json.Unmarshal([]byte(instJSON), &inst); err != nil {
			return nil, fmt.Errorf("decoding instruction: %w", err)
		}
		snap.Instructions[core.ColumnID(col)] = &inst
	}
	return snap, instRows.Err()
}

// List returns all stored sheet IDs, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.readDB.QueryContext(ctx, "SELECT id FROM sheets ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("querying sheets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a snapshot and its dependent rows.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return s.retryWrite(ctx, "Delete", func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM sheets WHERE id = ?", id)
		return err
	})
}

// Close releases both connections.
func (s *SQLiteStore) Close() error {
	var firstErr error
	if err := s.readDB.Close(); err != nil {
		firstErr = err
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
