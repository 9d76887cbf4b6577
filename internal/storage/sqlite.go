package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure Go SQLite driver with FTS5

	"github.com/hyperjump/fulltextable/internal/models"
	"github.com/hyperjump/fulltextable/internal/query"
)

// DefaultTable is the index row table name used when none is configured.
const DefaultTable = "fulltext_rows"

// SQLiteStorage implements Storage using an SQLite table mirrored into an FTS5 index.
type SQLiteStorage struct {
	db    *sql.DB
	table string
}

// NewSQLiteStorage opens or creates the index row database at dbPath and initializes the schema.
// An empty dbPath or ":memory:" opens an in-memory database. table defaults to DefaultTable
// and must be a plain identifier.
func NewSQLiteStorage(dbPath, table string) (*SQLiteStorage, error) {
	if table == "" {
		table = DefaultTable
	}
	if !query.ValidType(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	dsn := ":memory:"
	if dbPath != "" && dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{db: db, table: table}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS {t} (
		id INTEGER PRIMARY KEY,
		fulltextable_type VARCHAR(50) NOT NULL,
		fulltextable_id INTEGER NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		parent_id INTEGER
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_{t}_type_id ON {t}(fulltextable_type, fulltextable_id);
	CREATE INDEX IF NOT EXISTS idx_{t}_parent_id ON {t}(parent_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS {t}_fts USING fts5(
		value,
		content='{t}',
		content_rowid='id',
		tokenize='unicode61'
	);

	CREATE TRIGGER IF NOT EXISTS {t}_ai AFTER INSERT ON {t} BEGIN
		INSERT INTO {t}_fts(rowid, value) VALUES (new.id, new.value);
	END;

	CREATE TRIGGER IF NOT EXISTS {t}_ad AFTER DELETE ON {t} BEGIN
		INSERT INTO {t}_fts({t}_fts, rowid, value) VALUES ('delete', old.id, old.value);
	END;

	CREATE TRIGGER IF NOT EXISTS {t}_au AFTER UPDATE OF value ON {t} BEGIN
		INSERT INTO {t}_fts({t}_fts, rowid, value) VALUES ('delete', old.id, old.value);
		INSERT INTO {t}_fts(rowid, value) VALUES (new.id, new.value);
	END;
	`
	_, err := s.db.Exec(strings.ReplaceAll(schema, "{t}", s.table))
	return err
}

// Table returns the index row table name.
func (s *SQLiteStorage) Table() string {
	return s.table
}

// Create inserts row and sets its ID. A row that already exists for the same
// (type, id) pair yields a *models.ConflictError.
func (s *SQLiteStorage) Create(ctx context.Context, row *models.Row) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (fulltextable_type, fulltextable_id, value, parent_id)
		 VALUES (?, ?, ?, ?)`,
		row.SourceType, row.SourceID, row.Value, nullInt64(row.ParentID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &models.ConflictError{Type: row.SourceType, ID: row.SourceID}
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	row.ID = id
	return nil
}

// Get returns the row for a source record, or models.ErrNotFound.
func (s *SQLiteStorage) Get(ctx context.Context, sourceType string, sourceID int64) (*models.Row, error) {
	var row models.Row
	var parent sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, fulltextable_type, fulltextable_id, value, parent_id
		 FROM `+s.table+` WHERE fulltextable_type = ? AND fulltextable_id = ?`,
		sourceType, sourceID,
	).Scan(&row.ID, &row.SourceType, &row.SourceID, &row.Value, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index row %s/%d: %w", sourceType, sourceID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	row.ParentID = int64Ptr(parent)
	return &row, nil
}

// Update overwrites the value and parent of an existing row.
func (s *SQLiteStorage) Update(ctx context.Context, row *models.Row) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE `+s.table+` SET value = ?, parent_id = ?
		 WHERE fulltextable_type = ? AND fulltextable_id = ?`,
		row.Value, nullInt64(row.ParentID), row.SourceType, row.SourceID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("index row %s/%d: %w", row.SourceType, row.SourceID, models.ErrNotFound)
	}
	return nil
}

// Delete removes the row for a source record. Missing rows are not an error.
func (s *SQLiteStorage) Delete(ctx context.Context, sourceType string, sourceID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM `+s.table+` WHERE fulltextable_type = ? AND fulltextable_id = ?`,
		sourceType, sourceID,
	)
	return err
}

// Search runs q against the FTS5 index.
func (s *SQLiteStorage) Search(ctx context.Context, q *query.Query) ([]*models.Row, error) {
	if q.Empty {
		return []*models.Row{}, nil
	}
	stmt, args := s.searchSQL(q)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("full-text search failed: %w", err)
	}
	defer rows.Close()

	out := []*models.Row{}
	for rows.Next() {
		var row models.Row
		var parent sql.NullInt64
		if err := rows.Scan(&row.ID, &row.SourceType, &row.SourceID, &row.Value, &parent, &row.Relevance); err != nil {
			return nil, err
		}
		row.ParentID = int64Ptr(parent)
		out = append(out, &row)
	}
	return out, rows.Err()
}

// Count returns the number of rows matching q.
func (s *SQLiteStorage) Count(ctx context.Context, q *query.Query) (int64, error) {
	if q.Empty {
		return 0, nil
	}
	where, args := s.whereSQL(q)
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+s.table+`_fts JOIN `+s.table+` AS r ON r.id = `+s.table+`_fts.rowid`+where,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("full-text count failed: %w", err)
	}
	return count, nil
}

// CountRows returns the total number of index rows.
func (s *SQLiteStorage) CountRows(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.table).Scan(&count)
	return count, err
}

// Rebuild regenerates the FTS5 index from the row table.
func (s *SQLiteStorage) Rebuild(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.table+`_fts(`+s.table+`_fts) VALUES ('rebuild')`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) searchSQL(q *query.Query) (string, []interface{}) {
	where, args := s.whereSQL(q)
	var b strings.Builder
	b.WriteString(`SELECT r.id, r.fulltextable_type, r.fulltextable_id, r.value, r.parent_id, -bm25(`)
	b.WriteString(s.table)
	b.WriteString(`_fts) AS relevancy FROM `)
	b.WriteString(s.table)
	b.WriteString(`_fts JOIN `)
	b.WriteString(s.table)
	b.WriteString(` AS r ON r.id = `)
	b.WriteString(s.table)
	b.WriteString(`_fts.rowid`)
	b.WriteString(where)
	b.WriteString(` ORDER BY relevancy DESC, r.value ASC`)
	if q.Limit > 0 {
		b.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, q.Limit, q.Offset)
	} else if q.Offset > 0 {
		b.WriteString(` LIMIT -1 OFFSET ?`)
		args = append(args, q.Offset)
	}
	return b.String(), args
}

func (s *SQLiteStorage) whereSQL(q *query.Query) (string, []interface{}) {
	var b strings.Builder
	args := []interface{}{MatchExpression(q.Terms)}
	b.WriteString(` WHERE `)
	b.WriteString(s.table)
	b.WriteString(`_fts MATCH ?`)
	if len(q.Types) > 0 {
		b.WriteString(` AND r.fulltextable_type IN (`)
		b.WriteString(placeholders(len(q.Types)))
		b.WriteString(`)`)
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	switch {
	case q.ParentEquality():
		b.WriteString(` AND r.parent_id = ?`)
		args = append(args, q.Parents[0])
	case len(q.Parents) > 1:
		b.WriteString(` AND r.parent_id IN (`)
		b.WriteString(placeholders(len(q.Parents)))
		b.WriteString(`)`)
		for _, p := range q.Parents {
			args = append(args, p)
		}
	}
	return b.String(), args
}

// MatchExpression renders terms as an FTS5 query: every term is a quoted prefix
// match and terms are alternatives, so rows matching more of them rank higher.
func MatchExpression(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, `"`+strings.ReplaceAll(t, `"`, `""`)+`"*`)
	}
	return strings.Join(parts, " OR ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
