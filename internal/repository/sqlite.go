package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS url_map (
	id            INTEGER   PRIMARY KEY AUTOINCREMENT,
	code          TEXT      NOT NULL UNIQUE,
	target_url    TEXT      NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	expires_at    TIMESTAMP NULL,
	click_count   INTEGER   NOT NULL DEFAULT 0,
	last_accessed TIMESTAMP NULL,
	is_active     BOOLEAN   NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_url_map_created_at ON url_map (created_at);
`

// SQLiteLinkRepository implements Store on a single-file SQLite database.
type SQLiteLinkRepository struct {
	db *sql.DB
}

// OpenSQLite открывает базу по URL вида sqlite:///relative/path, sqlite:////absolute/path
// или sqlite:///:memory:
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteLinkRepository, error) {
	path, err := sqlitePath(dsn)
	if err != nil {
		return nil, err
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Единый формат времени, сортируемый как строка
	db, err := sql.Open("sqlite", path+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Один писатель: SQLite сериализует запись, а :memory: живёт в рамках одного соединения
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteLinkRepository{db: db}, nil
}

func sqlitePath(dsn string) (string, error) {
	rest, ok := strings.CutPrefix(dsn, "sqlite:///")
	if !ok {
		rest, ok = strings.CutPrefix(dsn, "sqlite://")
	}
	if !ok || rest == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDSN, dsn)
	}
	return rest, nil
}

func (r *SQLiteLinkRepository) Create(ctx context.Context, link *models.Link) error {
	const q = `
INSERT INTO url_map (code, target_url, created_at, expires_at, click_count, is_active)
VALUES (?, ?, ?, ?, ?, ?);`

	res, err := r.db.ExecContext(ctx, q,
		link.Code,
		link.TargetURL,
		link.CreatedAt.UTC(),
		nullableTime(link.ExpiresAt),
		link.ClickCount,
		link.IsActive,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read link id: %w", err)
	}
	link.ID = id

	return nil
}

func (r *SQLiteLinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	q := `SELECT ` + linkColumns + ` FROM url_map WHERE code = ? LIMIT 1;`

	link, err := scanSQLiteLink(r.db.QueryRowContext(ctx, q, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *SQLiteLinkRepository) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	const q = `
UPDATE url_map
SET click_count = click_count + 1, last_accessed = ?
WHERE code = ? AND is_active = 1;`

	res, err := r.db.ExecContext(ctx, q, at.UTC(), code)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}
	if n == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *SQLiteLinkRepository) ListRecent(ctx context.Context, limit int) ([]*models.Link, error) {
	q := `SELECT ` + linkColumns + ` FROM url_map ORDER BY created_at DESC, id DESC LIMIT ?;`

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]*models.Link, 0, limit)
	for rows.Next() {
		link, err := scanSQLiteLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

func (r *SQLiteLinkRepository) SetActive(ctx context.Context, code string, active bool) error {
	const q = `UPDATE url_map SET is_active = ? WHERE code = ?;`

	res, err := r.db.ExecContext(ctx, q, active, code)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	if n == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *SQLiteLinkRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteLinkRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLink(row rowScanner) (*models.Link, error) {
	var (
		link         models.Link
		expiresAt    sql.NullTime
		lastAccessed sql.NullTime
	)

	err := row.Scan(
		&link.ID,
		&link.Code,
		&link.TargetURL,
		&link.CreatedAt,
		&expiresAt,
		&link.ClickCount,
		&lastAccessed,
		&link.IsActive,
	)
	if err != nil {
		return nil, err
	}

	link.CreatedAt = link.CreatedAt.UTC()
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		link.ExpiresAt = &t
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time.UTC()
		link.LastAccessed = &t
	}

	return &link, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ Store = (*SQLiteLinkRepository)(nil)
