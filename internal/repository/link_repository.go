package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Код ошибки PostgreSQL unique_violation
const pgUniqueViolation = "23505"

const linkColumns = `id, code, target_url, created_at, expires_at, click_count, last_accessed, is_active`

// PostgresLinkRepository implements Store on top of a pgx pool.
type PostgresLinkRepository struct {
	db *PostgresDB
}

func NewPostgresLinkRepository(db *PostgresDB) *PostgresLinkRepository {
	return &PostgresLinkRepository{db: db}
}

func (r *PostgresLinkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO url_map (code, target_url, created_at, expires_at, click_count, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.Code,
		link.TargetURL,
		link.CreatedAt,
		link.ExpiresAt,
		link.ClickCount,
		link.IsActive,
	).Scan(&link.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *PostgresLinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM url_map WHERE code = $1`

	link, err := scanLink(r.db.Pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *PostgresLinkRepository) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	query := `
		UPDATE url_map
		SET click_count = click_count + 1, last_accessed = $2
		WHERE code = $1 AND is_active
	`

	result, err := r.db.Pool.Exec(ctx, query, code, at)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *PostgresLinkRepository) ListRecent(ctx context.Context, limit int) ([]*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM url_map ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]*models.Link, 0, limit)
	for rows.Next() {
		link, err := scanLink(rows)
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

func (r *PostgresLinkRepository) SetActive(ctx context.Context, code string, active bool) error {
	query := `UPDATE url_map SET is_active = $2 WHERE code = $1`

	result, err := r.db.Pool.Exec(ctx, query, code, active)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *PostgresLinkRepository) Ping(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

func (r *PostgresLinkRepository) Close() error {
	r.db.Close()
	return nil
}

func scanLink(row pgx.Row) (*models.Link, error) {
	link := &models.Link{}
	err := row.Scan(
		&link.ID,
		&link.Code,
		&link.TargetURL,
		&link.CreatedAt,
		&link.ExpiresAt,
		&link.ClickCount,
		&link.LastAccessed,
		&link.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return link, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

var _ Store = (*PostgresLinkRepository)(nil)
