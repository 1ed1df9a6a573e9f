package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SergeiKhy/shortlink/internal/config"
	"github.com/SergeiKhy/shortlink/internal/models"
)

var (
	ErrLinkNotFound   = errors.New("link not found")
	ErrCodeExists     = errors.New("short code already exists")
	ErrUnsupportedDSN = errors.New("unsupported database url scheme")
)

// LinkRepository - хранилище записей ссылок. Уникальность code обеспечивает само хранилище.
type LinkRepository interface {
	// Create вставляет запись и заполняет link.ID; при занятом коде возвращает ErrCodeExists
	Create(ctx context.Context, link *models.Link) error
	GetByCode(ctx context.Context, code string) (*models.Link, error)
	// IncrementClicks атомарно увеличивает click_count активной записи и ставит last_accessed
	IncrementClicks(ctx context.Context, code string, at time.Time) error
	// ListRecent возвращает последние limit записей по created_at по убыванию
	ListRecent(ctx context.Context, limit int) ([]*models.Link, error)
	SetActive(ctx context.Context, code string, active bool) error
}

// Store - LinkRepository вместе с управлением подключением
type Store interface {
	LinkRepository
	Ping(ctx context.Context) error
	Close() error
}

// Open выбирает бэкенд по схеме строки подключения и готовит схему данных
func Open(ctx context.Context, cfg config.DBConfig) (Store, error) {
	scheme, _, found := strings.Cut(cfg.URL, "://")
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, cfg.URL)
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		db, err := NewPostgresDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return NewPostgresLinkRepository(db), nil

	case "sqlite":
		return OpenSQLite(ctx, cfg.URL)

	case "redis", "rediss":
		client, err := NewRedisClient(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return NewRedisLinkRepository(client), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, scheme)
	}
}

// Backend возвращает имя бэкенда для логов, не раскрывая строку подключения
func Backend(dsn string) string {
	scheme, _, _ := strings.Cut(dsn, "://")
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return "postgres"
	case "sqlite":
		return "sqlite"
	case "redis", "rediss":
		return "redis"
	default:
		return "unknown"
	}
}
