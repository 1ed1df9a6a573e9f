package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisSeqKey     = "link:seq"
	redisCreatedKey = "links:by_created"
)

// Вставка атомарна: проверка существования, выдача id и индекс по времени в одном скрипте
var createLinkScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local id = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1],
	'id', id,
	'code', ARGV[1],
	'target_url', ARGV[2],
	'created_at', ARGV[3],
	'expires_at', ARGV[4],
	'click_count', ARGV[5],
	'last_accessed', '',
	'is_active', ARGV[6])
redis.call('ZADD', KEYS[3], ARGV[7], ARGV[1])
return id
`)

var incrementClicksScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'is_active') ~= '1' then
	return 0
end
redis.call('HINCRBY', KEYS[1], 'click_count', 1)
redis.call('HSET', KEYS[1], 'last_accessed', ARGV[1])
return 1
`)

var setActiveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'is_active', ARGV[1])
return 1
`)

// RedisLinkRepository implements Store with one hash per link.
type RedisLinkRepository struct {
	redis *RedisDB
}

func NewRedisLinkRepository(redis *RedisDB) *RedisLinkRepository {
	return &RedisLinkRepository{redis: redis}
}

func (r *RedisLinkRepository) Create(ctx context.Context, link *models.Link) error {
	id, err := createLinkScript.Run(ctx, r.redis.Client,
		[]string{r.key(link.Code), redisSeqKey, redisCreatedKey},
		link.Code,
		link.TargetURL,
		formatTime(&link.CreatedAt),
		formatTime(link.ExpiresAt),
		link.ClickCount,
		formatBool(link.IsActive),
		link.CreatedAt.UnixMicro(),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	if id == 0 {
		return ErrCodeExists
	}
	link.ID = id

	return nil
}

func (r *RedisLinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	fields, err := r.redis.Client.HGetAll(ctx, r.key(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	if len(fields) == 0 {
		return nil, ErrLinkNotFound
	}

	return parseLinkHash(fields)
}

func (r *RedisLinkRepository) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	ok, err := incrementClicksScript.Run(ctx, r.redis.Client,
		[]string{r.key(code)},
		formatTime(&at),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}

	if ok == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *RedisLinkRepository) ListRecent(ctx context.Context, limit int) ([]*models.Link, error) {
	codes, err := r.redis.Client.ZRevRange(ctx, redisCreatedKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	if len(codes) == 0 {
		return []*models.Link{}, nil
	}

	pipe := r.redis.Client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.HGetAll(ctx, r.key(code))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}

	links := make([]*models.Link, 0, len(codes))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		link, err := parseLinkHash(fields)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, nil
}

func (r *RedisLinkRepository) SetActive(ctx context.Context, code string, active bool) error {
	ok, err := setActiveScript.Run(ctx, r.redis.Client,
		[]string{r.key(code)},
		formatBool(active),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}

	if ok == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *RedisLinkRepository) Ping(ctx context.Context) error {
	return r.redis.Client.Ping(ctx).Err()
}

func (r *RedisLinkRepository) Close() error {
	return r.redis.Close()
}

func (r *RedisLinkRepository) key(code string) string {
	return "link:" + code
}

func parseLinkHash(fields map[string]string) (*models.Link, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse link id: %w", err)
	}

	clicks, err := strconv.ParseInt(fields["click_count"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse click count: %w", err)
	}

	createdAt, err := parseTime(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if createdAt == nil {
		return nil, fmt.Errorf("link %q has no created_at", fields["code"])
	}

	expiresAt, err := parseTime(fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse expires_at: %w", err)
	}

	lastAccessed, err := parseTime(fields["last_accessed"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_accessed: %w", err)
	}

	return &models.Link{
		ID:           id,
		Code:         fields["code"],
		TargetURL:    fields["target_url"],
		CreatedAt:    *createdAt,
		ExpiresAt:    expiresAt,
		ClickCount:   clicks,
		LastAccessed: lastAccessed,
		IsActive:     fields["is_active"] == "1",
	}, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

var _ Store = (*RedisLinkRepository)(nil)
