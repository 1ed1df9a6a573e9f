package models

import (
	"time"
)

// Link - единственная сущность хранилища: соответствие короткого кода целевому URL
type Link struct {
	ID           int64      `json:"id"`
	Code         string     `json:"code"`
	TargetURL    string     `json:"target_url"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	ClickCount   int64      `json:"click_count"`
	LastAccessed *time.Time `json:"last_accessed"`
	IsActive     bool       `json:"is_active"`
}

// IsExpired сообщает, что срок действия задан и уже прошёл к моменту now
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// IsLive сообщает, что ссылка активна и не истекла: по ней можно переходить
func (l *Link) IsLive(now time.Time) bool {
	return l.IsActive && !l.IsExpired(now)
}

// LinkDetails - запись вместе с вычисляемыми полями для UI и JSON API
type LinkDetails struct {
	Link
	ShortURL  string `json:"short_url"`
	IsExpired bool   `json:"is_expired"`
}

type CreateLinkInput struct {
	URL           string  `json:"url" binding:"required"`
	CustomAlias   *string `json:"custom_alias,omitempty"`
	ExpiresInDays *int    `json:"expires_in_days,omitempty"`
}
