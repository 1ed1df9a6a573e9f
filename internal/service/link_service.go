package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SergeiKhy/shortlink/internal/config"
	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL         = errors.New("невалидный URL")
	ErrInvalidAlias       = errors.New("невалидный алиас")
	ErrInvalidExpiry      = errors.New("невалидный срок действия")
	ErrAliasTaken         = errors.New("алиас уже занят")
	ErrNotFound           = errors.New("ссылка не найдена")
	ErrCodeSpaceExhausted = errors.New("не удалось подобрать свободный код")
)

// Константы сервиса
const (
	RecentLimit       = 10
	attemptsPerLength = 5 // Попыток на одну длину кода до её увеличения
	lengthEscalations = 2 // Сколько раз длина кода может вырасти на единицу
)

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.LinkDetails, error)
	Resolve(ctx context.Context, code string) (string, error)
	GetLink(ctx context.Context, code string) (*models.LinkDetails, error)
	RecentLinks(ctx context.Context, limit int) ([]models.LinkDetails, error)
	SetActive(ctx context.Context, code string, active bool) (*models.LinkDetails, error)
	ShortURL(code string) string
}

// Config параметры сервиса, заданные при старте
type Config struct {
	BaseURL    string
	CodeLength int
}

// Option настраивает linkService
type Option func(*linkService)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(s *linkService) {
		s.now = now
	}
}

// WithCodeGeneratorFactory подменяет генератор кодов
func WithCodeGeneratorFactory(factory CodeGeneratorFactory) Option {
	return func(s *linkService) {
		s.newGenerator = factory
	}
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo     repository.LinkRepository
	baseURL      string
	codeLength   int
	generators   []CodeGenerator // По одному на каждую длину, начиная с codeLength
	newGenerator CodeGeneratorFactory
	now          func() time.Time
	logger       *zap.Logger
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(linkRepo repository.LinkRepository, cfg Config, logger *zap.Logger, opts ...Option) (LinkService, error) {
	s := &linkService{
		linkRepo:     linkRepo,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		codeLength:   cfg.CodeLength,
		newGenerator: NewCodeGenerator,
		now:          time.Now,
		logger:       logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.codeLength < config.MinCodeLength || s.codeLength > config.MaxCodeLength {
		return nil, fmt.Errorf("code length must be between %d and %d, got %d", config.MinCodeLength, config.MaxCodeLength, s.codeLength)
	}

	for length := s.codeLength; length <= min(s.codeLength+lengthEscalations, maxAliasLength); length++ {
		gen, err := s.newGenerator(length)
		if err != nil {
			return nil, err
		}
		s.generators = append(s.generators, gen)
	}

	return s, nil
}

// CreateLink валидирует запрос, выбирает код и сохраняет новую запись
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.LinkDetails, error) {
	alias, err := validateInput(input)
	if err != nil {
		return nil, err
	}

	now := s.now()

	// Расчёт срока действия
	var expiresAt *time.Time
	if input.ExpiresInDays != nil {
		t := now.Add(time.Duration(*input.ExpiresInDays) * 24 * time.Hour)
		expiresAt = &t
	}

	link := &models.Link{
		TargetURL: input.URL,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		IsActive:  true,
	}

	if alias != nil {
		err = s.insertAlias(ctx, link, *alias)
	} else {
		err = s.insertGenerated(ctx, link)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Link created",
		zap.String("code", link.Code),
		zap.Bool("custom_alias", alias != nil),
		zap.Int64("id", link.ID),
	)

	return s.details(link, now), nil
}

// insertAlias сохраняет запись под алиасом без повторных попыток.
// Предварительная проверка экономит вставку, но гонку решает уникальный индекс.
func (s *linkService) insertAlias(ctx context.Context, link *models.Link, alias string) error {
	_, err := s.linkRepo.GetByCode(ctx, alias)
	if err == nil {
		return ErrAliasTaken
	}
	if !errors.Is(err, repository.ErrLinkNotFound) {
		return fmt.Errorf("failed to check alias: %w", err)
	}

	link.Code = alias
	if err := s.linkRepo.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrCodeExists) {
			return ErrAliasTaken
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// insertGenerated подбирает случайный свободный код; при исчерпании попыток
// увеличивает длину кода
func (s *linkService) insertGenerated(ctx context.Context, link *models.Link) error {
	for _, generate := range s.generators {
		for attempt := 0; attempt < attemptsPerLength; attempt++ {
			link.Code = generate()

			err := s.linkRepo.Create(ctx, link)
			if err == nil {
				return nil
			}
			if !errors.Is(err, repository.ErrCodeExists) {
				return fmt.Errorf("failed to create link: %w", err)
			}

			s.logger.Debug("Generated code collision",
				zap.String("code", link.Code),
				zap.Int("attempt", attempt+1),
			)
		}
	}

	s.logger.Error("Code space exhausted", zap.Int("code_length", s.codeLength))
	return ErrCodeSpaceExhausted
}

// Resolve возвращает целевой URL живой ссылки и засчитывает переход
func (s *linkService) Resolve(ctx context.Context, code string) (string, error) {
	link, err := s.linkRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get link: %w", err)
	}

	now := s.now()
	if !link.IsLive(now) {
		return "", ErrNotFound
	}

	if err := s.linkRepo.IncrementClicks(ctx, code, now); err != nil {
		// Ссылку могли деактивировать между чтением и обновлением
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to record click: %w", err)
	}

	return link.TargetURL, nil
}

// GetLink читает запись без изменений, включая неактивные и истёкшие
func (s *linkService) GetLink(ctx context.Context, code string) (*models.LinkDetails, error) {
	link, err := s.linkRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return s.details(link, s.now()), nil
}

// RecentLinks возвращает последние созданные ссылки
func (s *linkService) RecentLinks(ctx context.Context, limit int) ([]models.LinkDetails, error) {
	if limit <= 0 {
		limit = RecentLimit
	}

	links, err := s.linkRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent links: %w", err)
	}

	now := s.now()
	result := make([]models.LinkDetails, 0, len(links))
	for _, link := range links {
		result = append(result, *s.details(link, now))
	}

	return result, nil
}

// SetActive включает или выключает ссылку
func (s *linkService) SetActive(ctx context.Context, code string, active bool) (*models.LinkDetails, error) {
	if err := s.linkRepo.SetActive(ctx, code, active); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}

	s.logger.Info("Link activity changed", zap.String("code", code), zap.Bool("is_active", active))

	return s.GetLink(ctx, code)
}

// ShortURL собирает короткую ссылку из базового URL и кода
func (s *linkService) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

func (s *linkService) details(link *models.Link, now time.Time) *models.LinkDetails {
	return &models.LinkDetails{
		Link:      *link,
		ShortURL:  s.ShortURL(link.Code),
		IsExpired: link.IsExpired(now),
	}
}
