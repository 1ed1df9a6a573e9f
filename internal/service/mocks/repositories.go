package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	mu     sync.RWMutex
	links  map[string]*models.Link
	nextID int64

	creates int
	// FailWith makes every call return this error when set
	FailWith error
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:  make(map[string]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}

	if _, exists := m.links[link.Code]; exists {
		return repository.ErrCodeExists
	}

	link.ID = m.nextID
	m.nextID++
	m.creates++
	stored := *link
	m.links[link.Code] = &stored
	return nil
}

func (m *MockLinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}

	link, exists := m.links[code]
	if !exists || !link.IsActive {
		return repository.ErrLinkNotFound
	}
	link.ClickCount++
	accessed := at
	link.LastAccessed = &accessed
	return nil
}

func (m *MockLinkRepository) ListRecent(ctx context.Context, limit int) ([]*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	links := make([]*models.Link, 0, len(m.links))
	for _, link := range m.links {
		copied := *link
		links = append(links, &copied)
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID > links[j].ID
		}
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})

	if len(links) > limit {
		links = links[:limit]
	}
	return links, nil
}

func (m *MockLinkRepository) SetActive(ctx context.Context, code string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}

	link, exists := m.links[code]
	if !exists {
		return repository.ErrLinkNotFound
	}
	link.IsActive = active
	return nil
}

func (m *MockLinkRepository) Ping(ctx context.Context) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	return nil
}

func (m *MockLinkRepository) Close() error {
	return nil
}

// Put stores a record as-is, bypassing uniqueness checks
func (m *MockLinkRepository) Put(link *models.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if link.ID == 0 {
		link.ID = m.nextID
		m.nextID++
	}
	stored := *link
	m.links[link.Code] = &stored
}

// Creates returns the number of successful inserts
func (m *MockLinkRepository) Creates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creates
}

// Count returns the number of stored records
func (m *MockLinkRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

// ErrStoreDown is a generic infrastructure failure for tests
var ErrStoreDown = errors.New("store unavailable")

var _ repository.Store = (*MockLinkRepository)(nil)
