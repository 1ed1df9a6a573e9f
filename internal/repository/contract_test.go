package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniqueCode возвращает код, не пересекающийся с другими тестами на общем хранилище
func uniqueCode(prefix string) string {
	return prefix + uuid.NewString()[:8]
}

func newLink(code string, createdAt time.Time) *models.Link {
	return &models.Link{
		Code:      code,
		TargetURL: "https://example.com/" + code,
		CreatedAt: createdAt,
		IsActive:  true,
	}
}

// runLinkRepositoryContract проверяет поведение, общее для всех бэкендов хранилища
func runLinkRepositoryContract(t *testing.T, repo repository.LinkRepository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("create and get by code", func(t *testing.T) {
		link := newLink(uniqueCode("get"), now)

		require.NoError(t, repo.Create(ctx, link))
		assert.Positive(t, link.ID)

		got, err := repo.GetByCode(ctx, link.Code)
		require.NoError(t, err)
		assert.Equal(t, link.ID, got.ID)
		assert.Equal(t, link.Code, got.Code)
		assert.Equal(t, link.TargetURL, got.TargetURL)
		assert.True(t, link.CreatedAt.Equal(got.CreatedAt))
		assert.Nil(t, got.ExpiresAt)
		assert.Nil(t, got.LastAccessed)
		assert.Zero(t, got.ClickCount)
		assert.True(t, got.IsActive)
	})

	t.Run("create preserves expiry and target verbatim", func(t *testing.T) {
		expires := now.Add(48 * time.Hour)
		link := newLink(uniqueCode("exp"), now)
		link.TargetURL = "https://Example.com/Path/../x?q=1&b=%20#frag"
		link.ExpiresAt = &expires

		require.NoError(t, repo.Create(ctx, link))

		got, err := repo.GetByCode(ctx, link.Code)
		require.NoError(t, err)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, expires.Equal(*got.ExpiresAt))
		assert.Equal(t, link.TargetURL, got.TargetURL)
	})

	t.Run("duplicate code returns ErrCodeExists", func(t *testing.T) {
		code := uniqueCode("dup")
		first := newLink(code, now)
		second := newLink(code, now)
		second.TargetURL = "https://other.example.com"

		require.NoError(t, repo.Create(ctx, first))
		assert.ErrorIs(t, repo.Create(ctx, second), repository.ErrCodeExists)

		got, err := repo.GetByCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, first.TargetURL, got.TargetURL)
	})

	t.Run("concurrent creates with the same code yield one winner", func(t *testing.T) {
		code := uniqueCode("race")
		const workers = 8

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.Create(ctx, newLink(code, now))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case assert.ErrorIs(t, err, repository.ErrCodeExists):
					conflicts++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, workers-1, conflicts)
	})

	t.Run("get missing returns ErrLinkNotFound", func(t *testing.T) {
		got, err := repo.GetByCode(ctx, uniqueCode("missing"))
		assert.Nil(t, got)
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		link := newLink(uniqueCode("clk"), now)
		require.NoError(t, repo.Create(ctx, link))

		const clicks = 40
		at := now.Add(time.Minute)

		var wg sync.WaitGroup
		for i := 0; i < clicks; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.IncrementClicks(ctx, link.Code, at))
			}()
		}
		wg.Wait()

		got, err := repo.GetByCode(ctx, link.Code)
		require.NoError(t, err)
		assert.Equal(t, int64(clicks), got.ClickCount)
		require.NotNil(t, got.LastAccessed)
		assert.True(t, at.Equal(*got.LastAccessed))
	})

	t.Run("increment missing or inactive returns ErrLinkNotFound", func(t *testing.T) {
		assert.ErrorIs(t, repo.IncrementClicks(ctx, uniqueCode("none"), now), repository.ErrLinkNotFound)

		link := newLink(uniqueCode("off"), now)
		link.IsActive = false
		require.NoError(t, repo.Create(ctx, link))

		assert.ErrorIs(t, repo.IncrementClicks(ctx, link.Code, now), repository.ErrLinkNotFound)

		got, err := repo.GetByCode(ctx, link.Code)
		require.NoError(t, err)
		assert.Zero(t, got.ClickCount)
		assert.Nil(t, got.LastAccessed)
	})

	t.Run("set active toggles the flag", func(t *testing.T) {
		link := newLink(uniqueCode("tog"), now)
		require.NoError(t, repo.Create(ctx, link))

		require.NoError(t, repo.SetActive(ctx, link.Code, false))
		got, err := repo.GetByCode(ctx, link.Code)
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		require.NoError(t, repo.SetActive(ctx, link.Code, true))
		got, err = repo.GetByCode(ctx, link.Code)
		require.NoError(t, err)
		assert.True(t, got.IsActive)

		assert.ErrorIs(t, repo.SetActive(ctx, uniqueCode("none"), true), repository.ErrLinkNotFound)
	})

	t.Run("list recent orders by creation time descending", func(t *testing.T) {
		// Далеко в будущем, чтобы опередить записи других подтестов
		base := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
		codes := []string{uniqueCode("r1"), uniqueCode("r2"), uniqueCode("r3")}
		for i, code := range codes {
			require.NoError(t, repo.Create(ctx, newLink(code, base.Add(time.Duration(i)*time.Hour))))
		}

		links, err := repo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, codes[2], links[0].Code)
		assert.Equal(t, codes[1], links[1].Code)
	})
}
