package handler_test

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/SergeiKhy/shortlink/internal/handler"
	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/SergeiKhy/shortlink/internal/service/mocks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBaseURL = "http://sho.rt"
	adminKey    = "admin-secret"
)

type testEnv struct {
	router *gin.Engine
	repo   *mocks.MockLinkRepository
	now    time.Time
}

// setupRouter поднимает роутер поверх настоящего сервиса и мокового хранилища
func setupRouter(t *testing.T, withAdmin bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		repo: mocks.NewMockLinkRepository(),
		now:  time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC),
	}

	linkService, err := service.NewLinkService(env.repo, service.Config{
		BaseURL:    testBaseURL,
		CodeLength: 6,
	}, zap.NewNop(), service.WithClock(func() time.Time { return env.now }))
	require.NoError(t, err)

	var admin gin.HandlerFunc
	if withAdmin {
		admin = middleware.RequireAPIKey(map[string]string{adminKey: "ops"})
	}

	env.router, err = handler.NewRouter(linkService, env.repo, admin, zap.NewNop())
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) postForm(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// TestAPI_Shorten_Success проверяет создание ссылки через JSON API
func TestAPI_Shorten_Success(t *testing.T) {
	env := setupRouter(t, false)

	w := env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com/long/path?q=1"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp handler.ShortenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Code, 6)
	assert.Equal(t, testBaseURL+"/"+resp.Code, resp.ShortURL)
	assert.Equal(t, 1, env.repo.Count())
}

// TestAPI_Shorten_Errors проверяет ответы 400 на невалидные запросы
func TestAPI_Shorten_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantKind string
	}{
		{"Нет url", map[string]any{}, "invalid_request"},
		{"Невалидный url", map[string]any{"url": "not a url"}, "invalid_url"},
		{"Схема ftp", map[string]any{"url": "ftp://example.com"}, "invalid_url"},
		{"Короткий алиас", map[string]any{"url": "https://example.com", "custom_alias": "ab"}, "invalid_alias"},
		{"Срок 0 дней", map[string]any{"url": "https://example.com", "expires_in_days": 0}, "invalid_expiry"},
		{"Срок больше 10 лет", map[string]any{"url": "https://example.com", "expires_in_days": 3651}, "invalid_expiry"},
		{"Срок строкой", map[string]any{"url": "https://example.com", "expires_in_days": "ten"}, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupRouter(t, false)

			w := env.postJSON(t, "/api/shorten", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantKind, decodeError(t, w).Error)
			assert.Zero(t, env.repo.Count())
		})
	}
}

// TestAPI_Shorten_AliasTaken повторный алиас отклоняется с 400
func TestAPI_Shorten_AliasTaken(t *testing.T) {
	env := setupRouter(t, false)

	w := env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com/a", "custom_alias": "promo"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com/b", "custom_alias": "promo"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "alias_taken", decodeError(t, w).Error)
	assert.Equal(t, 1, env.repo.Count())
}

// TestAPI_Shorten_StoreFailure сбой хранилища отдаёт 500 без деталей
func TestAPI_Shorten_StoreFailure(t *testing.T) {
	env := setupRouter(t, false)
	env.repo.FailWith = mocks.ErrStoreDown

	w := env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "internal_error", resp.Error)
	assert.NotContains(t, resp.Message, mocks.ErrStoreDown.Error())
}

// TestAPI_GetLink проверяет получение деталей без засчитывания клика
func TestAPI_GetLink(t *testing.T) {
	env := setupRouter(t, false)
	w := env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com", "custom_alias": "details", "expires_in_days": 7})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.get("/api/details")

	require.Equal(t, http.StatusOK, w.Code)
	var link models.LinkDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.Equal(t, "details", link.Code)
	assert.Equal(t, "https://example.com", link.TargetURL)
	assert.Equal(t, testBaseURL+"/details", link.ShortURL)
	assert.Zero(t, link.ClickCount)
	assert.True(t, link.IsActive)
	assert.False(t, link.IsExpired)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, env.now.Add(7*24*time.Hour).Equal(*link.ExpiresAt))
}

// TestAPI_GetLink_NotFound неизвестный код
func TestAPI_GetLink_NotFound(t *testing.T) {
	env := setupRouter(t, false)

	w := env.get("/api/doesnotexist")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Error)
}

// TestRedirect проверяет редирект и подсчёт кликов
func TestRedirect(t *testing.T) {
	env := setupRouter(t, false)
	env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com/Target?x=1", "custom_alias": "go-here"})

	for i := 0; i < 3; i++ {
		w := env.get("/go-here")
		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "https://example.com/Target?x=1", w.Header().Get("Location"))
	}

	link, err := env.repo.GetByCode(t.Context(), "go-here")
	require.NoError(t, err)
	assert.Equal(t, int64(3), link.ClickCount)
}

// TestRedirect_NotFound неизвестная, неактивная и истёкшая ссылки отдают одинаковую 404
func TestRedirect_NotFound(t *testing.T) {
	env := setupRouter(t, false)
	past := env.now.Add(-time.Hour)
	env.repo.Put(&models.Link{Code: "expired", TargetURL: "https://example.com", CreatedAt: past.Add(-time.Hour), ExpiresAt: &past, IsActive: true})
	env.repo.Put(&models.Link{Code: "disabled", TargetURL: "https://example.com", CreatedAt: past, IsActive: false})

	for _, code := range []string{"unknown", "expired", "disabled"} {
		w := env.get("/" + code)

		assert.Equal(t, http.StatusNotFound, w.Code, code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "<code>"+code+"</code>")
	}

	for _, code := range []string{"expired", "disabled"} {
		link, err := env.repo.GetByCode(t.Context(), code)
		require.NoError(t, err)
		assert.Zero(t, link.ClickCount)
	}
}

// TestQRCode проверяет PNG с QR кодом
func TestQRCode(t *testing.T) {
	env := setupRouter(t, false)
	env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com", "custom_alias": "qrme"})

	w := env.get("/qr/qrme")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	assert.NoError(t, err)

	w = env.get("/qr/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestHealthCheck проверяет состояние сервиса и хранилища
func TestHealthCheck(t *testing.T) {
	env := setupRouter(t, false)

	w := env.get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	env.repo.FailWith = mocks.ErrStoreDown
	w = env.get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// TestRequestIDHeader каждый ответ содержит идентификатор запроса
func TestRequestIDHeader(t *testing.T) {
	env := setupRouter(t, false)

	w := env.get("/healthz")

	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

// TestAdmin_NotMountedWithoutKeys без ключей маршрут не существует
func TestAdmin_NotMountedWithoutKeys(t *testing.T) {
	env := setupRouter(t, false)
	env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com", "custom_alias": "keep"})

	req := httptest.NewRequest(http.MethodPatch, "/api/keep", strings.NewReader(`{"is_active":false}`))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	link, err := env.repo.GetByCode(t.Context(), "keep")
	require.NoError(t, err)
	assert.True(t, link.IsActive)
}

// TestAdmin_SetActive проверяет выключение ссылки администратором
func TestAdmin_SetActive(t *testing.T) {
	env := setupRouter(t, true)
	env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com", "custom_alias": "toggle"})

	patch := func(body, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/api/toggle", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(middleware.APIKeyHeader, key)
		}
		return env.do(req)
	}

	assert.Equal(t, http.StatusUnauthorized, patch(`{"is_active":false}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, patch(`{"is_active":false}`, "wrong").Code)
	assert.Equal(t, http.StatusBadRequest, patch(`{}`, adminKey).Code)

	w := patch(`{"is_active":false}`, adminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var link models.LinkDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.False(t, link.IsActive)

	assert.Equal(t, http.StatusNotFound, env.get("/toggle").Code)

	require.Equal(t, http.StatusOK, patch(`{"is_active":true}`, adminKey).Code)
	assert.Equal(t, http.StatusTemporaryRedirect, env.get("/toggle").Code)

	req := httptest.NewRequest(http.MethodPatch, "/api/missing", strings.NewReader(`{"is_active":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.APIKeyHeader, adminKey)
	assert.Equal(t, http.StatusNotFound, env.do(req).Code)
}

// TestWeb_Home главная страница показывает последние ссылки
func TestWeb_Home(t *testing.T) {
	env := setupRouter(t, false)
	env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com/first", "custom_alias": "first"})

	w := env.get("/")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, `action="/shorten"`)
	assert.Contains(t, body, testBaseURL+"/first")
	assert.Contains(t, body, "https://example.com/first")
}

// TestWeb_Shorten_Success форма создаёт ссылку и показывает её
func TestWeb_Shorten_Success(t *testing.T) {
	env := setupRouter(t, false)

	w := env.postForm("/shorten", url.Values{
		"url":             {"https://example.com/from-form"},
		"custom_alias":    {""},
		"expires_in_days": {""},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.repo.Count())

	recent, err := env.repo.ListRecent(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Nil(t, recent[0].ExpiresAt)
	assert.Contains(t, w.Body.String(), testBaseURL+"/"+recent[0].Code)
	assert.Contains(t, w.Body.String(), "/qr/"+recent[0].Code)
}

// TestWeb_Shorten_WithAliasAndExpiry форма с алиасом и сроком действия
func TestWeb_Shorten_WithAliasAndExpiry(t *testing.T) {
	env := setupRouter(t, false)

	w := env.postForm("/shorten", url.Values{
		"url":             {"https://example.com"},
		"custom_alias":    {"spring-sale"},
		"expires_in_days": {"30"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	link, err := env.repo.GetByCode(t.Context(), "spring-sale")
	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, env.now.Add(30*24*time.Hour).Equal(*link.ExpiresAt))
}

// TestWeb_Shorten_Errors ошибки формы показываются на странице с кодом 400
func TestWeb_Shorten_Errors(t *testing.T) {
	tests := []struct {
		name    string
		values  url.Values
		message string
	}{
		{"Невалидный url", url.Values{"url": {"nope"}}, "absolute http or https"},
		{"Невалидный алиас", url.Values{"url": {"https://example.com"}, "custom_alias": {"a b"}}, "Alias may contain only"},
		{"Срок не число", url.Values{"url": {"https://example.com"}, "expires_in_days": {"soon"}}, "Expiry must be between"},
		{"Срок вне границ", url.Values{"url": {"https://example.com"}, "expires_in_days": {"0"}}, "Expiry must be between"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupRouter(t, false)

			w := env.postForm("/shorten", tt.values)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
			assert.Zero(t, env.repo.Count())
		})
	}
}

// TestWeb_Shorten_AliasTaken занятый алиас даёт 400 и сообщение
func TestWeb_Shorten_AliasTaken(t *testing.T) {
	env := setupRouter(t, false)
	values := url.Values{"url": {"https://example.com"}, "custom_alias": {"taken"}}

	require.Equal(t, http.StatusOK, env.postForm("/shorten", values).Code)
	w := env.postForm("/shorten", values)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Alias already in use. Try another.")
	assert.Equal(t, 1, env.repo.Count())
}

// TestWeb_Stats страница статистики
func TestWeb_Stats(t *testing.T) {
	env := setupRouter(t, false)
	env.postJSON(t, "/api/shorten", map[string]any{"url": "https://example.com/stats-target", "custom_alias": "counted"})
	env.get("/counted")
	env.get("/counted")

	w := env.get("/stats/counted")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "https://example.com/stats-target")
	assert.Contains(t, body, "<td>2</td>")
	assert.Contains(t, body, "active")

	link, err := env.repo.GetByCode(t.Context(), "counted")
	require.NoError(t, err)
	assert.Equal(t, int64(2), link.ClickCount, "страница статистики не засчитывает клик")
}

// TestWeb_Stats_NotFound неизвестный код на странице статистики
func TestWeb_Stats_NotFound(t *testing.T) {
	env := setupRouter(t, false)

	w := env.get("/stats/nothing")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "<code>nothing</code>")
}
