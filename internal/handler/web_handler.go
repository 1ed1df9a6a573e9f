package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebHandler обработчики HTML интерфейса
type WebHandler struct {
	service service.LinkService
	logger  *zap.Logger
}

func NewWebHandler(service service.LinkService, logger *zap.Logger) *WebHandler {
	return &WebHandler{
		service: service,
		logger:  logger,
	}
}

// shortenForm поля формы на главной странице. Пустые значения означают
// отсутствие параметра.
type shortenForm struct {
	URL           string `form:"url"`
	CustomAlias   string `form:"custom_alias"`
	ExpiresInDays string `form:"expires_in_days"`
}

func (f shortenForm) input() (*models.CreateLinkInput, error) {
	input := &models.CreateLinkInput{URL: strings.TrimSpace(f.URL)}

	if alias := strings.TrimSpace(f.CustomAlias); alias != "" {
		input.CustomAlias = &alias
	}

	if raw := strings.TrimSpace(f.ExpiresInDays); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return nil, service.ErrInvalidExpiry
		}
		input.ExpiresInDays = &days
	}

	return input, nil
}

// recent загружает последние ссылки; ошибка не мешает отрисовать страницу
func (h *WebHandler) recent(c *gin.Context) []models.LinkDetails {
	links, err := h.service.RecentLinks(c.Request.Context(), service.RecentLimit)
	if err != nil {
		h.logger.Error("Failed to load recent links",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		return nil
	}
	return links
}

// Home главная страница с формой и последними ссылками
func (h *WebHandler) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", indexPage{Recent: h.recent(c)})
}

// Shorten обрабатывает отправку формы
func (h *WebHandler) Shorten(c *gin.Context) {
	var form shortenForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "index.html", indexPage{Detail: "Could not read the form."})
		return
	}

	input, err := form.input()
	if err == nil {
		var link *models.LinkDetails
		link, err = h.service.CreateLink(c.Request.Context(), input)
		if err == nil {
			c.HTML(http.StatusOK, "index.html", indexPage{
				Recent:          h.recent(c),
				CreatedShortURL: link.ShortURL,
				Code:            link.Code,
			})
			return
		}
	}

	apiErr := classifyError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.Error("Failed to create link from form",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
	}

	c.HTML(apiErr.Status, "index.html", indexPage{
		Recent:        h.recent(c),
		Detail:        apiErr.Message,
		URL:           form.URL,
		CustomAlias:   form.CustomAlias,
		ExpiresInDays: form.ExpiresInDays,
	})
}

// Stats страница с информацией о ссылке
func (h *WebHandler) Stats(c *gin.Context) {
	code := c.Param("code")

	link, err := h.service.GetLink(c.Request.Context(), code)
	if err != nil {
		h.renderError(c, code, err)
		return
	}

	c.HTML(http.StatusOK, "stats.html", statsPage{Item: link})
}

// Redirect переход по короткой ссылке
func (h *WebHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	target, err := h.service.Resolve(c.Request.Context(), code)
	if err != nil {
		h.renderError(c, code, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, target)
}

// renderError показывает страницу 404 для отсутствующих ссылок и общий сбой для остального
func (h *WebHandler) renderError(c *gin.Context, code string, err error) {
	if errors.Is(err, service.ErrNotFound) {
		h.logger.Debug("Link not found", zap.String("code", code))
		c.HTML(http.StatusNotFound, "not_found.html", notFoundPage{Code: code})
		return
	}

	h.logger.Error("Failed to load link",
		zap.String("code", code),
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err),
	)
	c.String(http.StatusInternalServerError, "Internal server error")
}
