package handler

import (
	"context"
	"net/http"

	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/qr"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type LinkHandler struct {
	service service.LinkService
	store   Pinger
	logger  *zap.Logger
}

func NewLinkHandler(service service.LinkService, store Pinger, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service: service,
		store:   store,
		logger:  logger,
	}
}

type ShortenResponse struct {
	ShortURL string `json:"short_url"`
	Code     string `json:"code"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// fail пишет JSON ошибку и логирует внутренние сбои
func (h *LinkHandler) fail(c *gin.Context, err error) {
	apiErr := classifyError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
	}
	c.JSON(apiErr.Status, apiErr.response())
}

// Shorten godoc
// @Summary Create a short link
// @Description Create a new shortened URL, optionally with a custom alias and expiry
// @Tags links
// @Accept json
// @Produce json
// @Param request body models.CreateLinkInput true "Link creation request"
// @Success 200 {object} ShortenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/shorten [post]
func (h *LinkHandler) Shorten(c *gin.Context) {
	var input models.CreateLinkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Debug("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must be JSON with a url field",
		})
		return
	}

	link, err := h.service.CreateLink(c.Request.Context(), &input)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, ShortenResponse{
		ShortURL: link.ShortURL,
		Code:     link.Code,
	})
}

// GetLink godoc
// @Summary Get link details
// @Description Get the full record for a short code, without counting a click
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} models.LinkDetails
// @Failure 404 {object} ErrorResponse
// @Router /api/{code} [get]
func (h *LinkHandler) GetLink(c *gin.Context) {
	link, err := h.service.GetLink(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

// SetActive godoc
// @Summary Enable or disable a short link
// @Description Toggle the active flag of a short link. Requires an admin API key
// @Tags admin
// @Accept json
// @Produce json
// @Param code path string true "Short code"
// @Param request body SetActiveRequest true "New state"
// @Success 200 {object} models.LinkDetails
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /api/{code} [patch]
func (h *LinkHandler) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must be JSON with a boolean is_active field",
		})
		return
	}

	code := c.Param("code")
	link, err := h.service.SetActive(c.Request.Context(), code, *req.IsActive)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Link updated by admin",
		zap.String("code", code),
		zap.Bool("is_active", *req.IsActive),
		zap.String("key_name", middleware.GetAPIKeyName(c)),
	)

	c.JSON(http.StatusOK, link)
}

// QRCode godoc
// @Summary QR code for a short link
// @Description Render a PNG QR code that encodes the short URL
// @Tags links
// @Produce png
// @Param code path string true "Short code"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /qr/{code} [get]
func (h *LinkHandler) QRCode(c *gin.Context) {
	link, err := h.service.GetLink(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}

	png, err := qr.PNG(link.ShortURL, qr.DefaultSize)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// HealthCheck godoc
// @Summary Health check
// @Description Check that the service and its store are reachable
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /healthz [get]
func (h *LinkHandler) HealthCheck(c *gin.Context) {
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			h.logger.Error("Store ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
