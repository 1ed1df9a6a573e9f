package handler

import (
	"fmt"

	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter собирает все маршруты. adminMiddleware может быть nil,
// тогда административный маршрут не регистрируется.
func NewRouter(
	linkService service.LinkService,
	store Pinger,
	adminMiddleware gin.HandlerFunc,
	logger *zap.Logger,
) (*gin.Engine, error) {
	router := gin.New()

	router.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recover(logger),
	)

	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(templates)

	linkHandler := NewLinkHandler(linkService, store, logger)
	webHandler := NewWebHandler(linkService, logger)

	router.GET("/healthz", linkHandler.HealthCheck)

	// HTML интерфейс
	router.GET("/", webHandler.Home)
	router.POST("/shorten", webHandler.Shorten)
	router.GET("/stats/:code", webHandler.Stats)

	// JSON API
	api := router.Group("/api")
	{
		api.POST("/shorten", linkHandler.Shorten)
		api.GET("/:code", linkHandler.GetLink)

		// Переключение активности только с API ключом
		if adminMiddleware != nil {
			api.PATCH("/:code", adminMiddleware, linkHandler.SetActive)
		}
	}

	router.GET("/qr/:code", linkHandler.QRCode)

	// Редирект (корневой путь)
	router.GET("/:code", webHandler.Redirect)

	return router, nil
}
