package handler

import (
	"embed"
	"html/template"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const timeLayout = "2006-01-02 15:04 UTC"

var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.UTC().Format(timeLayout)
	},
	"formatTimePtr": func(t *time.Time) string {
		if t == nil {
			return "never"
		}
		return t.UTC().Format(timeLayout)
	},
}

// parseTemplates собирает встроенные HTML шаблоны
func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}

type indexPage struct {
	Recent          []models.LinkDetails
	CreatedShortURL string
	Code            string
	Detail          string

	// Значения формы при ошибке, чтобы не вводить их заново
	URL           string
	CustomAlias   string
	ExpiresInDays string
}

type statsPage struct {
	Item *models.LinkDetails
}

type notFoundPage struct {
	Code string
}
