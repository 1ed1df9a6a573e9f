package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/shortlink/internal/service"
)

// ErrorResponse тело ошибки JSON API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// apiError ошибка сервиса, переведённая в HTTP ответ
type apiError struct {
	Status  int
	Kind    string
	Message string
}

// classifyError сопоставляет ошибку сервиса со статусом и сообщением для клиента.
// Детали внутренних ошибок клиенту не показываются.
func classifyError(err error) apiError {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		return apiError{http.StatusBadRequest, "invalid_url", "URL must be an absolute http or https address."}
	case errors.Is(err, service.ErrInvalidAlias):
		return apiError{http.StatusBadRequest, "invalid_alias", "Alias may contain only letters, numbers, hyphens, and underscores and must be between 3 and 32 characters."}
	case errors.Is(err, service.ErrInvalidExpiry):
		return apiError{http.StatusBadRequest, "invalid_expiry", "Expiry must be between 1 and 3650 days."}
	case errors.Is(err, service.ErrAliasTaken):
		return apiError{http.StatusBadRequest, "alias_taken", "Alias already in use. Try another."}
	case errors.Is(err, service.ErrNotFound):
		return apiError{http.StatusNotFound, "not_found", "Not found"}
	default:
		return apiError{http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again."}
	}
}

func (e apiError) response() ErrorResponse {
	return ErrorResponse{Error: e.Kind, Message: e.Message}
}
