package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/SergeiKhy/shortlink/internal/models"
)

const (
	minAliasLength = 3
	maxAliasLength = 32
	minExpiryDays  = 1
	maxExpiryDays  = 3650
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validateInput проверяет запрос до любого обращения к хранилищу.
// Возвращает алиас или nil, если он не задан.
func validateInput(input *models.CreateLinkInput) (*string, error) {
	if err := validateURL(input.URL); err != nil {
		return nil, err
	}

	var alias *string
	if input.CustomAlias != nil && *input.CustomAlias != "" {
		if err := validateAlias(*input.CustomAlias); err != nil {
			return nil, err
		}
		alias = input.CustomAlias
	}

	if input.ExpiresInDays != nil {
		if err := validateExpiry(*input.ExpiresInDays); err != nil {
			return nil, err
		}
	}

	return alias, nil
}

// validateURL принимает только абсолютные http(s) URL с хостом
func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}

	if u.Host == "" || u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}

// validateAlias проверяет алиас: 3-32 символа из [A-Za-z0-9_-]
func validateAlias(alias string) error {
	if !aliasPattern.MatchString(alias) {
		return fmt.Errorf("%w: only letters, numbers, hyphens and underscores are allowed", ErrInvalidAlias)
	}
	if len(alias) < minAliasLength || len(alias) > maxAliasLength {
		return fmt.Errorf("%w: length must be between %d and %d", ErrInvalidAlias, minAliasLength, maxAliasLength)
	}
	return nil
}

func validateExpiry(days int) error {
	if days < minExpiryDays || days > maxExpiryDays {
		return fmt.Errorf("%w: must be between %d and %d days", ErrInvalidExpiry, minExpiryDays, maxExpiryDays)
	}
	return nil
}
