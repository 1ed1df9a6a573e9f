package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Границы длины генерируемого кода (с запасом на эскалацию длины до 32 символов)
const (
	MinCodeLength = 3
	MaxCodeLength = 30
)

type Config struct {
	App  AppConfig
	DB   DBConfig
	Code CodeConfig
	Auth AuthConfig
}

type AppConfig struct {
	Port    string
	BaseURL string
	Env     string
}

// IsDevelopment сообщает, запущено ли приложение в режиме разработки
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

type DBConfig struct {
	URL      string
	MaxConns int32
}

type CodeConfig struct {
	Length int
}

type AuthConfig struct {
	AdminAPIKeys map[string]string // API key -> name/description
}

// Load читает конфигурацию из .env в текущей директории и переменных окружения
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom читает конфигурацию из указанного env-файла; отсутствие файла не ошибка
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "8000")
	v.SetDefault("APP_BASE_URL", "http://127.0.0.1:8000")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("CODE_LENGTH", 6)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.BaseURL = strings.TrimRight(v.GetString("APP_BASE_URL"), "/")
	cfg.App.Env = strings.ToLower(v.GetString("APP_ENV"))

	cfg.DB.URL = v.GetString("DATABASE_URL")
	if cfg.DB.URL == "" {
		cfg.DB.URL = postgresDSN(v)
	}
	cfg.DB.MaxConns = v.GetInt32("DB_MAX_CONNS")

	cfg.Code.Length = v.GetInt("CODE_LENGTH")

	// Формат: key1:name1,key2:name2
	cfg.Auth.AdminAPIKeys = parseAPIKeys(v.GetString("ADMIN_API_KEYS"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Code.Length < MinCodeLength || c.Code.Length > MaxCodeLength {
		return fmt.Errorf("CODE_LENGTH must be between %d and %d, got %d", MinCodeLength, MaxCodeLength, c.Code.Length)
	}

	u, err := url.Parse(c.App.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("APP_BASE_URL must be an absolute URL, got %q", c.App.BaseURL)
	}

	if c.DB.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DB.MaxConns)
	}

	return nil
}

// postgresDSN собирает DSN из отдельных DB_* переменных; без DB_HOST используется SQLite
func postgresDSN(v *viper.Viper) string {
	host := v.GetString("DB_HOST")
	if host == "" {
		return "sqlite:///data/urls.db"
	}

	port := v.GetString("DB_PORT")
	if port == "" {
		port = "5432"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(v.GetString("DB_USER")),
		url.QueryEscape(v.GetString("DB_PASSWORD")),
		host,
		port,
		v.GetString("DB_NAME"),
	)
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
