package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultEnvironment      = "local"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultRequestTimeout   = 30 * time.Second
	defaultBackendTimeout   = 8 * time.Second
	defaultPageSize         = 3
	defaultAdminPageSize    = 50
	defaultCarouselSize     = 1
	defaultCarouselInterval = 5 * time.Second
	defaultProductCacheSize = 512
	defaultCurrency         = "CLP"
	defaultLocale           = "es-CL"
	defaultSessionLifetime  = 30 * time.Minute
	defaultSessionWarning   = 28 * time.Minute
	defaultSessionThrottle  = time.Minute
	defaultCookieLifetime   = 30 * 24 * time.Hour
	defaultAdminEmail       = "admin@bloomcare.com"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Catalog CatalogConfig
	Display DisplayConfig
	Session SessionConfig
	Admin   AdminConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	Environment    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// Production reports whether cookies must be marked secure.
func (s ServerConfig) Production() bool {
	return s.Environment == "prod" || s.Environment == "production"
}

// BackendConfig points at the REST backend. An empty URL switches the catalog to the static file.
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

// CatalogConfig controls catalog paging and caching.
type CatalogConfig struct {
	StaticFile       string
	PageSize         int
	AdminPageSize    int
	CarouselSize     int
	CarouselInterval time.Duration
	ProductCacheSize int
}

// DisplayConfig controls currency and locale formatting.
type DisplayConfig struct {
	Currency string
	Locale   string
}

// SessionConfig controls the device cookie and the inactivity countdown. Lifetime must match
// the backend's session lifetime.
type SessionConfig struct {
	HashKey        string
	BlockKey       string
	Lifetime       time.Duration
	Warning        time.Duration
	Throttle       time.Duration
	CookieLifetime time.Duration
}

// AdminConfig holds admin panel settings.
type AdminConfig struct {
	SuperAdminEmail string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration by combining defaults, .env overrides and environment variables.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	port := stringWithDefault(lookup, "STOREFRONT_PORT", "")
	if port == "" {
		// Cloud Run injects PORT.
		port = stringWithDefault(lookup, "PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           port,
			Environment:    strings.ToLower(stringWithDefault(lookup, "STOREFRONT_ENV", defaultEnvironment)),
			ReadTimeout:    durationWithDefault(lookup, "STOREFRONT_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "STOREFRONT_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "STOREFRONT_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: durationWithDefault(lookup, "STOREFRONT_REQUEST_TIMEOUT", defaultRequestTimeout),
		},
		Backend: BackendConfig{
			URL:     strings.TrimRight(strings.TrimSpace(stringWithDefault(lookup, "STOREFRONT_BACKEND_URL", "")), "/"),
			Timeout: durationWithDefault(lookup, "STOREFRONT_BACKEND_TIMEOUT", defaultBackendTimeout),
		},
		Catalog: CatalogConfig{
			StaticFile:       stringWithDefault(lookup, "STOREFRONT_STATIC_CATALOG", ""),
			PageSize:         intWithDefault(lookup, "STOREFRONT_PAGE_SIZE", defaultPageSize),
			AdminPageSize:    intWithDefault(lookup, "STOREFRONT_ADMIN_PAGE_SIZE", defaultAdminPageSize),
			CarouselSize:     intWithDefault(lookup, "STOREFRONT_CAROUSEL_SIZE", defaultCarouselSize),
			CarouselInterval: durationWithDefault(lookup, "STOREFRONT_CAROUSEL_INTERVAL", defaultCarouselInterval),
			ProductCacheSize: intWithDefault(lookup, "STOREFRONT_PRODUCT_CACHE_SIZE", defaultProductCacheSize),
		},
		Display: DisplayConfig{
			Currency: strings.ToUpper(stringWithDefault(lookup, "STOREFRONT_CURRENCY", defaultCurrency)),
			Locale:   stringWithDefault(lookup, "STOREFRONT_LOCALE", defaultLocale),
		},
		Session: SessionConfig{
			HashKey:        stringWithDefault(lookup, "STOREFRONT_SESSION_HASH_KEY", ""),
			BlockKey:       stringWithDefault(lookup, "STOREFRONT_SESSION_BLOCK_KEY", ""),
			Lifetime:       durationWithDefault(lookup, "STOREFRONT_SESSION_LIFETIME", defaultSessionLifetime),
			Warning:        durationWithDefault(lookup, "STOREFRONT_SESSION_WARNING", defaultSessionWarning),
			Throttle:       durationWithDefault(lookup, "STOREFRONT_SESSION_THROTTLE", defaultSessionThrottle),
			CookieLifetime: durationWithDefault(lookup, "STOREFRONT_COOKIE_LIFETIME", defaultCookieLifetime),
		},
		Admin: AdminConfig{
			SuperAdminEmail: strings.ToLower(stringWithDefault(lookup, "STOREFRONT_ADMIN_EMAIL", defaultAdminEmail)),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Catalog.PageSize <= 0 {
		missing = append(missing, "Catalog.PageSize")
	}
	if cfg.Catalog.AdminPageSize <= 0 {
		missing = append(missing, "Catalog.AdminPageSize")
	}
	if cfg.Catalog.CarouselSize < 0 {
		missing = append(missing, "Catalog.CarouselSize")
	}
	if cfg.Catalog.ProductCacheSize <= 0 {
		missing = append(missing, "Catalog.ProductCacheSize")
	}
	if cfg.Session.Lifetime <= 0 {
		missing = append(missing, "Session.Lifetime")
	}
	if cfg.Session.Warning <= 0 || cfg.Session.Warning >= cfg.Session.Lifetime {
		missing = append(missing, "Session.Warning")
	}
	if cfg.Session.Throttle < 0 {
		missing = append(missing, "Session.Throttle")
	}
	if cfg.Server.Production() {
		// Ephemeral keys would log every user out on each deploy.
		if len(cfg.Session.HashKey) < 32 {
			missing = append(missing, "Session.HashKey")
		}
		if n := len(cfg.Session.BlockKey); n != 16 && n != 24 && n != 32 {
			missing = append(missing, "Session.BlockKey")
		}
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
