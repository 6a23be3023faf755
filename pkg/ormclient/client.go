// Package ormclient provides the main entry point for building a record
// store bound to a remote JSON:API service.
package ormclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/recordlink-io/jsonapi-orm/internal/client"
	internalhttp "github.com/recordlink-io/jsonapi-orm/internal/http"
	"github.com/recordlink-io/jsonapi-orm/pkg/jsonapi"
)

// Static errors for configuration validation.
var (
	ErrConfigRequired   = errors.New("config is required")
	ErrBaseURLRequired  = errors.New("base URL is required")
	ErrRegistryRequired = errors.New("registry is required")
)

// Config represents client configuration for building a record store.
type Config struct {
	// BaseURL is the root URL of the remote JSON:API service.
	BaseURL string

	// Headers are sent with every request (for example an Authorization
	// header).
	Headers map[string]string

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// Timeout for HTTP requests. Zero applies the default.
	Timeout time.Duration

	// RetryMax, RetryWaitMin, RetryWaitMax tune the retry policy. Zero
	// values apply the defaults.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Debug enables verbose HTTP request/response logging when a Logger is
	// provided.
	Debug bool

	// Logger is the structured logger used by the HTTP layer and the record
	// machinery.
	Logger jsonapi.Logger

	// Cache configures the record cache backend. Nil means the in-memory
	// default.
	Cache *jsonapi.CacheConfig

	// CachePrefix namespaces record cache keys. Empty means "jsonapi".
	CachePrefix string

	// CacheKeyVersion, when set, is inserted into record cache keys so a
	// schema change can invalidate previously cached records.
	CacheKeyVersion string
}

// New creates a record store for the given registry and configuration.
func New(ctx context.Context, registry *jsonapi.Registry, config *Config) (*jsonapi.Store, error) {
	if config == nil {
		return nil, ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	if registry == nil {
		return nil, ErrRegistryRequired
	}

	logger := config.Logger
	if logger == nil {
		logger = jsonapi.NopLogger{}
	}

	httpOpts := []internalhttp.Option{
		internalhttp.WithLogger(logger),
		internalhttp.WithDebug(config.Debug),
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, internalhttp.WithUserAgent(config.UserAgent))
	}

	if len(config.Headers) > 0 {
		httpOpts = append(httpOpts, internalhttp.WithHeaders(config.Headers))
	}

	if config.Timeout > 0 {
		httpOpts = append(httpOpts, internalhttp.WithTimeout(config.Timeout))
	}

	if config.RetryMax > 0 || config.RetryWaitMin > 0 || config.RetryWaitMax > 0 {
		httpOpts = append(httpOpts, internalhttp.WithRetryConfig(
			config.RetryMax, config.RetryWaitMin, config.RetryWaitMax,
		))
	}

	httpClient := internalhttp.NewClient(config.BaseURL, httpOpts...)

	backend, err := jsonapi.NewCacheFromConfig(ctx, config.Cache)
	if err != nil {
		return nil, fmt.Errorf("building cache backend: %w", err)
	}

	records := jsonapi.NewRecordCache(backend, config.CachePrefix, config.CacheKeyVersion)

	store := jsonapi.NewStore(
		registry,
		client.New(httpClient, logger),
		jsonapi.WithRecordCache(records),
		jsonapi.WithLogger(logger),
	)

	return store, nil
}
