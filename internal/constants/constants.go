package constants

import "time"

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Pagination and caching defaults.
const (
	// DefaultPageSize is the listing page size used when a record type
	// does not declare one.
	DefaultPageSize = 50

	// DefaultCacheTTL is the record cache expiration used when a record
	// type does not declare one.
	DefaultCacheTTL = 24 * time.Hour

	// DefaultCacheSize is the maximum number of entries in the in-memory
	// cache backend.
	DefaultCacheSize = 10000

	// DefaultCachePrefix namespaces record cache keys.
	DefaultCachePrefix = "jsonapi"
)

// Header names and media types.
const (
	// HeaderNoCount asks the server to skip expensive total counting on
	// iteration-mode listing requests.
	HeaderNoCount = "X-No-Count"

	// ContentType is the JSON:API media type.
	ContentType = "application/vnd.api+json"
)
