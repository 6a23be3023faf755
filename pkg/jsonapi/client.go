package jsonapi

import "context"

// ResourceRequest describes one JSON:API fetch: a listing when ID is empty,
// a single-resource fetch otherwise.
type ResourceRequest struct {
	// Type is the resource-type tag, used as the URL path segment.
	Type string

	// ID selects a single resource when set.
	ID string

	// Params are the query parameters to emit.
	Params *QueryParams

	// NoCount asks the server to skip total counting on listing requests.
	NoCount bool

	// BaseURL overrides the client's base URL for this request.
	BaseURL string
}

// RemoteClient performs JSON:API requests against a remote service. The
// concrete implementation lives in the transport layer; the record machinery
// depends only on this surface.
type RemoteClient interface {
	// Fetch performs a GET for the request and decodes the document.
	Fetch(ctx context.Context, req *ResourceRequest) (*Document, error)

	// Patch performs a PATCH updating the named attributes of one resource
	// and decodes the resulting document.
	Patch(ctx context.Context, resourceType, id string, attributes map[string]any) (*Document, error)
}
