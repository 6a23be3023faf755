// Package client implements the jsonapi.RemoteClient transport against a
// JSON:API service over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/recordlink-io/jsonapi-orm/internal/constants"
	internalhttp "github.com/recordlink-io/jsonapi-orm/internal/http"
	"github.com/recordlink-io/jsonapi-orm/pkg/jsonapi"
)

// Client performs JSON:API requests. It implements jsonapi.RemoteClient.
type Client struct {
	httpClient *internalhttp.Client
	logger     jsonapi.Logger
}

// New creates a resource client over an HTTP transport.
func New(httpClient *internalhttp.Client, logger jsonapi.Logger) *Client {
	if logger == nil {
		logger = jsonapi.NopLogger{}
	}

	return &Client{httpClient: httpClient, logger: logger}
}

// resourcePath builds the URL path for a resource type: underscores are
// dasherized and collection paths keep a trailing slash.
func resourcePath(resourceType, id string) string {
	path := "/" + strings.ReplaceAll(resourceType, "_", "-") + "/"
	if id != "" {
		path += id + "/"
	}

	return path
}

// Fetch performs a GET for the request and decodes the document.
func (c *Client) Fetch(ctx context.Context, req *jsonapi.ResourceRequest) (*jsonapi.Document, error) {
	httpReq := &internalhttp.Request{
		Method:  http.MethodGet,
		Path:    resourcePath(req.Type, req.ID),
		BaseURL: req.BaseURL,
	}

	if req.Params != nil {
		httpReq.Query = req.Params.ToValues()
	}

	if req.NoCount {
		httpReq.Headers = map[string]string{constants.HeaderNoCount: "true"}
	}

	resp, err := c.httpClient.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	return decodeDocument(resp.Body)
}

// Patch updates the named attributes of one resource and decodes the
// resulting document.
func (c *Client) Patch(ctx context.Context, resourceType, id string, attributes map[string]any) (*jsonapi.Document, error) {
	payload := map[string]any{
		"data": map[string]any{
			"type":       resourceType,
			"id":         id,
			"attributes": attributes,
		},
	}

	resp, err := c.httpClient.Do(ctx, &internalhttp.Request{
		Method: http.MethodPatch,
		Path:   resourcePath(resourceType, id),
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("patched resource", map[string]interface{}{
		"resource_type": resourceType,
		"resource_id":   id,
		"attributes":    len(attributes),
	})

	return decodeDocument(resp.Body)
}

func decodeDocument(body []byte) (*jsonapi.Document, error) {
	var document jsonapi.Document

	err := json.Unmarshal(body, &document)
	if err != nil {
		return nil, fmt.Errorf("decoding response document: %w", err)
	}

	return &document, nil
}
