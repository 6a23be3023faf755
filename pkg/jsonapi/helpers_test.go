package jsonapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recordlink-io/jsonapi-orm/pkg/jsonapi"
)

// newTestRegistry declares the record types shared by the tests: companies
// with a small page size, users with a bulk id lookup, and roles.
func newTestRegistry(t *testing.T) (*jsonapi.Registry, *jsonapi.RecordType, *jsonapi.RecordType, *jsonapi.RecordType) {
	t.Helper()

	registry := jsonapi.NewRegistry()

	companies := registry.MustRegister(&jsonapi.RecordType{
		ResourceType: "companies",
		PageSize:     10,
		Fields: map[string]jsonapi.Field{
			"name":       jsonapi.Attribute{},
			"created_at": jsonapi.DateTimeAttribute{},
			"users":      jsonapi.RelationshipField{Many: true},
		},
	})

	users := registry.MustRegister(&jsonapi.RecordType{
		ResourceType: "users",
		PageSize:     10,
		ManyIDLookup: "id",
		Fields: map[string]jsonapi.Field{
			"name":    jsonapi.Attribute{},
			"company": jsonapi.RelationshipField{},
			"roles":   jsonapi.RelationshipField{Many: true},
		},
	})

	roles := registry.MustRegister(&jsonapi.RecordType{
		ResourceType: "roles",
		PageSize:     10,
		ManyIDLookup: "id",
		Fields: map[string]jsonapi.Field{
			"label": jsonapi.Attribute{},
		},
	})

	return registry, companies, users, roles
}

// mustDocument decodes a JSON:API document literal.
func mustDocument(t *testing.T, payload string) *jsonapi.Document {
	t.Helper()

	var document jsonapi.Document

	require.NoError(t, json.Unmarshal([]byte(payload), &document))

	return &document
}

// mustResource decodes a resource object literal.
func mustResource(t *testing.T, payload string) jsonapi.Resource {
	t.Helper()

	var resource jsonapi.Resource

	require.NoError(t, json.Unmarshal([]byte(payload), &resource))

	return resource
}

type patchCall struct {
	resourceType string
	id           string
	attributes   map[string]any
}

// fakeClient is a scripted jsonapi.RemoteClient recording every request.
type fakeClient struct {
	mu      sync.Mutex
	fetches []jsonapi.ResourceRequest
	patches []patchCall

	onFetch func(req *jsonapi.ResourceRequest) (*jsonapi.Document, error)
	onPatch func(resourceType, id string, attributes map[string]any) (*jsonapi.Document, error)
}

func (f *fakeClient) Fetch(_ context.Context, req *jsonapi.ResourceRequest) (*jsonapi.Document, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, *req)
	f.mu.Unlock()

	if f.onFetch == nil {
		return nil, &jsonapi.APIError{StatusCode: 404}
	}

	return f.onFetch(req)
}

func (f *fakeClient) Patch(_ context.Context, resourceType, id string, attributes map[string]any) (*jsonapi.Document, error) {
	f.mu.Lock()
	f.patches = append(f.patches, patchCall{resourceType: resourceType, id: id, attributes: attributes})
	f.mu.Unlock()

	if f.onPatch == nil {
		return nil, &jsonapi.APIError{StatusCode: 404}
	}

	return f.onPatch(resourceType, id, attributes)
}

func (f *fakeClient) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.fetches)
}

// newTestStore wires a store over a fake client and a fresh memory cache.
func newTestStore(t *testing.T, client jsonapi.RemoteClient) (*jsonapi.Store, *jsonapi.Registry, *jsonapi.RecordType, *jsonapi.RecordType, *jsonapi.RecordType) {
	t.Helper()

	registry, companies, users, roles := newTestRegistry(t)

	store := jsonapi.NewStore(registry, client,
		jsonapi.WithRecordCache(jsonapi.NewRecordCache(jsonapi.NewMemoryCache(0), "", "")),
	)

	return store, registry, companies, users, roles
}

// userResourceJSON renders one users resource with a company and roles.
func userResourceJSON(id int, name string, companyID int, roleIDs ...int) string {
	roles := "["

	for i, roleID := range roleIDs {
		if i > 0 {
			roles += ","
		}

		roles += fmt.Sprintf(`{"type":"roles","id":"%d"}`, roleID)
	}

	roles += "]"

	return fmt.Sprintf(`{
		"type": "users",
		"id": "%d",
		"attributes": {"name": %q},
		"relationships": {
			"company": {"data": {"type": "companies", "id": "%d"}},
			"roles": {"data": %s}
		}
	}`, id, name, companyID, roles)
}

// ttl is a shorthand for registering cache expirations in fixtures.
func ttl(d time.Duration) *time.Duration {
	return &d
}
