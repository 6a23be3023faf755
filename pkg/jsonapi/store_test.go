package jsonapi_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordlink-io/jsonapi-orm/pkg/jsonapi"
)

func TestStore_FromResource(t *testing.T) {
	t.Parallel()

	t.Run("hydrates and caches", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{}
		store, _, _, users, _ := newTestStore(t, client)
		ctx := context.Background()

		record, err := store.FromResource(ctx, mustResource(t, userResourceJSON(1, "Alice", 7, 3)))
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "Alice", record.StringAttr("name"))

		cached := store.Records().GetRecord(ctx, users, 1)
		require.NotNil(t, cached)
		assert.Equal(t, "Alice", cached.StringAttr("name"))
		assert.Equal(t, 0, client.fetchCount())
	})

	t.Run("unregistered types hydrate to nil", func(t *testing.T) {
		t.Parallel()

		store, _, _, _, _ := newTestStore(t, &fakeClient{})

		record, err := store.FromResource(context.Background(), mustResource(t, `{"type": "aliens", "id": "1"}`))
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("sparse documents merge with the cached copy", func(t *testing.T) {
		t.Parallel()

		store, _, _, _, _ := newTestStore(t, &fakeClient{})
		ctx := context.Background()

		_, err := store.FromResource(ctx, mustResource(t, userResourceJSON(1, "Alice", 7, 3)))
		require.NoError(t, err)

		merged, err := store.FromResource(ctx, mustResource(t, `{
			"type": "users",
			"id": "1",
			"attributes": {"name": "Alicia"}
		}`))
		require.NoError(t, err)

		assert.Equal(t, "Alicia", merged.StringAttr("name"))

		company, known := merged.RelatedIdentifier("company")
		require.True(t, known)
		assert.Equal(t, "7", company.ID)
	})
}

func TestStore_FromResources(t *testing.T) {
	t.Parallel()

	store, _, _, _, _ := newTestStore(t, &fakeClient{})

	records, err := store.FromResources(context.Background(), []jsonapi.Resource{
		mustResource(t, userResourceJSON(1, "Alice", 7)),
		mustResource(t, `{"type": "aliens", "id": "9"}`),
		mustResource(t, `{"type": "roles", "id": "3", "attributes": {"label": "admin"}}`),
		mustResource(t, userResourceJSON(2, "Bob", 7)),
	})
	require.NoError(t, err)

	// Unregistered types are skipped; records come back grouped by type.
	require.Len(t, records, 3)
	assert.Equal(t, "Alice", records[0].StringAttr("name"))
	assert.Equal(t, "Bob", records[1].StringAttr("name"))
	assert.Equal(t, "admin", records[2].StringAttr("label"))
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestStore_GetMany(t *testing.T) {
	t.Parallel()

	t.Run("fully cached needs no fetch", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{}
		store, _, _, users, _ := newTestStore(t, client)
		ctx := context.Background()

		_, err := store.FromResources(ctx, []jsonapi.Resource{
			mustResource(t, userResourceJSON(1, "Alice", 7)),
			mustResource(t, userResourceJSON(2, "Bob", 7)),
		})
		require.NoError(t, err)

		records, err := store.GetMany(ctx, users, []int{1, 2})
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, 0, client.fetchCount())
	})

	t.Run("missing ids are fetched in one filtered listing", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{}
		client.onFetch = func(req *jsonapi.ResourceRequest) (*jsonapi.Document, error) {
			assert.Equal(t, "users", req.Type)
			assert.Empty(t, req.ID)
			assert.Equal(t, "2,3", req.Params.Filters["id"])

			return mustDocument(t, fmt.Sprintf(`{"data": [%s, %s]}`,
				userResourceJSON(2, "Bob", 7),
				userResourceJSON(3, "Carol", 7),
			)), nil
		}

		store, _, _, users, _ := newTestStore(t, client)
		ctx := context.Background()

		_, err := store.FromResource(ctx, mustResource(t, userResourceJSON(1, "Alice", 7)))
		require.NoError(t, err)

		records, err := store.GetMany(ctx, users, []int{1, 2, 3})
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "Bob", records[2].StringAttr("name"))
		assert.Equal(t, "Carol", records[3].StringAttr("name"))
		assert.Equal(t, 1, client.fetchCount())
	})

	t.Run("types without a bulk lookup fetch one by one", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{}
		client.onFetch = func(req *jsonapi.ResourceRequest) (*jsonapi.Document, error) {
			assert.Equal(t, "companies", req.Type)
			require.NotEmpty(t, req.ID)

			return mustDocument(t, fmt.Sprintf(`{"data": {
				"type": "companies",
				"id": %q,
				"attributes": {"name": "company %s"}
			}}`, req.ID, req.ID)), nil
		}

		store, _, companies, _, _ := newTestStore(t, client)

		records, err := store.GetMany(context.Background(), companies, []int{7, 8})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 2, client.fetchCount())
	})

	t.Run("zero ids are ignored", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{}
		store, _, _, users, _ := newTestStore(t, client)

		records, err := store.GetMany(context.Background(), users, []int{0})
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.Equal(t, 0, client.fetchCount())
	})

	t.Run("prefetch batches the union of related ids", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{}
		client.onFetch = func(req *jsonapi.ResourceRequest) (*jsonapi.Document, error) {
			// Only the related roles should be fetched, all at once.
			assert.Equal(t, "roles", req.Type)
			assert.Equal(t, "3,4,5", req.Params.Filters["id"])

			return mustDocument(t, `{"data": [
				{"type": "roles", "id": "3", "attributes": {"label": "admin"}},
				{"type": "roles", "id": "4", "attributes": {"label": "editor"}},
				{"type": "roles", "id": "5", "attributes": {"label": "viewer"}}
			]}`), nil
		}

		store, _, _, users, _ := newTestStore(t, client)
		ctx := context.Background()

		_, err := store.FromResources(ctx, []jsonapi.Resource{
			mustResource(t, userResourceJSON(1, "Alice", 7, 3, 4)),
			mustResource(t, userResourceJSON(2, "Bob", 7, 4, 5)),
		})
		require.NoError(t, err)

		records, err := store.GetMany(ctx, users, []int{1, 2}, "roles")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 1, client.fetchCount())

		aliceRoles, state := records[1].RelatedList("roles")
		require.Equal(t, jsonapi.RelationLoaded, state)
		require.Len(t, aliceRoles, 2)
		assert.Equal(t, "admin", aliceRoles[0].StringAttr("label"))
		assert.Equal(t, "editor", aliceRoles[1].StringAttr("label"))

		bobRoles, state := records[2].RelatedList("roles")
		require.Equal(t, jsonapi.RelationLoaded, state)
		require.Len(t, bobRoles, 2)
		assert.Equal(t, "editor", bobRoles[0].StringAttr("label"))
		assert.Equal(t, "viewer", bobRoles[1].StringAttr("label"))
	})

	t.Run("prefetching an undeclared relationship fails", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{}
		store, _, _, users, _ := newTestStore(t, client)
		ctx := context.Background()

		_, err := store.FromResource(ctx, mustResource(t, userResourceJSON(1, "Alice", 7)))
		require.NoError(t, err)

		_, err = store.GetMany(ctx, users, []int{1}, "bogus")
		require.ErrorIs(t, err, jsonapi.ErrUnknownRelationship)
	})

	t.Run("cached records missing identifiers are re-fetched", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{}
		client.onFetch = func(req *jsonapi.ResourceRequest) (*jsonapi.Document, error) {
			assert.Equal(t, "users", req.Type)
			assert.Equal(t, "1", req.Params.Filters["id"])
			assert.Contains(t, req.Params.Include, "roles")

			return mustDocument(t, fmt.Sprintf(`{
				"data": [%s],
				"included": [
					{"type": "roles", "id": "3", "attributes": {"label": "admin"}}
				]
			}`, userResourceJSON(1, "Alice", 7, 3))), nil
		}

		store, _, _, users, _ := newTestStore(t, client)
		ctx := context.Background()

		// Seed a cached copy that has never seen the roles relationship.
		_, err := store.FromResource(ctx, mustResource(t, `{
			"type": "users",
			"id": "1",
			"attributes": {"name": "Alice"}
		}`))
		require.NoError(t, err)

		records, err := store.GetMany(ctx, users, []int{1}, "roles")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 1, client.fetchCount())

		roles, state := records[1].RelatedList("roles")
		require.Equal(t, jsonapi.RelationLoaded, state)
		require.Len(t, roles, 1)
		assert.Equal(t, "admin", roles[0].StringAttr("label"))
	})
}

func TestStore_Patch(t *testing.T) {
	t.Parallel()

	t.Run("updates declared fields", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{}
		client.onPatch = func(resourceType, id string, attributes map[string]any) (*jsonapi.Document, error) {
			assert.Equal(t, "users", resourceType)
			assert.Equal(t, "1", id)
			assert.Equal(t, map[string]any{"name": "Alicia"}, attributes)

			return mustDocument(t, fmt.Sprintf(`{"data": %s}`, userResourceJSON(1, "Alicia", 7, 3))), nil
		}

		store, _, _, _, _ := newTestStore(t, client)
		ctx := context.Background()

		record, err := store.FromResource(ctx, mustResource(t, userResourceJSON(1, "Alice", 7, 3)))
		require.NoError(t, err)

		require.NoError(t, record.Set("name", "Alicia"))

		updated, err := store.Patch(ctx, record, []string{"name"})
		require.NoError(t, err)
		assert.Equal(t, "Alicia", updated.StringAttr("name"))
		require.Len(t, client.patches, 1)
	})

	t.Run("requires a persisted record", func(t *testing.T) {
		t.Parallel()

		store, _, _, users, _ := newTestStore(t, &fakeClient{})

		record, err := jsonapi.NewRecord(users, 0, nil)
		require.NoError(t, err)

		_, err = store.Patch(context.Background(), record, []string{"name"})
		require.ErrorIs(t, err, jsonapi.ErrRecordCreationNotAllowed)
	})

	t.Run("requires update fields", func(t *testing.T) {
		t.Parallel()

		store, _, _, users, _ := newTestStore(t, &fakeClient{})

		record, err := jsonapi.NewRecord(users, 1, nil)
		require.NoError(t, err)

		_, err = store.Patch(context.Background(), record, nil)
		require.ErrorIs(t, err, jsonapi.ErrUpdateFieldsRequired)
	})

	t.Run("rejects undeclared fields", func(t *testing.T) {
		t.Parallel()

		store, _, _, users, _ := newTestStore(t, &fakeClient{})

		record, err := jsonapi.NewRecord(users, 1, nil)
		require.NoError(t, err)

		_, err = store.Patch(context.Background(), record, []string{"shoe_size"})

		var validationErr *jsonapi.ValidationError

		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "shoe_size", validationErr.Field)
	})
}

func TestStore_Refresh(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	client.onFetch = func(req *jsonapi.ResourceRequest) (*jsonapi.Document, error) {
		assert.Equal(t, "1", req.ID)

		return mustDocument(t, fmt.Sprintf(`{"data": %s}`, userResourceJSON(1, "Fresh", 7, 3))), nil
	}

	store, _, _, _, _ := newTestStore(t, client)
	ctx := context.Background()

	record, err := store.FromResource(ctx, mustResource(t, userResourceJSON(1, "Stale", 7, 3)))
	require.NoError(t, err)

	// The cached copy alone would satisfy a lookup; refresh must bypass it.
	require.NoError(t, store.Refresh(ctx, record))
	assert.Equal(t, "Fresh", record.StringAttr("name"))
	assert.Equal(t, 1, client.fetchCount())
}
