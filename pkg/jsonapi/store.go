package jsonapi

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Store ties the record machinery together: the registry of declared record
// types, the transport used to reach the remote service, and the shared
// record cache. All record hydration flows through it.
type Store struct {
	registry *Registry
	client   RemoteClient
	records  *RecordCache
	logger   Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRecordCache sets the record cache. The default is an in-process memory
// cache with the default prefix.
func WithRecordCache(records *RecordCache) StoreOption {
	return func(s *Store) {
		s.records = records
	}
}

// WithLogger sets the logger used by record operations.
func WithLogger(logger Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store over a registry and a transport.
func NewStore(registry *Registry, client RemoteClient, opts ...StoreOption) *Store {
	store := &Store{
		registry: registry,
		client:   client,
		records:  NewRecordCache(NewMemoryCache(0), "", ""),
		logger:   NopLogger{},
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Registry returns the store's record type registry.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Records returns the store's record cache.
func (s *Store) Records() *RecordCache {
	return s.records
}

// Query starts an immutable query builder for a record type.
func (s *Store) Query(rt *RecordType) *Manager {
	return newManager(s, rt)
}

// FromResource hydrates one resource document into a record, merging it with
// the cached copy and writing the result back to the cache. Resources of
// unregistered types hydrate to nil.
func (s *Store) FromResource(ctx context.Context, resource Resource) (*Record, error) {
	rt, ok := s.registry.Resolve(resource.Type)
	if !ok {
		return nil, nil //nolint:nilnil // foreign resource types are skipped, not failed
	}

	id, err := (Identifier{Type: resource.Type, ID: resource.ID}).Int()
	if err != nil {
		return nil, &ValidationError{Field: "id", Value: resource.ID, Message: err.Error()}
	}

	existing := s.records.GetRecord(ctx, rt, id)

	record, err := rt.Merge(resource, existing)
	if err != nil {
		return nil, err
	}

	s.records.SetRecord(ctx, record)

	return record, nil
}

// FromResources hydrates a batch of resource documents, one cache round trip
// per resource type. Resources of unregistered types are skipped. Records
// come back grouped by type, preserving document order within each group.
func (s *Store) FromResources(ctx context.Context, resources []Resource) ([]*Record, error) {
	groups := make(map[string][]Resource)
	order := make([]string, 0)

	for _, resource := range resources {
		if _, seen := groups[resource.Type]; !seen {
			order = append(order, resource.Type)
		}

		groups[resource.Type] = append(groups[resource.Type], resource)
	}

	records := make([]*Record, 0, len(resources))

	for _, resourceType := range order {
		rt, ok := s.registry.Resolve(resourceType)
		if !ok {
			continue
		}

		group := groups[resourceType]
		ids := make([]int, 0, len(group))

		for _, resource := range group {
			id, err := (Identifier{Type: resource.Type, ID: resource.ID}).Int()
			if err != nil {
				return nil, &ValidationError{Field: "id", Value: resource.ID, Message: err.Error()}
			}

			ids = append(ids, id)
		}

		cached := s.records.GetRecords(ctx, rt, ids)
		batch := make([]*Record, 0, len(group))

		for i, resource := range group {
			record, err := rt.Merge(resource, cached[ids[i]])
			if err != nil {
				return nil, err
			}

			batch = append(batch, record)
		}

		s.records.SetRecords(ctx, rt, batch)
		records = append(records, batch...)
	}

	return records, nil
}

// GetMany fetches records by id, serving from the cache where possible and
// batching the rest into as few requests as the type's configuration allows.
// Prefetch paths are resolved on every returned record, re-fetching cached
// copies whose relationship identifiers are missing.
func (s *Store) GetMany(ctx context.Context, rt *RecordType, ids []int, prefetch ...string) (map[int]*Record, error) {
	records := s.records.GetRecords(ctx, rt, ids)

	missing := make(map[int]struct{})

	for _, id := range ids {
		if id == 0 {
			continue
		}

		if _, ok := records[id]; !ok {
			missing[id] = struct{}{}
		}
	}

	toReFetch, err := s.resolveRelated(ctx, rt, records, prefetch)
	if err != nil {
		return nil, err
	}

	for id := range toReFetch {
		delete(records, id)
		missing[id] = struct{}{}
	}

	if len(missing) == 0 {
		return records, nil
	}

	missingIDs := make([]int, 0, len(missing))
	for id := range missing {
		missingIDs = append(missingIDs, id)
	}

	sort.Ints(missingIDs)

	manager := s.Query(rt).PrefetchRelated(prefetch...)

	if rt.ManyIDLookup != "" {
		fetched, fetchErr := manager.Filter(rt.ManyIDLookup, joinIDs(missingIDs)).All(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}

		for _, record := range fetched {
			records[record.ID()] = record
		}

		return records, nil
	}

	for _, id := range missingIDs {
		record, fetchErr := manager.Get(ctx, id, IgnoreCache())
		if fetchErr != nil {
			return nil, fetchErr
		}

		records[id] = record
	}

	return records, nil
}

// Patch updates the named fields of a record on the remote service and
// hydrates the resulting document. Only persisted records can be updated,
// and only through declared fields.
func (s *Store) Patch(ctx context.Context, record *Record, fields []string) (*Record, error) {
	if record.ID() == 0 {
		return nil, ErrRecordCreationNotAllowed
	}

	if len(fields) == 0 {
		return nil, ErrUpdateFieldsRequired
	}

	rt := record.Type()
	attributes := make(map[string]any, len(fields))

	for _, name := range fields {
		if _, declared := rt.Fields[name]; !declared {
			return nil, &ValidationError{
				Field:   name,
				Message: "not declared on " + rt.ResourceType,
			}
		}

		value, _ := record.Attr(name)
		attributes[name] = value
	}

	document, err := s.client.Patch(ctx, rt.ResourceType, strconv.Itoa(record.ID()), attributes)
	if err != nil {
		return nil, err
	}

	resource, err := document.One()
	if err != nil {
		return nil, err
	}

	return s.FromResource(ctx, *resource)
}

// Refresh re-fetches a record from the remote service, bypassing the cache,
// and replaces the receiver's state in place.
func (s *Store) Refresh(ctx context.Context, record *Record, prefetch ...string) error {
	fresh, err := s.Query(record.Type()).PrefetchRelated(prefetch...).Get(ctx, record.ID(), IgnoreCache())
	if err != nil {
		return err
	}

	record.replaceFrom(fresh)
	s.records.SetRecord(ctx, record)

	return nil
}

// joinIDs renders ids as the comma-separated filter value used by bulk id
// lookups.
func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}

	return strings.Join(parts, ",")
}

// GetOption adjusts a single-record lookup.
type GetOption func(*getOptions)

type getOptions struct {
	ignoreCache bool
}

// IgnoreCache forces a lookup to bypass the record cache.
func IgnoreCache() GetOption {
	return func(o *getOptions) {
		o.ignoreCache = true
	}
}

// unknownRelationshipError builds the configuration error for a prefetch
// path naming an undeclared relationship.
func unknownRelationshipError(rt *RecordType, name string) error {
	return fmt.Errorf("%w: %q on %s", ErrUnknownRelationship, name, rt.ResourceType)
}
