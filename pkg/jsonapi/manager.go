package jsonapi

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Manager is an immutable query builder over one record type. Every
// refinement returns a new manager; a manager in hand never changes under
// you. Listing results are memoized per manager.
type Manager struct {
	store    *Store
	rt       *RecordType
	filters  map[string]string
	sortKeys []string
	include  []string
	prefetch []string
	fields   map[string][]string

	memo         []*Record
	materialized bool
}

func newManager(store *Store, rt *RecordType) *Manager {
	return &Manager{
		store:   store,
		rt:      rt,
		filters: map[string]string{},
		fields:  map[string][]string{},
	}
}

// clone copies the manager without its memoized results.
func (m *Manager) clone() *Manager {
	return &Manager{
		store:    m.store,
		rt:       m.rt,
		filters:  maps.Clone(m.filters),
		sortKeys: slices.Clone(m.sortKeys),
		include:  slices.Clone(m.include),
		prefetch: slices.Clone(m.prefetch),
		fields:   maps.Clone(m.fields),
	}
}

// Filter returns a manager with an additional filter.
func (m *Manager) Filter(key, value string) *Manager {
	next := m.clone()
	next.filters[key] = value

	return next
}

// Sort returns a manager with additional sort keys.
func (m *Manager) Sort(keys ...string) *Manager {
	next := m.clone()
	next.sortKeys = append(next.sortKeys, keys...)

	return next
}

// Include returns a manager with additional include paths.
func (m *Manager) Include(paths ...string) *Manager {
	next := m.clone()
	next.include = append(next.include, paths...)

	return next
}

// PrefetchRelated returns a manager that resolves the given relationship
// paths on every fetched record. Path segments are separated by "__"; each
// path also forces the matching include chain on listing requests.
func (m *Manager) PrefetchRelated(paths ...string) *Manager {
	next := m.clone()
	next.prefetch = append(next.prefetch, paths...)

	return next
}

// Fields returns a manager with a sparse fieldset for a resource type.
func (m *Manager) Fields(resourceType string, names ...string) *Manager {
	next := m.clone()
	next.fields[resourceType] = names

	return next
}

// effectiveInclude is the requested include paths plus the dotted prefix
// chains of every prefetch path, deduplicated and sorted.
func (m *Manager) effectiveInclude() []string {
	paths := slices.Clone(m.include)

	for _, lookup := range m.prefetch {
		segments := strings.Split(lookup, "__")
		for i := range segments {
			paths = append(paths, strings.Join(segments[:i+1], "."))
		}
	}

	if len(paths) == 0 {
		return nil
	}

	return dedupeSorted(paths)
}

// params assembles the query parameters for a fetch, filling the defaults
// the remote service expects: the full declared fieldset for the queried
// type when no sparse fieldset was requested, and every declared
// relationship as include when nothing asked for includes.
func (m *Manager) params() *QueryParams {
	params := &QueryParams{
		Filters: maps.Clone(m.filters),
		Sort:    slices.Clone(m.sortKeys),
		Fields:  maps.Clone(m.fields),
	}

	if _, ok := params.Fields[m.rt.ResourceType]; !ok {
		params.Fields[m.rt.ResourceType] = m.rt.FieldNames()
	}

	params.Include = m.effectiveInclude()
	if params.Include == nil {
		params.Include = m.rt.RelationshipNames()
	}

	return params
}

// All fetches every matching record, page by page, memoizing the result on
// this manager.
func (m *Manager) All(ctx context.Context) ([]*Record, error) {
	if m.materialized {
		return m.memo, nil
	}

	records, err := m.Iterator(ctx).All()
	if err != nil {
		return nil, err
	}

	m.memo = records
	m.materialized = true

	return records, nil
}

// At fetches all matching records and returns the one at the given index.
func (m *Manager) At(ctx context.Context, index int) (*Record, error) {
	records, err := m.All(ctx)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(records) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(records))
	}

	return records[index], nil
}

// Exists reports whether the query matches at least one record. It
// materializes the listing so a later All reuses the fetched pages.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	records, err := m.All(ctx)
	if err != nil {
		return false, err
	}

	return len(records) > 0, nil
}

// Count asks the remote service how many records match the filters. It
// requests a minimal page: no includes, no fieldsets, a single record.
func (m *Manager) Count(ctx context.Context) (int, error) {
	params := &QueryParams{
		Filters:  maps.Clone(m.filters),
		PageSize: 1,
	}

	document, err := m.store.client.Fetch(ctx, &ResourceRequest{
		Type:    m.rt.ResourceType,
		Params:  params,
		BaseURL: m.rt.BaseURL,
	})
	if err != nil {
		return 0, err
	}

	if document.Meta == nil || document.Meta.RecordCount == nil {
		return 0, ErrMissingRecordCount
	}

	return *document.Meta.RecordCount, nil
}

// Get fetches a single record by primary key, serving from the record cache
// unless IgnoreCache is given or the cached copy is missing.
func (m *Manager) Get(ctx context.Context, pk int, opts ...GetOption) (*Record, error) {
	var options getOptions
	for _, opt := range opts {
		opt(&options)
	}

	if !options.ignoreCache {
		if record := m.store.records.GetRecord(ctx, m.rt, pk); record != nil {
			resolved := map[int]*Record{pk: record}

			toReFetch, err := m.store.resolveRelated(ctx, m.rt, resolved, m.prefetch)
			if err != nil {
				return nil, err
			}

			if len(toReFetch) == 0 {
				return record, nil
			}
		}
	}

	document, err := m.store.client.Fetch(ctx, &ResourceRequest{
		Type:    m.rt.ResourceType,
		ID:      strconv.Itoa(pk),
		Params:  m.params(),
		BaseURL: m.rt.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	resource, err := document.One()
	if err != nil {
		return nil, err
	}

	included, err := m.store.FromResources(ctx, document.Included)
	if err != nil {
		return nil, err
	}

	record, err := m.store.FromResource(ctx, *resource)
	if err != nil {
		return nil, err
	}

	if record == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, resource.Type)
	}

	err = m.enrichFromIncluded(ctx, []*Record{record}, included)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Iterator starts a lazy page-by-page iteration over the matching records.
func (m *Manager) Iterator(ctx context.Context) *RecordIterator {
	return &RecordIterator{ctx: ctx, manager: m, page: 1}
}

// ForEach applies fn to every matching record, stopping on the first error.
func (m *Manager) ForEach(ctx context.Context, fn func(*Record) error) error {
	return m.Iterator(ctx).ForEach(fn)
}

// fetchPage fetches one listing page in iteration mode: the server is asked
// to skip total counting, and a 404 past the first page means the listing
// ended on a page boundary.
func (m *Manager) fetchPage(ctx context.Context, page int) ([]*Record, bool, error) {
	pageSize := m.rt.pageSize()

	params := m.params()
	params.PageSize = pageSize
	params.PageNumber = page

	document, err := m.store.client.Fetch(ctx, &ResourceRequest{
		Type:    m.rt.ResourceType,
		Params:  params,
		NoCount: true,
		BaseURL: m.rt.BaseURL,
	})
	if err != nil {
		var apiErr *APIError
		if page > 1 && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}

		return nil, false, err
	}

	resources, err := document.Many()
	if err != nil {
		return nil, false, err
	}

	included, err := m.store.FromResources(ctx, document.Included)
	if err != nil {
		return nil, false, err
	}

	records, err := m.store.FromResources(ctx, resources)
	if err != nil {
		return nil, false, err
	}

	err = m.enrichFromIncluded(ctx, records, included)
	if err != nil {
		return nil, false, err
	}

	return records, len(resources) == pageSize, nil
}

// enrichFromIncluded resolves this manager's prefetch paths against the
// records hydrated from a document's included section, level by level. A
// relationship whose targets were not all included stays pending.
func (m *Manager) enrichFromIncluded(ctx context.Context, records []*Record, included []*Record) error {
	if len(m.prefetch) == 0 {
		return nil
	}

	byType := make(map[string]map[int]*Record)

	for _, record := range included {
		resourceType := record.Type().ResourceType
		if byType[resourceType] == nil {
			byType[resourceType] = make(map[int]*Record)
		}

		byType[resourceType][record.ID()] = record
	}

	return m.attachIncluded(records, m.rt, m.prefetch, byType)
}

func (m *Manager) attachIncluded(
	records []*Record,
	rt *RecordType,
	prefetch []string,
	byType map[string]map[int]*Record,
) error {
	bases, nested := baseToNestedLookups(prefetch)

	for _, base := range bases {
		rel, declared := rt.Relationship(base)
		if !declared {
			return unknownRelationshipError(rt, base)
		}

		// Resolved records for the next level, grouped by concrete type so
		// a polymorphic relationship recurses with each type's own schema.
		levelByType := make(map[*RecordType][]*Record)

		for _, record := range records {
			if rel.Many {
				identifiers, known := record.RelatedIdentifiers(base)
				if !known {
					continue
				}

				related := make([]*Record, 0, len(identifiers))

				for _, identifier := range identifiers {
					found := lookupRelated(byType, identifier)
					if found == nil {
						related = nil

						break
					}

					related = append(related, found)
				}

				if related == nil {
					continue
				}

				record.setRelated(base, related)

				for _, found := range related {
					levelByType[found.Type()] = append(levelByType[found.Type()], found)
				}

				continue
			}

			identifier, known := record.RelatedIdentifier(base)
			if !known {
				continue
			}

			if identifier == nil {
				record.setRelated(base, (*Record)(nil))

				continue
			}

			found := lookupRelated(byType, *identifier)
			if found == nil {
				continue
			}

			record.setRelated(base, found)
			levelByType[found.Type()] = append(levelByType[found.Type()], found)
		}

		if len(nested[base]) > 0 {
			for levelRT, levelRecords := range levelByType {
				err := m.attachIncluded(levelRecords, levelRT, nested[base], byType)
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// RecordIterator walks listing pages lazily. The context given at creation
// covers every underlying fetch.
type RecordIterator struct {
	ctx     context.Context //nolint:containedctx // iterator mirrors the one-shot query it came from
	manager *Manager
	page    int
	buffer  []*Record
	index   int
	done    bool
	err     error
}

// HasNext reports whether another record is available, fetching the next
// page when the buffer is exhausted.
func (it *RecordIterator) HasNext() bool {
	if it.err != nil {
		return false
	}

	for it.index >= len(it.buffer) && !it.done {
		it.fetchNextPage()
		if it.err != nil {
			return false
		}
	}

	return it.index < len(it.buffer)
}

// Next returns the next record, fetching pages as needed. It returns
// ErrNoMoreItems once the listing is exhausted.
func (it *RecordIterator) Next() (*Record, error) {
	if !it.HasNext() {
		if it.err != nil {
			return nil, it.err
		}

		return nil, ErrNoMoreItems
	}

	record := it.buffer[it.index]
	it.index++

	return record, nil
}

// All drains the iterator into a slice.
func (it *RecordIterator) All() ([]*Record, error) {
	var records []*Record

	for it.HasNext() {
		record, err := it.Next()
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	if it.err != nil {
		return nil, it.err
	}

	return records, nil
}

// ForEach applies fn to each remaining record, stopping on the first error.
func (it *RecordIterator) ForEach(fn func(*Record) error) error {
	for it.HasNext() {
		record, err := it.Next()
		if err != nil {
			return err
		}

		err = fn(record)
		if err != nil {
			return err
		}
	}

	return it.err
}

// Err returns the first error the iterator hit, if any.
func (it *RecordIterator) Err() error {
	return it.err
}

func (it *RecordIterator) fetchNextPage() {
	records, more, err := it.manager.fetchPage(it.ctx, it.page)
	if err != nil {
		it.err = err

		return
	}

	it.buffer = append(it.buffer, records...)
	it.page++

	if !more {
		it.done = true
	}
}
