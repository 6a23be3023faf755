package jsonapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/recordlink-io/jsonapi-orm/internal/constants"
)

// RecordType describes one remote resource type: its resource-type tag, its
// declared fields, and its fetch/cache tuning.
type RecordType struct {
	// ResourceType is the JSON:API type tag, e.g. "companies".
	ResourceType string

	// Fields maps declared field names to their cleaning behavior.
	Fields map[string]Field

	// PageSize is the listing page size; zero means the default of 50.
	PageSize int

	// CacheTTL controls record cache expiration: nil applies the default of
	// 24 hours, zero disables cache reads and writes for this type, and a
	// negative duration caches without expiration.
	CacheTTL *time.Duration

	// ManyIDLookup, when set, names the filter key accepting a
	// comma-separated id list for bulk fetches (e.g. "id"). When empty,
	// missing records are fetched one by one.
	ManyIDLookup string

	// BaseURL overrides the transport base URL for this type. Empty means
	// the client default.
	BaseURL string
}

// TTL returns a duration for CacheTTL semantics (nil when set to 0).
func TTL(d time.Duration) *time.Duration {
	return &d
}

// Relationship returns the declared relationship field with that name.
func (rt *RecordType) Relationship(name string) (RelationshipField, bool) {
	field, ok := rt.Fields[name]
	if !ok {
		return RelationshipField{}, false
	}

	rel, ok := field.(RelationshipField)

	return rel, ok
}

// FieldNames returns all declared field names, sorted.
func (rt *RecordType) FieldNames() []string {
	names := make([]string, 0, len(rt.Fields))
	for name := range rt.Fields {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// RelationshipNames returns all declared relationship names, sorted.
func (rt *RecordType) RelationshipNames() []string {
	names := make([]string, 0, len(rt.Fields))

	for name, field := range rt.Fields {
		if _, ok := field.(RelationshipField); ok {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

func (rt *RecordType) pageSize() int {
	if rt.PageSize > 0 {
		return rt.PageSize
	}

	return constants.DefaultPageSize
}

// cacheTTL resolves the CacheTTL semantics: enabled reports whether reads
// and writes are allowed at all, expires whether entries carry a deadline.
func (rt *RecordType) cacheTTL() (ttl time.Duration, enabled bool, expires bool) {
	if rt.CacheTTL == nil {
		return constants.DefaultCacheTTL, true, true
	}

	switch {
	case *rt.CacheTTL == 0:
		return 0, false, false
	case *rt.CacheTTL < 0:
		return 0, true, false
	default:
		return *rt.CacheTTL, true, true
	}
}

// Merge builds a record from a resource document, carrying forward
// relationship identifiers from a previously cached record for any declared
// field absent from the document. An explicit null in the document clears
// the value; omission does not.
func (rt *RecordType) Merge(resource Resource, existing *Record) (*Record, error) {
	id, err := (Identifier{Type: resource.Type, ID: resource.ID}).Int()
	if err != nil {
		return nil, &ValidationError{Field: "id", Value: resource.ID, Message: err.Error()}
	}

	record := newRecord(rt, id)

	for name, field := range rt.Fields {
		raw, present := documentValue(resource, name)
		if present {
			var value any

			if len(raw) > 0 {
				err = json.Unmarshal(raw, &value)
				if err != nil {
					return nil, &ValidationError{Field: name, Value: string(raw), Message: err.Error()}
				}
			}

			cleaned, cleanErr := field.Clean(value)
			if cleanErr != nil {
				return nil, &ValidationError{Field: name, Value: value, Message: cleanErr.Error()}
			}

			record.setCleaned(name, field, cleaned)

			continue
		}

		if existing == nil {
			continue
		}

		// Absent from the document: keep what the cached record knew.
		if identifiers, ok := existing.relMany[name]; ok {
			record.relMany[name] = identifiers
		} else if identifier, ok := existing.relOne[name]; ok {
			record.relOne[name] = identifier
		}
	}

	return record, nil
}

// documentValue extracts the raw value of a declared field from a resource
// document. Relationships count only when they carry a data payload.
func documentValue(resource Resource, name string) (json.RawMessage, bool) {
	if raw, ok := resource.Attributes[name]; ok {
		return raw, true
	}

	if rel, ok := resource.Relationships[name]; ok && rel.HasData() {
		return rel.Data, true
	}

	return nil, false
}

// Registry maps resource-type tags to their record types. Types are
// registered explicitly at startup; lookups of unregistered types simply
// miss, which callers treat as "not applicable".
type Registry struct {
	types map[string]*RecordType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*RecordType)}
}

// Register adds a record type. Registering the same resource type twice is
// a configuration mistake and fails.
func (r *Registry) Register(rt *RecordType) error {
	if _, exists := r.types[rt.ResourceType]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateResourceType, rt.ResourceType)
	}

	r.types[rt.ResourceType] = rt

	return nil
}

// MustRegister is Register for startup wiring; it panics on duplicates.
func (r *Registry) MustRegister(rt *RecordType) *RecordType {
	err := r.Register(rt)
	if err != nil {
		panic(err)
	}

	return rt
}

// Resolve looks up a record type by its resource-type tag.
func (r *Registry) Resolve(resourceType string) (*RecordType, bool) {
	rt, ok := r.types[resourceType]

	return rt, ok
}
