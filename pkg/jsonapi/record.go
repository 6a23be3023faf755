package jsonapi

import (
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// RelationState describes whether a relationship has been resolved into
// related records. Resolution never happens implicitly: a Pending
// relationship requires a prefetch or a refresh.
type RelationState int

const (
	// RelationPending means the related record(s) have not been resolved;
	// a fetch is required before they can be read.
	RelationPending RelationState = iota

	// RelationAbsent means the last-seen document explicitly said there is
	// no related record.
	RelationAbsent

	// RelationLoaded means the related record (or list) has been resolved.
	RelationLoaded
)

// Record is a typed in-memory entity representing one remote resource.
// Relationship identifiers always reflect what the last-seen document said;
// the related-record cache is a derived convenience populated only by
// prefetching and is never serialized.
type Record struct {
	id      int
	rt      *RecordType
	attrs   map[string]any
	relOne  map[string]*Identifier  // key present = identifier known (nil = explicit null)
	relMany map[string][]Identifier // key present = identifier list known
	related map[string]any          // *Record or []*Record, derived
}

// NewRecord creates a record of the given type, applying the provided field
// values through their declared cleaning. Unknown field names are rejected.
func NewRecord(rt *RecordType, id int, values map[string]any) (*Record, error) {
	record := newRecord(rt, id)

	for name, value := range values {
		err := record.Set(name, value)
		if err != nil {
			return nil, err
		}
	}

	return record, nil
}

func newRecord(rt *RecordType, id int) *Record {
	return &Record{
		id:      id,
		rt:      rt,
		attrs:   make(map[string]any),
		relOne:  make(map[string]*Identifier),
		relMany: make(map[string][]Identifier),
		related: make(map[string]any),
	}
}

// ID returns the record's integer primary key, zero when unknown.
func (r *Record) ID() int {
	return r.id
}

// Type returns the record's type descriptor.
func (r *Record) Type() *RecordType {
	return r.rt
}

// Identifier returns the (type, id) identifier of this record.
func (r *Record) Identifier() Identifier {
	return Identifier{Type: r.rt.ResourceType, ID: strconv.Itoa(r.id)}
}

// Equal reports record equality: same type and same id, or the same
// instance when the id is absent.
func (r *Record) Equal(other *Record) bool {
	if other == nil || r.rt != other.rt {
		return false
	}

	if r.id == 0 || other.id == 0 {
		return r == other
	}

	return r.id == other.id
}

// Set assigns a field value through the field's declared cleaning.
func (r *Record) Set(name string, value any) error {
	field, ok := r.rt.Fields[name]
	if !ok {
		return &ValidationError{Field: name, Value: value, Message: "not declared on " + r.rt.ResourceType}
	}

	cleaned, err := cleanFieldValue(field, value)
	if err != nil {
		return &ValidationError{Field: name, Value: value, Message: err.Error()}
	}

	r.setCleaned(name, field, cleaned)

	return nil
}

// setCleaned stores an already-cleaned value in the right slot.
func (r *Record) setCleaned(name string, field Field, cleaned any) {
	rel, isRel := field.(RelationshipField)
	if !isRel {
		r.attrs[name] = cleaned

		return
	}

	if rel.Many {
		identifiers, _ := cleaned.([]Identifier)
		if identifiers == nil {
			identifiers = []Identifier{}
		}

		r.relMany[name] = identifiers

		return
	}

	identifier, _ := cleaned.(*Identifier)
	r.relOne[name] = identifier
}

// cleanFieldValue cleans a value, normalizing already-typed relationship
// inputs so records and identifiers can be assigned programmatically.
func cleanFieldValue(field Field, value any) (any, error) {
	if rel, ok := field.(RelationshipField); ok && rel.Many {
		switch typed := value.(type) {
		case []Identifier:
			items := make([]any, len(typed))
			for i, identifier := range typed {
				items[i] = identifier
			}

			value = items
		case []*Record:
			items := make([]any, len(typed))
			for i, record := range typed {
				items[i] = record
			}

			value = items
		}
	}

	return field.Clean(value)
}

// Attr returns a cleaned attribute value and whether it has been set.
func (r *Record) Attr(name string) (any, bool) {
	value, ok := r.attrs[name]

	return value, ok
}

// StringAttr returns an attribute as a string, empty when unset or not a
// string.
func (r *Record) StringAttr(name string) string {
	value, _ := r.attrs[name].(string)

	return value
}

// RelatedIdentifier returns the to-one identifier for a relationship. The
// second result is false when the relationship was never seen in a document;
// a nil identifier with true means it was explicitly nulled.
func (r *Record) RelatedIdentifier(name string) (*Identifier, bool) {
	identifier, ok := r.relOne[name]

	return identifier, ok
}

// RelatedIdentifiers returns the to-many identifier list for a relationship
// and whether the relationship has been seen in a document.
func (r *Record) RelatedIdentifiers(name string) ([]Identifier, bool) {
	identifiers, ok := r.relMany[name]

	return identifiers, ok
}

// Related returns the prefetched record for a to-one relationship.
func (r *Record) Related(name string) (*Record, RelationState) {
	if cached, ok := r.related[name]; ok {
		record, _ := cached.(*Record)
		if record == nil {
			return nil, RelationAbsent
		}

		return record, RelationLoaded
	}

	identifier, known := r.relOne[name]
	if known && identifier == nil {
		return nil, RelationAbsent
	}

	return nil, RelationPending
}

// RelatedList returns the prefetched records for a to-many relationship in
// identifier order.
func (r *Record) RelatedList(name string) ([]*Record, RelationState) {
	if cached, ok := r.related[name]; ok {
		records, _ := cached.([]*Record)

		return records, RelationLoaded
	}

	identifiers, known := r.relMany[name]
	if known && len(identifiers) == 0 {
		return []*Record{}, RelationAbsent
	}

	return nil, RelationPending
}

// setRelated stores a derived related value (a *Record or []*Record).
func (r *Record) setRelated(name string, value any) {
	r.related[name] = value
}

// replaceFrom copies all field state from a fresh record, preserving the
// receiver's identity. Used by refresh.
func (r *Record) replaceFrom(fresh *Record) {
	r.id = fresh.id
	r.attrs = fresh.attrs
	r.relOne = fresh.relOne
	r.relMany = fresh.relMany
	r.related = fresh.related
}

// recordPayload is the serialized form of a record. The derived related
// cache is intentionally excluded.
type recordPayload struct {
	ID      int                     `msgpack:"id"`
	Attrs   map[string]any          `msgpack:"attrs"`
	RelOne  map[string]*Identifier  `msgpack:"rel_one"`
	RelMany map[string][]Identifier `msgpack:"rel_many"`
}

// MarshalBinary encodes the record with msgpack so attribute types such as
// time.Time survive a cache round trip.
func (r *Record) MarshalBinary() ([]byte, error) {
	payload := recordPayload{
		ID:      r.id,
		Attrs:   r.attrs,
		RelOne:  r.relOne,
		RelMany: r.relMany,
	}

	data, err := msgpack.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("encoding record %s:%d: %w", r.rt.ResourceType, r.id, err)
	}

	return data, nil
}

// decodeRecord rebuilds a record of the given type from its encoded form.
func decodeRecord(rt *RecordType, data []byte) (*Record, error) {
	var payload recordPayload

	err := msgpack.Unmarshal(data, &payload)
	if err != nil {
		return nil, fmt.Errorf("decoding record of type %s: %w", rt.ResourceType, err)
	}

	record := newRecord(rt, payload.ID)

	if payload.Attrs != nil {
		record.attrs = payload.Attrs
	}

	if payload.RelOne != nil {
		record.relOne = payload.RelOne
	}

	if payload.RelMany != nil {
		record.relMany = payload.RelMany
	}

	return record, nil
}
