package jsonapi

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Identifier references a resource by type and id without embedding its data.
type Identifier struct {
	Type string `json:"type"    msgpack:"type"`
	ID   string `json:"id"      msgpack:"id"`
}

// Int coerces the identifier id to an integer primary key.
func (i Identifier) Int() (int, error) {
	pk, err := strconv.Atoi(i.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a numeric id", ErrInvalidIdentifier, i.ID)
	}

	return pk, nil
}

// RelationshipObject is the wire representation of a single relationship
// entry. Data is nil when the "data" key was omitted from the document and
// holds the literal "null" when the relationship was explicitly nulled; the
// two cases carry different meaning during merging and must stay distinct.
type RelationshipObject struct {
	Data json.RawMessage `json:"data,omitempty"`
}

// HasData reports whether the relationship entry carried a data payload.
func (r RelationshipObject) HasData() bool {
	return r.Data != nil
}

// Resource is the wire representation of one JSON:API resource entry.
type Resource struct {
	Type          string                        `json:"type"`
	ID            string                        `json:"id"`
	Attributes    map[string]json.RawMessage    `json:"attributes,omitempty"`
	Relationships map[string]RelationshipObject `json:"relationships,omitempty"`
}

// DocumentMeta carries the subset of top-level metadata the manager reads.
type DocumentMeta struct {
	RecordCount *int `json:"record_count,omitempty"`
}

// Document is a top-level JSON:API payload. Data may be a single resource
// object or an array of them; use One or Many accordingly.
type Document struct {
	Data     json.RawMessage `json:"data,omitempty"`
	Included []Resource      `json:"included,omitempty"`
	Meta     *DocumentMeta   `json:"meta,omitempty"`
}

// One decodes the document data as a single resource object.
func (d *Document) One() (*Resource, error) {
	if len(d.Data) == 0 || string(d.Data) == "null" {
		return nil, ErrEmptyDocumentData
	}

	var resource Resource

	err := json.Unmarshal(d.Data, &resource)
	if err != nil {
		return nil, fmt.Errorf("decoding resource object: %w", err)
	}

	return &resource, nil
}

// Many decodes the document data as an array of resource objects.
func (d *Document) Many() ([]Resource, error) {
	if len(d.Data) == 0 || string(d.Data) == "null" {
		return nil, nil
	}

	var resources []Resource

	err := json.Unmarshal(d.Data, &resources)
	if err != nil {
		return nil, fmt.Errorf("decoding resource array: %w", err)
	}

	return resources, nil
}
