package jsonapi

import (
	"fmt"
	"time"
)

// Field validates and converts raw document values into their in-memory
// representation. Implementations are registered per attribute name on a
// RecordType.
type Field interface {
	// Clean converts a decoded JSON value. It returns an error when the
	// value cannot be converted to the field's semantic type.
	Clean(value any) (any, error)
}

// Attribute is a passthrough scalar or object attribute. Nested object keys
// are normalized to strings.
type Attribute struct{}

// Clean implements Field.
func (Attribute) Clean(value any) (any, error) {
	if nested, ok := value.(map[string]any); ok {
		cleaned := make(map[string]any, len(nested))

		for key, item := range nested {
			cleanedItem, err := (Attribute{}).Clean(item)
			if err != nil {
				return nil, err
			}

			cleaned[key] = cleanedItem
		}

		return cleaned, nil
	}

	return value, nil
}

// DateTimeAttribute parses string values into time.Time.
type DateTimeAttribute struct{}

// Layouts accepted by DateTimeAttribute, tried in order.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Clean implements Field. Non-string values clean to nil.
func (DateTimeAttribute) Clean(value any) (any, error) {
	text, ok := value.(string)
	if !ok {
		return nil, nil //nolint:nilnil // absent or malformed timestamps clean to unset
	}

	for _, layout := range dateTimeLayouts {
		parsed, err := time.Parse(layout, text)
		if err == nil {
			return parsed, nil
		}
	}

	return nil, fmt.Errorf("cannot parse %q as a timestamp", text)
}

// RelationshipField declares a to-one or to-many relationship.
type RelationshipField struct {
	Many bool
}

// Clean implements Field. To-one values clean to *Identifier (nil for an
// explicit null); to-many values clean to []Identifier (empty for an
// explicit null), dropping entries that are not identifiers.
func (f RelationshipField) Clean(value any) (any, error) {
	if f.Many {
		if value == nil {
			return []Identifier{}, nil
		}

		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list of resource identifiers, got %T", value)
		}

		identifiers := make([]Identifier, 0, len(items))

		for _, item := range items {
			identifier := toIdentifier(item)
			if identifier != nil {
				identifiers = append(identifiers, *identifier)
			}
		}

		return identifiers, nil
	}

	if value == nil {
		return (*Identifier)(nil), nil
	}

	// Some services wrap a to-one identifier in a single-element list.
	if items, ok := value.([]any); ok {
		if len(items) == 0 {
			return (*Identifier)(nil), nil
		}

		value = items[0]
	}

	identifier := toIdentifier(value)
	if identifier == nil {
		return nil, fmt.Errorf("expected a resource identifier, got %T", value)
	}

	return identifier, nil
}

// toIdentifier converts an identifier map, an Identifier, or a Record into
// an Identifier. It returns nil when the value is none of those.
func toIdentifier(value any) *Identifier {
	switch typed := value.(type) {
	case Identifier:
		return &typed
	case *Identifier:
		return typed
	case *Record:
		if typed == nil {
			return nil
		}

		identifier := typed.Identifier()

		return &identifier
	case map[string]any:
		rawType, typeOK := typed["type"].(string)
		rawID, idOK := typed["id"]

		if !typeOK || !idOK {
			return nil
		}

		switch id := rawID.(type) {
		case string:
			return &Identifier{Type: rawType, ID: id}
		case float64:
			return &Identifier{Type: rawType, ID: fmt.Sprintf("%.0f", id)}
		case int:
			return &Identifier{Type: rawType, ID: fmt.Sprintf("%d", id)}
		default:
			return nil
		}
	default:
		return nil
	}
}
