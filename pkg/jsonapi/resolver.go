package jsonapi

import (
	"context"
	"sort"
	"strings"
)

// baseToNestedLookups splits prefetch paths on their first "__" segment,
// grouping the remainders under each base relationship. Base order follows
// first appearance so resolution stays deterministic.
func baseToNestedLookups(lookups []string) ([]string, map[string][]string) {
	order := make([]string, 0, len(lookups))
	nested := make(map[string][]string, len(lookups))

	for _, lookup := range lookups {
		base, rest, hasRest := strings.Cut(lookup, "__")

		if _, seen := nested[base]; !seen {
			order = append(order, base)
			nested[base] = nil
		}

		if hasRest {
			nested[base] = append(nested[base], rest)
		}
	}

	return order, nested
}

// resolveRelated resolves the given prefetch paths on a set of records of one
// type, batching related lookups so each relationship costs one fetch per
// related type per level. Cached records missing the identifiers a path needs
// are reported back for re-fetching. Paths naming undeclared relationships
// are a configuration mistake and fail.
func (s *Store) resolveRelated(
	ctx context.Context,
	rt *RecordType,
	records map[int]*Record,
	prefetch []string,
) (map[int]struct{}, error) {
	toReFetch := make(map[int]struct{})
	if len(prefetch) == 0 || len(records) == 0 {
		return toReFetch, nil
	}

	bases, nested := baseToNestedLookups(prefetch)

	for _, base := range bases {
		rel, declared := rt.Relationship(base)
		if !declared {
			return nil, unknownRelationshipError(rt, base)
		}

		// Union of related identifiers across all records, grouped by type.
		idsByType := make(map[string]map[int]struct{})
		recordToRelated := make(map[int][]Identifier, len(records))

		collect := func(identifier Identifier) error {
			id, err := identifier.Int()
			if err != nil {
				return &ValidationError{Field: base, Value: identifier.ID, Message: err.Error()}
			}

			if idsByType[identifier.Type] == nil {
				idsByType[identifier.Type] = make(map[int]struct{})
			}

			idsByType[identifier.Type][id] = struct{}{}

			return nil
		}

		for _, record := range records {
			if rel.Many {
				identifiers, known := record.RelatedIdentifiers(base)
				if !known {
					toReFetch[record.ID()] = struct{}{}

					continue
				}

				recordToRelated[record.ID()] = identifiers

				for _, identifier := range identifiers {
					if err := collect(identifier); err != nil {
						return nil, err
					}
				}

				continue
			}

			identifier, known := record.RelatedIdentifier(base)
			if !known {
				toReFetch[record.ID()] = struct{}{}

				continue
			}

			if identifier == nil {
				recordToRelated[record.ID()] = nil

				continue
			}

			recordToRelated[record.ID()] = []Identifier{*identifier}

			if err := collect(*identifier); err != nil {
				return nil, err
			}
		}

		results, err := s.fetchRelatedByType(ctx, idsByType, nested[base])
		if err != nil {
			return nil, err
		}

		for _, record := range records {
			if _, pending := toReFetch[record.ID()]; pending {
				continue
			}

			identifiers, resolved := recordToRelated[record.ID()]
			if !resolved && !rel.Many {
				continue
			}

			if rel.Many {
				related := make([]*Record, 0, len(identifiers))

				for _, identifier := range identifiers {
					if found := lookupRelated(results, identifier); found != nil {
						related = append(related, found)
					}
				}

				record.setRelated(base, related)

				continue
			}

			if len(identifiers) == 0 {
				record.setRelated(base, (*Record)(nil))

				continue
			}

			record.setRelated(base, lookupRelated(results, identifiers[0]))
		}
	}

	return toReFetch, nil
}

// fetchRelatedByType resolves one batch of related identifiers, one GetMany
// per resource type. Identifiers of unregistered types resolve to nothing.
func (s *Store) fetchRelatedByType(
	ctx context.Context,
	idsByType map[string]map[int]struct{},
	nested []string,
) (map[string]map[int]*Record, error) {
	results := make(map[string]map[int]*Record, len(idsByType))

	types := make([]string, 0, len(idsByType))
	for resourceType := range idsByType {
		types = append(types, resourceType)
	}

	sort.Strings(types)

	for _, resourceType := range types {
		relatedRT, registered := s.registry.Resolve(resourceType)
		if !registered {
			s.logger.Warn("skipping prefetch of unregistered resource type", map[string]interface{}{
				"resource_type": resourceType,
			})

			continue
		}

		idSet := idsByType[resourceType]
		ids := make([]int, 0, len(idSet))

		for id := range idSet {
			ids = append(ids, id)
		}

		sort.Ints(ids)

		related, err := s.GetMany(ctx, relatedRT, ids, nested...)
		if err != nil {
			return nil, err
		}

		results[resourceType] = related
	}

	return results, nil
}

// lookupRelated finds an already-resolved related record by identifier.
func lookupRelated(results map[string]map[int]*Record, identifier Identifier) *Record {
	byID, ok := results[identifier.Type]
	if !ok {
		return nil
	}

	id, err := identifier.Int()
	if err != nil {
		return nil
	}

	return byID[id]
}
