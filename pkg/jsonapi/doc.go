// Package jsonapi provides a typed record layer over remote JSON:API
// services: declared record types, an immutable query builder, batched
// relationship prefetching, and a pluggable record cache.
//
// # Overview
//
// Remote resources are declared as RecordType values in a Registry. A Store
// ties a registry to a transport (jsonapi.RemoteClient) and a record cache,
// and hydrates wire documents into Record values. The ormclient package
// wires configuration, transport, and cache backends; most consumers should
// import ormclient to construct a Store and then query through the manager
// exposed here.
//
// Declaring and querying a record type
//
//	registry := jsonapi.NewRegistry()
//	users := registry.MustRegister(&jsonapi.RecordType{
//	  ResourceType: "users",
//	  Fields: map[string]jsonapi.Field{
//	    "name":  jsonapi.Attribute{},
//	    "team":  jsonapi.RelationshipField{},
//	    "roles": jsonapi.RelationshipField{Many: true},
//	  },
//	})
//
//	store, err := ormclient.New(ctx, registry, &ormclient.Config{BaseURL: "https://api.example.com"})
//	if err != nil { log.Fatal(err) }
//
//	records, err := store.Query(users).
//	  Filter("team", "42").
//	  PrefetchRelated("roles").
//	  All(ctx)
//
// # Queries and pagination
//
// Managers are immutable: Filter, Sort, Include, Fields, and PrefetchRelated
// each return a refined copy. Listings fetch lazily page by page; use
// Iterator or ForEach to stream without holding every page:
//
//	it := store.Query(users).Filter("active", "true").Iterator(ctx)
//	for it.HasNext() {
//	  record, err := it.Next()
//	  ...
//	}
//
// # Caching
//
// Hydrated records are cached per (type, id) in a pluggable backend: memory
// (LRU), Redis, NATS JetStream KV, a layered chain, or none. Each record
// type controls its expiration through CacheTTL.
package jsonapi
