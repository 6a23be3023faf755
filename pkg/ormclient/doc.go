// Package ormclient wires configuration, HTTP transport, and cache backends
// into a ready-to-use jsonapi.Store.
//
// Construct a store directly from a Config, or load a configuration file
// (with declared resource schemas) via LoadConfig and BuildRegistry:
//
//	cfg, err := ormclient.LoadConfig("jsonapi.yaml")
//	if err != nil { log.Fatal(err) }
//
//	registry, err := cfg.BuildRegistry()
//	if err != nil { log.Fatal(err) }
//
//	store, err := ormclient.New(ctx, registry, cfg.ClientConfig(logger))
package ormclient
