package main

import (
	"context"
	"fmt"
	"path/filepath"

	gd "github.com/gofhir/gen3dict"
	"github.com/gofhir/gen3dict/cache"
	"github.com/gofhir/gen3dict/config"
	"github.com/gofhir/gen3dict/loader"
	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/gofhir/gen3dict/registry"
	"github.com/gofhir/gen3dict/service"
	"github.com/gofhir/gen3dict/terminology"
	"github.com/viant/afs"
)

// profileStore builds the profile resolver: the network-backed cache,
// preceded by any offline profiles found at the profiles location.
func profileStore(ctx context.Context, s *config.Settings, version gd.FHIRVersion, log *logger.Logger) (service.ProfileResolver, error) {
	baseURL := s.HTTP.BaseURL
	if baseURL == "" {
		baseURL = version.ProfileBaseURL()
	}
	client := registry.NewClient(
		registry.WithBaseURL(baseURL),
		registry.WithCacheDir(s.CacheDir),
		registry.WithTimeout(s.HTTP.Timeout),
		registry.WithLogger(log),
	)
	if s.ProfilesDir == "" {
		return client, nil
	}

	offline := loader.NewInMemoryProfileService()
	n, err := offline.Load(ctx, afs.New(), localURL(s.ProfilesDir))
	if err != nil {
		return nil, fmt.Errorf("load profiles from %s: %w", s.ProfilesDir, err)
	}
	log.Info("loaded %d offline profiles from %s", n, s.ProfilesDir)
	chain := service.NewProfileChain(offline, client)
	return service.NewCachingProfileResolver(chain, cache.New[string, *service.StructureDefinition](0)), nil
}

// valueSetStore opens the configured store. The returned function releases
// it and is never nil.
func valueSetStore(ctx context.Context, s *config.Settings) (terminology.Store, func(), error) {
	if s.ValueSets.DatabaseURL != "" {
		store, closeFn, err := terminology.Connect(ctx, s.ValueSets.DatabaseURL)
		if err != nil {
			return nil, func() {}, err
		}
		return store, closeFn, nil
	}
	return terminology.NewMemoryStore(), func() {}, nil
}

// valueSetResolver opens the store and, for the in-memory store, fills it
// from the bulk value-set file and optionally the curated supplement.
func valueSetResolver(ctx context.Context, s *config.Settings, log *logger.Logger) (*terminology.Resolver, func(), error) {
	store, closeFn, err := valueSetStore(ctx, s)
	if err != nil {
		return nil, closeFn, err
	}
	if _, ok := store.(*terminology.MemoryStore); ok {
		ld := terminology.NewLoader(store, terminology.WithLoaderLogger(log))
		if location := localURL(s.ValueSets.Path); s.ValueSets.Path != "" {
			if ok, _ := afs.New().Exists(ctx, location); !ok {
				log.Warn("no value-set file at %s, every binding degrades", s.ValueSets.Path)
			} else if stats, err := ld.LoadFile(ctx, location); err != nil {
				closeFn()
				return nil, func() {}, err
			} else {
				log.Info("loaded %d value sets and %d code systems from %s",
					stats.ValueSetsLoaded, stats.CodeSystemsLoaded, s.ValueSets.Path)
			}
		}
		if s.ValueSets.Curated {
			if _, err := ld.LoadCurated(ctx); err != nil {
				log.Warn("curated value sets: %v", err)
			}
		}
	}
	return terminology.NewResolver(store,
		terminology.WithMaxConcepts(s.MaxConcepts),
		terminology.WithResolverLogger(log),
	), closeFn, nil
}

// localURL makes a relative path absolute so the storage service reads it
// from the working directory. URLs pass through.
func localURL(location string) string {
	if filepath.IsAbs(location) || hasScheme(location) {
		return location
	}
	if abs, err := filepath.Abs(location); err == nil {
		return abs
	}
	return location
}

func hasScheme(location string) bool {
	for i, r := range location {
		if r == ':' {
			return i > 0
		}
		if r == '/' {
			return false
		}
	}
	return false
}
