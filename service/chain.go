package service

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a profile or value set cannot be found.
var ErrNotFound = errors.New("resource not found")

// --- Profile Chain ---

// ProfileChain implements ProfileResolver by trying multiple resolvers in order.
// A resolver answering ErrNotFound passes the request on; any other error stops the chain.
type ProfileChain struct {
	resolvers []ProfileResolver
}

// NewProfileChain creates a new profile chain.
func NewProfileChain(resolvers ...ProfileResolver) *ProfileChain {
	return &ProfileChain{resolvers: resolvers}
}

// ResolveProfile tries each resolver until one succeeds.
func (c *ProfileChain) ResolveProfile(ctx context.Context, name, url string) (*StructureDefinition, error) {
	for _, resolver := range c.resolvers {
		sd, err := resolver.ResolveProfile(ctx, name, url)
		if err == nil && sd != nil {
			return sd, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// Add appends a resolver to the chain.
func (c *ProfileChain) Add(resolver ProfileResolver) {
	c.resolvers = append(c.resolvers, resolver)
}

// --- Caching Wrapper ---

// CachingProfileResolver wraps a ProfileResolver with a process-lifetime cache.
// Misses are not cached here; the profile store memoises them itself.
type CachingProfileResolver struct {
	resolver ProfileResolver
	cache    ProfileCache
}

// NewCachingProfileResolver creates a caching wrapper.
func NewCachingProfileResolver(resolver ProfileResolver, cache ProfileCache) *CachingProfileResolver {
	return &CachingProfileResolver{
		resolver: resolver,
		cache:    cache,
	}
}

// ResolveProfile checks the cache first, then calls the wrapped resolver.
func (c *CachingProfileResolver) ResolveProfile(ctx context.Context, name, url string) (*StructureDefinition, error) {
	key := name + "|" + url
	if sd, ok := c.cache.Get(key); ok {
		return sd, nil
	}

	sd, err := c.resolver.ResolveProfile(ctx, name, url)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, sd)
	return sd, nil
}

// Verify interface compliance
var (
	_ ProfileResolver = (*ProfileChain)(nil)
	_ ProfileResolver = (*CachingProfileResolver)(nil)
)
