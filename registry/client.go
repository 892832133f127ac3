// Package registry implements the profile store: it resolves a profile name
// or URL to a StructureDefinition, reading through a persistent cache
// directory and remembering names that have no fetchable document.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofhir/gen3dict/cache"
	"github.com/gofhir/gen3dict/loader"
	"github.com/gofhir/gen3dict/pkg/logger"
	"github.com/gofhir/gen3dict/service"
	"github.com/viant/afs"
)

const (
	// DefaultBaseURL is where profiles are fetched from when no URL is given.
	DefaultBaseURL = "https://www.hl7.org/fhir"

	// DefaultTimeout for HTTP requests.
	DefaultTimeout = 30 * time.Second

	// DefaultCacheDir is the default location of cached profile documents.
	DefaultCacheDir = "cache"

	// ProfileInvariant must hold for every fetched document; its name
	// becomes the cache key.
	ProfileInvariant = "name.exists() and snapshot.element.exists()"

	profileSuffix = ".profile.json"
)

// Stats counts profile store activity for one run.
type Stats struct {
	CacheHits  int
	Fetched    int
	Primitives int
}

// Client is the profile store. It is not safe for concurrent use: callers
// serialise access or accept duplicate fetches.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cacheDir   string
	fs         afs.Service
	converter  *loader.R4Converter
	fhirpath   *service.FHIRPathAdapter
	log        *logger.Logger
	parsed     *cache.Cache[string, *service.StructureDefinition]

	primitives map[string]bool
	stats      Stats
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets the location used to derive profile URLs from names.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithCacheDir sets a custom cache directory.
func WithCacheDir(dir string) ClientOption {
	return func(c *Client) {
		c.cacheDir = dir
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = timeout
		c.httpClient = &hc
	}
}

// WithFileSystem replaces the storage service backing the cache.
func WithFileSystem(fs afs.Service) ClientOption {
	return func(c *Client) {
		c.fs = fs
	}
}

// WithMemoryCapacity bounds the number of parsed profiles kept in memory.
func WithMemoryCapacity(n int) ClientOption {
	return func(c *Client) {
		c.parsed = cache.New[string, *service.StructureDefinition](n)
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a new profile store.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
		cacheDir:   DefaultCacheDir,
		fs:         afs.New(),
		converter:  loader.NewR4Converter(),
		fhirpath:   service.NewFHIRPathAdapter(),
		log:        logger.Default(),
		parsed:     cache.New[string, *service.StructureDefinition](cache.DefaultCapacity),
		primitives: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !strings.Contains(c.cacheDir, "://") {
		if abs, err := filepath.Abs(c.cacheDir); err == nil {
			c.cacheDir = abs
		}
	}
	return c
}

// ProfileURL derives the canonical fetch location for a profile name.
func (c *Client) ProfileURL(name string) string {
	return fmt.Sprintf("%s/%s%s", c.baseURL, name, profileSuffix)
}

// RewriteURL applies the known host and path corrections and ensures a
// .json suffix.
func RewriteURL(url string) string {
	url = strings.ReplaceAll(url, "ncpi-fhir.github.io", "nih-ncpi.github.io")
	url = strings.ReplaceAll(url, "StructureDefinition/ncpi", "StructureDefinition-ncpi")
	if !strings.HasSuffix(url, "json") {
		url += ".json"
	}
	return url
}

// CachePath returns the cache location of a profile name.
func (c *Client) CachePath(name string) string {
	return c.cacheDir + "/" + name + profileSuffix
}

// ResolveProfile implements service.ProfileResolver.
func (c *Client) ResolveProfile(ctx context.Context, name, url string) (*service.StructureDefinition, error) {
	if name == "FHIRReference" {
		name = "reference"
	}
	key := name
	if key == "" {
		key = cacheKeyFromURL(url)
	}
	if c.primitives[key] {
		return nil, fmt.Errorf("%w: %s is primitive", service.ErrNotFound, key)
	}

	if url == "" {
		url = c.ProfileURL(name)
	}
	url = RewriteURL(url)

	if sd, ok := c.parsed.Get(key); ok {
		c.stats.CacheHits++
		return sd, nil
	}
	if sd, ok := c.readCache(ctx, key); ok {
		c.parsed.Set(key, sd)
		return sd, nil
	}

	c.log.Debug("fetching %s", url)
	raw, err := c.fetch(ctx, url)
	if err != nil {
		if ctxErr := interrupted(ctx, err); ctxErr != nil {
			return nil, fmt.Errorf("fetching %s: %w", url, ctxErr)
		}
		c.markPrimitive(key)
		c.log.Debug("fetching %s failed: %v", url, err)
		return nil, fmt.Errorf("%w: %s: %v", service.ErrNotFound, url, err)
	}
	if err := c.checkProfile(ctx, raw); err != nil {
		if ctxErr := interrupted(ctx, err); ctxErr != nil {
			return nil, fmt.Errorf("checking %s: %w", url, ctxErr)
		}
		c.markPrimitive(key)
		c.log.Warn("document at %s is not a profile: %v", url, err)
		return nil, fmt.Errorf("%w: %s: %v", service.ErrNotFound, url, err)
	}
	sd, err := c.converter.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", url, err)
	}
	c.stats.Fetched++
	c.parsed.Set(key, sd)

	// The document's own name is the canonical cache key; the requested
	// key is written too so later runs hit without a fetch.
	for _, k := range uniqueKeys(sd.Name, key) {
		if err := c.writeCache(ctx, k, raw); err != nil {
			c.log.Warn("failed to cache profile %s: %v", k, err)
		}
	}
	return sd, nil
}

// Primitives returns the names marked as having no fetchable profile.
func (c *Client) Primitives() []string {
	names := make([]string, 0, len(c.primitives))
	for name := range c.primitives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns the counters for this run.
func (c *Client) Stats() Stats {
	s := c.stats
	s.Primitives = len(c.primitives)
	return s
}

func (c *Client) markPrimitive(key string) {
	c.primitives[key] = true
}

func (c *Client) readCache(ctx context.Context, key string) (*service.StructureDefinition, bool) {
	if key == "" {
		return nil, false
	}
	location := c.CachePath(key)
	exists, err := c.fs.Exists(ctx, location)
	if err != nil || !exists {
		return nil, false
	}
	raw, err := c.fs.DownloadWithURL(ctx, location)
	if err != nil {
		c.log.Warn("failed to read cached profile %s: %v", location, err)
		return nil, false
	}
	sd, err := c.converter.Parse(raw)
	if err != nil {
		c.log.Warn("ignoring corrupt cached profile %s: %v", location, err)
		return nil, false
	}
	c.log.Debug("found in cache %s", location)
	c.stats.CacheHits++
	return sd, true
}

// writeCache stores raw under key unless an entry already exists.
func (c *Client) writeCache(ctx context.Context, key string, raw []byte) error {
	location := c.CachePath(key)
	if exists, err := c.fs.Exists(ctx, location); err == nil && exists {
		return nil
	}
	if err := c.fs.Upload(ctx, location, 0o644, bytes.NewReader(raw)); err != nil {
		return err
	}
	c.log.Debug("wrote to cache %s", location)
	return nil
}

// interrupted returns the context error behind err, if the failure came
// from ctx ending rather than from the document. Such failures are not
// remembered.
func interrupted(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	for _, target := range []error{context.Canceled, context.DeadlineExceeded} {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("response is not JSON")
	}
	return raw, nil
}

func (c *Client) checkProfile(ctx context.Context, raw []byte) error {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	if probe.ResourceType != "StructureDefinition" {
		return fmt.Errorf("unexpected resourceType %q", probe.ResourceType)
	}
	return c.fhirpath.Require(ctx, ProfileInvariant, raw)
}

// cacheKeyFromURL names a URL-only request after its last path segment.
func cacheKeyFromURL(url string) string {
	base := path.Base(url)
	base = strings.TrimSuffix(base, ".json")
	base = strings.TrimSuffix(base, ".profile")
	return strings.TrimPrefix(base, "StructureDefinition-")
}

func uniqueKeys(keys ...string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Verify interface compliance
var _ service.ProfileResolver = (*Client)(nil)
