package terminology

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofhir/gen3dict/service"
)

// Resource types held by a Store.
const (
	ResourceValueSet   = "ValueSet"
	ResourceCodeSystem = "CodeSystem"
)

// Entry is one stored ValueSet or CodeSystem document.
type Entry struct {
	FullURL      string
	ResourceType string
	ID           string
	URL          string
	Resource     json.RawMessage
}

// Store is the value-set lookup store. Entries are addressed both by their
// bundle full URL and by their declared canonical url.
type Store interface {
	Get(ctx context.Context, fullURL string) (*Entry, error)
	GetByURL(ctx context.Context, url string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	Count(ctx context.Context) (int, error)
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	byFullURL map[string]*Entry
	byURL     map[string]*Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byFullURL: make(map[string]*Entry),
		byURL:     make(map[string]*Entry),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, fullURL string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.byFullURL[fullURL]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", service.ErrNotFound, fullURL)
}

// GetByURL implements Store.
func (s *MemoryStore) GetByURL(ctx context.Context, url string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.byURL[url]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", service.ErrNotFound, url)
}

// Put implements Store. An entry with the same full URL is replaced.
func (s *MemoryStore) Put(ctx context.Context, entry *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateEntry(entry); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byFullURL[entry.FullURL]; ok && old.URL != entry.URL && s.byURL[old.URL] == old {
		delete(s.byURL, old.URL)
	}
	s.byFullURL[entry.FullURL] = entry
	if entry.URL != "" {
		s.byURL[entry.URL] = entry
	}
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byFullURL), nil
}

func validateEntry(entry *Entry) error {
	if entry == nil || entry.FullURL == "" {
		return fmt.Errorf("entry has no full URL")
	}
	switch entry.ResourceType {
	case ResourceValueSet, ResourceCodeSystem:
	default:
		return fmt.Errorf("entry %s: unsupported resourceType %q", entry.FullURL, entry.ResourceType)
	}
	return nil
}

// Verify interface compliance
var _ Store = (*MemoryStore)(nil)
