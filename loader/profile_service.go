package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/gofhir/gen3dict/service"
	"github.com/viant/afs"
)

// InMemoryProfileService implements service.ProfileResolver over profiles
// loaded up front, for offline runs and fixtures.
type InMemoryProfileService struct {
	mu        sync.RWMutex
	byURL     map[string]*service.StructureDefinition
	byName    map[string]*service.StructureDefinition
	byType    map[string]*service.StructureDefinition
	converter *R4Converter
}

// NewInMemoryProfileService creates a new in-memory profile service.
func NewInMemoryProfileService() *InMemoryProfileService {
	return &InMemoryProfileService{
		byURL:     make(map[string]*service.StructureDefinition),
		byName:    make(map[string]*service.StructureDefinition),
		byType:    make(map[string]*service.StructureDefinition),
		converter: NewR4Converter(),
	}
}

// Add indexes a converted profile by URL, name and, for base definitions, type.
func (s *InMemoryProfileService) Add(sd *service.StructureDefinition) error {
	if sd == nil {
		return fmt.Errorf("structure definition is nil")
	}
	if sd.URL == "" && sd.Name == "" {
		return fmt.Errorf("structure definition has neither url nor name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sd.URL != "" {
		s.byURL[sd.URL] = sd
	}
	if sd.Name != "" {
		s.byName[sd.Name] = sd
	}
	// Derived profiles must not shadow the base definition of their type.
	if sd.Type != "" && isBaseTypeDefinition(sd.URL, sd.Type) {
		s.byType[sd.Type] = sd
	}
	return nil
}

// ResolveProfile implements service.ProfileResolver. An explicit url is
// matched exactly (with or without a trailing .json); otherwise name is
// looked up by profile name, then by base type.
func (s *InMemoryProfileService) ResolveProfile(ctx context.Context, name, url string) (*service.StructureDefinition, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if url != "" {
		if sd, ok := s.byURL[url]; ok {
			return sd, nil
		}
		if sd, ok := s.byURL[strings.TrimSuffix(url, ".json")]; ok {
			return sd, nil
		}
		return nil, fmt.Errorf("%w: profile %s", service.ErrNotFound, url)
	}
	if sd, ok := s.byName[name]; ok {
		return sd, nil
	}
	if sd, ok := s.byType[name]; ok {
		return sd, nil
	}
	return nil, fmt.Errorf("%w: profile %s", service.ErrNotFound, name)
}

// Count returns the number of loaded profiles.
func (s *InMemoryProfileService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

func isBaseTypeDefinition(url, typeName string) bool {
	return url == "" || url == "http://hl7.org/fhir/StructureDefinition/"+typeName
}

// Load reads profiles from location through fs. A directory loads every
// *.json object directly under it and skips what does not parse; a single
// object must hold a StructureDefinition or a Bundle.
func (s *InMemoryProfileService) Load(ctx context.Context, fs afs.Service, location string) (int, error) {
	objects, err := fs.List(ctx, location)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", location, err)
	}
	if len(objects) == 1 && !objects[0].IsDir() {
		return s.loadObject(ctx, fs, objects[0].URL())
	}

	total := 0
	for _, obj := range objects {
		if obj.IsDir() || path.Ext(obj.Name()) != ".json" {
			continue
		}
		n, err := s.loadObject(ctx, fs, obj.URL())
		if err != nil {
			continue
		}
		total += n
	}
	return total, nil
}

func (s *InMemoryProfileService) loadObject(ctx context.Context, fs afs.Service, url string) (int, error) {
	data, err := fs.DownloadWithURL(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", url, err)
	}
	n, err := s.LoadFromJSON(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", url, err)
	}
	return n, nil
}

// LoadFromJSON loads a StructureDefinition or the profiles of a Bundle.
func (s *InMemoryProfileService) LoadFromJSON(data []byte) (int, error) {
	var doc struct {
		ResourceType string `json:"resourceType"`
		Entry        []struct {
			Resource json.RawMessage `json:"resource"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("invalid JSON: %w", err)
	}

	switch doc.ResourceType {
	case "StructureDefinition":
		if err := s.addRaw(data); err != nil {
			return 0, err
		}
		return 1, nil
	case "Bundle":
		count := 0
		for _, entry := range doc.Entry {
			if !isStructureDefinition(entry.Resource) {
				continue
			}
			if err := s.addRaw(entry.Resource); err == nil {
				count++
			}
		}
		return count, nil
	default:
		return 0, fmt.Errorf("unsupported resourceType %q", doc.ResourceType)
	}
}

func (s *InMemoryProfileService) addRaw(raw []byte) error {
	sd, err := s.converter.Parse(raw)
	if err != nil {
		return err
	}
	return s.Add(sd)
}

func isStructureDefinition(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	return json.Unmarshal(raw, &probe) == nil && probe.ResourceType == "StructureDefinition"
}

// Verify interface compliance
var _ service.ProfileResolver = (*InMemoryProfileService)(nil)
