package gen3dict

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stage names used when recording per-stage timing.
const (
	StageWalk     = "walk"
	StageAssemble = "assemble"
	StageWrite    = "write"
	StageIndex    = "index"
)

// Metrics tracks generation counters using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	// Resource counts
	resourcesTotal  atomic.Uint64
	resourcesFailed atomic.Uint64
	filesWritten    atomic.Uint64
	filesUnchanged  atomic.Uint64

	// Timing per resource (stored as nanoseconds)
	resourceTimeTotal atomic.Uint64
	resourceTimeMin   atomic.Uint64
	resourceTimeMax   atomic.Uint64

	// Profile store
	profilesFetched atomic.Uint64
	cacheHits       atomic.Uint64
	primitives      atomic.Uint64

	// Value sets
	valueSetsResolved atomic.Uint64
	valueSetsMissing  atomic.Uint64
	degradations      atomic.Uint64

	// Issue counts by severity
	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64
	infosTotal    atomic.Uint64

	stageTiming sync.Map // map[string]*stageMetrics
}

type stageMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64 // nanoseconds
	failures    atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// Initialize min to max uint64 so first value becomes the minimum
	m.resourceTimeMin.Store(^uint64(0))
	return m
}

// --- Recording Methods ---

// RecordResource records a finished resource.
func (m *Metrics) RecordResource(duration time.Duration, ok bool) {
	m.resourcesTotal.Add(1)
	if !ok {
		m.resourcesFailed.Add(1)
	}

	ns := uint64(duration.Nanoseconds()) //nolint:gosec // Safe: nanoseconds are always positive for valid durations
	m.resourceTimeTotal.Add(ns)

	for {
		old := m.resourceTimeMin.Load()
		if ns >= old || m.resourceTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.resourceTimeMax.Load()
		if ns <= old || m.resourceTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordWrite records a schema file that was written or found unchanged.
func (m *Metrics) RecordWrite(written bool) {
	if written {
		m.filesWritten.Add(1)
		return
	}
	m.filesUnchanged.Add(1)
}

// RecordProfiles adds profile store counters.
func (m *Metrics) RecordProfiles(fetched, cacheHits, primitives int) {
	m.profilesFetched.Add(uint64(fetched)) //nolint:gosec // Safe: small positive counters
	m.cacheHits.Add(uint64(cacheHits))     //nolint:gosec // Safe: small positive counters
	m.primitives.Store(uint64(primitives)) //nolint:gosec // Safe: small positive counters
}

// RecordValueSets adds value-set resolver counters.
func (m *Metrics) RecordValueSets(resolved, missing int) {
	m.valueSetsResolved.Add(uint64(resolved)) //nolint:gosec // Safe: small positive counters
	m.valueSetsMissing.Add(uint64(missing))   //nolint:gosec // Safe: small positive counters
}

// RecordDegradation records a property emitted without an enumeration.
func (m *Metrics) RecordDegradation() {
	m.degradations.Add(1)
}

// RecordIssue records an issue based on severity.
func (m *Metrics) RecordIssue(severity IssueSeverity) {
	switch severity {
	case SeverityError, SeverityFatal:
		m.errorsTotal.Add(1)
	case SeverityWarning:
		m.warningsTotal.Add(1)
	case SeverityInformation:
		m.infosTotal.Add(1)
	}
}

// RecordStage records the duration of one generation stage.
func (m *Metrics) RecordStage(name string, duration time.Duration, failed bool) {
	sm := m.getOrCreateStageMetrics(name)
	sm.invocations.Add(1)
	sm.totalTime.Add(uint64(duration.Nanoseconds())) //nolint:gosec // Safe: nanoseconds are always positive
	if failed {
		sm.failures.Add(1)
	}
}

func (m *Metrics) getOrCreateStageMetrics(name string) *stageMetrics {
	if v, ok := m.stageTiming.Load(name); ok {
		return v.(*stageMetrics)
	}
	actual, _ := m.stageTiming.LoadOrStore(name, &stageMetrics{})
	return actual.(*stageMetrics)
}

// --- Query Methods ---

// ResourcesTotal returns the number of resources processed.
func (m *Metrics) ResourcesTotal() uint64 {
	return m.resourcesTotal.Load()
}

// ResourcesFailed returns the number of resources that produced no schema.
func (m *Metrics) ResourcesFailed() uint64 {
	return m.resourcesFailed.Load()
}

// FilesWritten returns the number of schema files written.
func (m *Metrics) FilesWritten() uint64 {
	return m.filesWritten.Load()
}

// FilesUnchanged returns the number of schema files left untouched.
func (m *Metrics) FilesUnchanged() uint64 {
	return m.filesUnchanged.Load()
}

// AverageResourceTime returns the average per-resource duration.
func (m *Metrics) AverageResourceTime() time.Duration {
	total := m.resourcesTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.resourceTimeTotal.Load() / total) //nolint:gosec // Safe: nanoseconds within int64 range
}

// MinResourceTime returns the fastest per-resource duration.
func (m *Metrics) MinResourceTime() time.Duration {
	minVal := m.resourceTimeMin.Load()
	if minVal == ^uint64(0) {
		return 0
	}
	return time.Duration(minVal) //nolint:gosec // Safe: nanoseconds within int64 range
}

// MaxResourceTime returns the slowest per-resource duration.
func (m *Metrics) MaxResourceTime() time.Duration {
	return time.Duration(m.resourceTimeMax.Load()) //nolint:gosec // Safe: nanoseconds within int64 range
}

// ProfilesFetched returns the number of profiles fetched over the network.
func (m *Metrics) ProfilesFetched() uint64 {
	return m.profilesFetched.Load()
}

// CacheHits returns the number of profiles read from the cache.
func (m *Metrics) CacheHits() uint64 {
	return m.cacheHits.Load()
}

// CacheHitRate returns the profile cache hit rate (0.0 to 1.0).
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	total := hits + m.profilesFetched.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Primitives returns the number of names known to have no profile.
func (m *Metrics) Primitives() uint64 {
	return m.primitives.Load()
}

// ValueSetsResolved returns the number of value sets enumerated.
func (m *Metrics) ValueSetsResolved() uint64 {
	return m.valueSetsResolved.Load()
}

// ValueSetsMissing returns the number of value sets not found.
func (m *Metrics) ValueSetsMissing() uint64 {
	return m.valueSetsMissing.Load()
}

// Degradations returns the number of properties emitted without an enum.
func (m *Metrics) Degradations() uint64 {
	return m.degradations.Load()
}

// ErrorsTotal returns the total error issues found.
func (m *Metrics) ErrorsTotal() uint64 {
	return m.errorsTotal.Load()
}

// WarningsTotal returns the total warning issues found.
func (m *Metrics) WarningsTotal() uint64 {
	return m.warningsTotal.Load()
}

// InfosTotal returns the total informational issues found.
func (m *Metrics) InfosTotal() uint64 {
	return m.infosTotal.Load()
}

// StageStats holds timing for one generation stage.
type StageStats struct {
	Name        string        `json:"name"`
	Invocations uint64        `json:"invocations"`
	TotalTime   time.Duration `json:"total_time"`
	AvgTime     time.Duration `json:"avg_time"`
	Failures    uint64        `json:"failures"`
}

func (sm *stageMetrics) stats(name string) StageStats {
	invocations := sm.invocations.Load()
	totalTime := sm.totalTime.Load()

	var avgTime time.Duration
	if invocations > 0 {
		avgTime = time.Duration(totalTime / invocations) //nolint:gosec // Safe: nanoseconds within int64 range
	}
	return StageStats{
		Name:        name,
		Invocations: invocations,
		TotalTime:   time.Duration(totalTime), //nolint:gosec // Safe: nanoseconds within int64 range
		AvgTime:     avgTime,
		Failures:    sm.failures.Load(),
	}
}

// StageStats returns statistics for a specific stage.
func (m *Metrics) StageStats(name string) (StageStats, bool) {
	v, ok := m.stageTiming.Load(name)
	if !ok {
		return StageStats{Name: name}, false
	}
	return v.(*stageMetrics).stats(name), true
}

// AllStageStats returns statistics for all stages.
func (m *Metrics) AllStageStats() []StageStats {
	var stats []StageStats
	m.stageTiming.Range(func(key, value any) bool {
		stats = append(stats, value.(*stageMetrics).stats(key.(string)))
		return true
	})
	return stats
}

// --- Export Methods ---

// Snapshot represents a point-in-time snapshot of all metrics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	ResourcesTotal  uint64 `json:"resources_total"`
	ResourcesFailed uint64 `json:"resources_failed"`
	FilesWritten    uint64 `json:"files_written"`
	FilesUnchanged  uint64 `json:"files_unchanged"`

	AvgResourceTimeNs uint64 `json:"avg_resource_time_ns"`
	MinResourceTimeNs uint64 `json:"min_resource_time_ns"`
	MaxResourceTimeNs uint64 `json:"max_resource_time_ns"`

	ProfilesFetched uint64  `json:"profiles_fetched"`
	CacheHits       uint64  `json:"cache_hits"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	Primitives      uint64  `json:"primitives"`

	ValueSetsResolved uint64 `json:"valuesets_resolved"`
	ValueSetsMissing  uint64 `json:"valuesets_missing"`
	Degradations      uint64 `json:"degradations"`

	ErrorsTotal   uint64 `json:"errors_total"`
	WarningsTotal uint64 `json:"warnings_total"`
	InfosTotal    uint64 `json:"infos_total"`

	Stages []StageStats `json:"stages,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:         time.Now(),
		ResourcesTotal:    m.resourcesTotal.Load(),
		ResourcesFailed:   m.resourcesFailed.Load(),
		FilesWritten:      m.filesWritten.Load(),
		FilesUnchanged:    m.filesUnchanged.Load(),
		AvgResourceTimeNs: uint64(m.AverageResourceTime().Nanoseconds()), //nolint:gosec // Safe: non-negative
		MinResourceTimeNs: uint64(m.MinResourceTime().Nanoseconds()),     //nolint:gosec // Safe: non-negative
		MaxResourceTimeNs: m.resourceTimeMax.Load(),
		ProfilesFetched:   m.profilesFetched.Load(),
		CacheHits:         m.cacheHits.Load(),
		CacheHitRate:      m.CacheHitRate(),
		Primitives:        m.primitives.Load(),
		ValueSetsResolved: m.valueSetsResolved.Load(),
		ValueSetsMissing:  m.valueSetsMissing.Load(),
		Degradations:      m.degradations.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		WarningsTotal:     m.warningsTotal.Load(),
		InfosTotal:        m.infosTotal.Load(),
		Stages:            m.AllStageStats(),
	}
}

// Export returns metrics as a flat map suitable for external systems.
func (m *Metrics) Export() map[string]any {
	s := m.Snapshot()
	return map[string]any{
		"resources_total":      s.ResourcesTotal,
		"resources_failed":     s.ResourcesFailed,
		"files_written":        s.FilesWritten,
		"files_unchanged":      s.FilesUnchanged,
		"avg_resource_time_ns": s.AvgResourceTimeNs,
		"min_resource_time_ns": s.MinResourceTimeNs,
		"max_resource_time_ns": s.MaxResourceTimeNs,
		"profiles_fetched":     s.ProfilesFetched,
		"cache_hits":           s.CacheHits,
		"cache_hit_rate":       s.CacheHitRate,
		"primitives":           s.Primitives,
		"valuesets_resolved":   s.ValueSetsResolved,
		"valuesets_missing":    s.ValueSetsMissing,
		"degradations":         s.Degradations,
		"errors_total":         s.ErrorsTotal,
		"warnings_total":       s.WarningsTotal,
		"infos_total":          s.InfosTotal,
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.resourcesTotal.Store(0)
	m.resourcesFailed.Store(0)
	m.filesWritten.Store(0)
	m.filesUnchanged.Store(0)
	m.resourceTimeTotal.Store(0)
	m.resourceTimeMin.Store(^uint64(0))
	m.resourceTimeMax.Store(0)
	m.profilesFetched.Store(0)
	m.cacheHits.Store(0)
	m.primitives.Store(0)
	m.valueSetsResolved.Store(0)
	m.valueSetsMissing.Store(0)
	m.degradations.Store(0)
	m.errorsTotal.Store(0)
	m.warningsTotal.Store(0)
	m.infosTotal.Store(0)

	m.stageTiming.Range(func(key, _ any) bool {
		m.stageTiming.Delete(key)
		return true
	})
}
