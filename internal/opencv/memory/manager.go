package memory

import (
	"sort"
	"sync"
	"time"

	"vessel-extractor/internal/logger"
)

// Manager records every safe.Mat allocation by id so a run can report Mats
// that were never closed. It satisfies safe.MemoryTracker.
type Manager struct {
	allocations map[uint64]*AllocationRecord
	mu          sync.RWMutex
	stats       Stats
	logger      logger.Logger
}

type AllocationRecord struct {
	Tag       string
	CreatedAt time.Time
	Size      int64
}

type Stats struct {
	TotalAllocated int64
	TotalReleased  int64
	ActiveMats     int64
	PeakBytes      int64
	Allocations    int64
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		allocations: make(map[uint64]*AllocationRecord),
		logger:      log,
	}
}

func (m *Manager) TrackAllocation(id uint64, size int64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allocations[id] = &AllocationRecord{
		Tag:       tag,
		CreatedAt: time.Now(),
		Size:      size,
	}
	m.stats.TotalAllocated += size
	m.stats.ActiveMats++
	m.stats.Allocations++

	if inUse := m.stats.TotalAllocated - m.stats.TotalReleased; inUse > m.stats.PeakBytes {
		m.stats.PeakBytes = inUse
	}
}

func (m *Manager) TrackDeallocation(id uint64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, exists := m.allocations[id]
	if !exists {
		m.logger.Warning("MemoryManager", "release of untracked Mat", map[string]interface{}{
			"id":  id,
			"tag": tag,
		})
		return
	}

	delete(m.allocations, id)
	m.stats.TotalReleased += record.Size
	m.stats.ActiveMats--
}

func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.stats
}

// Leaks returns the tags of Mats still open, oldest first.
func (m *Manager) Leaks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type leak struct {
		tag string
		at  time.Time
	}
	leaks := make([]leak, 0, len(m.allocations))
	for _, record := range m.allocations {
		leaks = append(leaks, leak{tag: record.Tag, at: record.CreatedAt})
	}
	sort.SliceStable(leaks, func(i, j int) bool { return leaks[i].at.Before(leaks[j].at) })

	tags := make([]string, len(leaks))
	for i, l := range leaks {
		tags[i] = l.tag
	}
	return tags
}

// Report logs the current counters and warns about open Mats.
func (m *Manager) Report(scope string) {
	stats := m.GetStats()

	m.logger.Debug("MemoryManager", "allocation stats", map[string]interface{}{
		"scope":       scope,
		"allocations": stats.Allocations,
		"active":      stats.ActiveMats,
		"peak_mb":     float64(stats.PeakBytes) / (1024 * 1024),
	})

	if stats.ActiveMats > 0 {
		m.logger.Warning("MemoryManager", "Mats still open", map[string]interface{}{
			"scope": scope,
			"tags":  m.Leaks(),
		})
	}
}

// Shutdown reports outstanding Mats at process exit.
func (m *Manager) Shutdown() {
	m.Report("shutdown")
}
