package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"imagebatch/internal/models"
)

// ErrNotArchived is returned when no record exists (or it has expired)
var ErrNotArchived = errors.New("job not archived")

// JobArchive stores finished job records after they leave the live registry
type JobArchive interface {
	Save(ctx context.Context, rec models.JobRecord) error
	Load(ctx context.Context, id string) (models.JobRecord, error)
	List(ctx context.Context, limit int) ([]models.JobRecord, error)
	Stats() map[string]interface{}
	Close() error
}

type archiveEntry struct {
	record  models.JobRecord
	expires time.Time
	loads   int64
}

// MemoryArchive keeps finished jobs in process memory with a fixed TTL
type MemoryArchive struct {
	entries       map[string]*archiveEntry
	mu            sync.RWMutex
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
	stats         ArchiveStats
}

// ArchiveStats tracks archive metrics
type ArchiveStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	mu        sync.RWMutex
}

// NewMemoryArchive creates an archive whose records expire after ttl
func NewMemoryArchive(ttl, cleanupEvery time.Duration) *MemoryArchive {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if cleanupEvery <= 0 {
		cleanupEvery = time.Minute
	}

	ma := &MemoryArchive{
		entries:     make(map[string]*archiveEntry),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}

	ma.cleanupTicker = time.NewTicker(cleanupEvery)
	go ma.cleanupLoop()

	log.Printf("✅ Job archive initialized: backend=memory, TTL=%v", ttl)
	return ma
}

// Save stores or replaces a record
func (ma *MemoryArchive) Save(_ context.Context, rec models.JobRecord) error {
	if rec.ID == "" {
		return errors.New("job record has no id")
	}

	ma.mu.Lock()
	defer ma.mu.Unlock()

	ma.entries[rec.ID] = &archiveEntry{
		record:  copyRecord(rec),
		expires: time.Now().Add(ma.ttl),
	}
	return nil
}

// Load returns a record that has not expired
func (ma *MemoryArchive) Load(_ context.Context, id string) (models.JobRecord, error) {
	ma.mu.Lock()
	defer ma.mu.Unlock()

	entry, ok := ma.entries[id]
	if !ok || time.Now().After(entry.expires) {
		ma.recordMiss()
		return models.JobRecord{}, fmt.Errorf("%w: %s", ErrNotArchived, id)
	}

	entry.loads++
	ma.recordHit()
	return copyRecord(entry.record), nil
}

// List returns unexpired records, most recently finished first. limit <= 0 means all.
func (ma *MemoryArchive) List(_ context.Context, limit int) ([]models.JobRecord, error) {
	ma.mu.RLock()
	defer ma.mu.RUnlock()

	now := time.Now()
	out := make([]models.JobRecord, 0, len(ma.entries))
	for _, entry := range ma.entries {
		if now.After(entry.expires) {
			continue
		}
		out = append(out, copyRecord(entry.record))
	}

	sort.Slice(out, func(i, j int) bool { return finishedAt(out[i]).After(finishedAt(out[j])) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// cleanupLoop runs periodic cleanup to remove expired records
func (ma *MemoryArchive) cleanupLoop() {
	for {
		select {
		case <-ma.cleanupTicker.C:
			ma.cleanup()
		case <-ma.stopCleanup:
			ma.cleanupTicker.Stop()
			return
		}
	}
}

// cleanup removes expired records
func (ma *MemoryArchive) cleanup() {
	ma.mu.Lock()
	defer ma.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, entry := range ma.entries {
		if now.After(entry.expires) {
			delete(ma.entries, id)
			removed++
		}
	}

	if removed > 0 {
		ma.stats.mu.Lock()
		ma.stats.Evictions += int64(removed)
		ma.stats.mu.Unlock()
		log.Printf("🧹 Archive cleanup: removed %d expired jobs", removed)
	}
}

// Stats returns overall archive statistics
func (ma *MemoryArchive) Stats() map[string]interface{} {
	ma.mu.RLock()
	defer ma.mu.RUnlock()

	ma.stats.mu.RLock()
	defer ma.stats.mu.RUnlock()

	hitRate := 0.0
	if total := ma.stats.Hits + ma.stats.Misses; total > 0 {
		hitRate = float64(ma.stats.Hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"backend":   "memory",
		"entries":   len(ma.entries),
		"hits":      ma.stats.Hits,
		"misses":    ma.stats.Misses,
		"evictions": ma.stats.Evictions,
		"hit_rate":  fmt.Sprintf("%.2f%%", hitRate),
		"ttl_min":   ma.ttl.Minutes(),
	}
}

// Close stops the cleanup loop. Safe to call more than once.
func (ma *MemoryArchive) Close() error {
	ma.stopOnce.Do(func() {
		close(ma.stopCleanup)
		log.Println("🛑 Job archive stopped")
	})
	return nil
}

func (ma *MemoryArchive) recordHit() {
	ma.stats.mu.Lock()
	ma.stats.Hits++
	ma.stats.mu.Unlock()
}

func (ma *MemoryArchive) recordMiss() {
	ma.stats.mu.Lock()
	ma.stats.Misses++
	ma.stats.mu.Unlock()
}

func copyRecord(rec models.JobRecord) models.JobRecord {
	rec.History = append([]models.Snapshot(nil), rec.History...)
	return rec
}

func finishedAt(rec models.JobRecord) time.Time {
	if rec.FinishedAt != nil {
		return *rec.FinishedAt
	}
	return rec.CreatedAt
}
