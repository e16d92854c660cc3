package reconciler

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/domain/shared"
)

// ApplyResult describes what the cache did with a change event.
type ApplyResult int

const (
	// Applied means the event replaced the cached record.
	Applied ApplyResult = iota
	// SkippedDirty means the record is being drafted locally with unsaved
	// edits; the remote change was ignored to avoid clobbering user input.
	SkippedDirty
	// SkippedStale means the event version was not newer than the cached one.
	SkippedStale
)

// CachedRecord is the locally held copy of a remote record. Records are
// replaced whole on every applied event; there is no field-level merge.
type CachedRecord struct {
	Entity    shared.EntityKind
	ID        uuid.UUID
	Version   int64
	Payload   json.RawMessage
	UpdatedAt time.Time
}

type tenantCache struct {
	records    map[uuid.UUID]*CachedRecord
	dirty      map[uuid.UUID]struct{}
	generation uint64
}

// Cache holds per-tenant local copies of remote records plus a list
// generation counter. List views key their contents on the generation and
// refetch when it moves rather than patching pages in place.
type Cache struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*tenantCache
}

func NewCache() *Cache {
	return &Cache{tenants: make(map[uuid.UUID]*tenantCache)}
}

func (c *Cache) tenant(tenantID uuid.UUID) *tenantCache {
	tc, ok := c.tenants[tenantID]
	if !ok {
		tc = &tenantCache{
			records: make(map[uuid.UUID]*CachedRecord),
			dirty:   make(map[uuid.UUID]struct{}),
		}
		c.tenants[tenantID] = tc
	}
	return tc
}

// Apply merges a change event into the cache: dirty local drafts win over
// remote changes, otherwise the newest version wins at whole-record
// granularity. Every event moves the tenant's list generation regardless of
// whether the record itself was applied.
func (c *Cache) Apply(event *shared.ChangeEvent) ApplyResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	tc := c.tenant(event.TenantID)
	tc.generation++

	if _, dirty := tc.dirty[event.EntityID]; dirty {
		return SkippedDirty
	}

	if existing, ok := tc.records[event.EntityID]; ok && event.Version <= existing.Version {
		return SkippedStale
	}

	tc.records[event.EntityID] = &CachedRecord{
		Entity:    event.Entity,
		ID:        event.EntityID,
		Version:   event.Version,
		Payload:   event.Payload,
		UpdatedAt: event.OccurredAt,
	}
	return Applied
}

// Get returns the cached copy of a record, if any.
func (c *Cache) Get(tenantID, id uuid.UUID) (*CachedRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tc, ok := c.tenants[tenantID]
	if !ok {
		return nil, false
	}
	rec, ok := tc.records[id]
	return rec, ok
}

// Generation returns the tenant's list generation counter.
func (c *Cache) Generation(tenantID uuid.UUID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tc, ok := c.tenants[tenantID]
	if !ok {
		return 0
	}
	return tc.generation
}

// MarkDirty flags a record the local session is drafting with unsaved edits.
// Remote changes for the id are ignored until ClearDirty.
func (c *Cache) MarkDirty(tenantID, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenant(tenantID).dirty[id] = struct{}{}
}

// ClearDirty removes the dirty flag after a successful local save.
func (c *Cache) ClearDirty(tenantID, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tc, ok := c.tenants[tenantID]; ok {
		delete(tc.dirty, id)
	}
}
