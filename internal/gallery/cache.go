package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/your-org/attend/internal/matching"
	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/observability"
)

// SignatureSource is the persistent side of the cache.
type SignatureSource interface {
	ListSignatures(ctx context.Context, withVectors bool) ([]models.Signature, error)
	GetSignature(ctx context.Context, code string) (*models.Signature, error)
}

// Cache holds the enrolled signatures used for matching. Snapshots are
// immutable: every change swaps in a new slice sorted by student code.
type Cache struct {
	src SignatureSource

	mu       sync.RWMutex
	entries  []matching.Entry
	loadedAt time.Time
	// gen counts invalidations; touched records the generation at which each
	// code was last invalidated so a reload never overwrites a newer entry.
	gen      uint64
	touched  map[string]uint64
}

func NewCache(src SignatureSource) *Cache {
	return &Cache{src: src, touched: map[string]uint64{}}
}

// Reload replaces the cache with every stored signature. Codes invalidated
// while the list was being read keep their invalidated entry.
func (c *Cache) Reload(ctx context.Context) error {
	c.mu.RLock()
	startGen := c.gen
	c.mu.RUnlock()

	sigs, err := c.src.ListSignatures(ctx, true)
	if err != nil {
		return fmt.Errorf("load signatures: %w", err)
	}

	entries := make([]matching.Entry, 0, len(sigs))
	for _, s := range sigs {
		if len(s.Vector) == 0 {
			continue
		}
		entries = append(entries, matching.Entry{ID: s.StudentCode, Name: s.Name, Vector: s.Vector})
	}

	c.mu.Lock()
	if c.gen != startGen {
		entries = c.keepNewer(entries, startGen)
	}
	for code, g := range c.touched {
		if g <= startGen {
			delete(c.touched, code)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	c.entries = entries
	c.loadedAt = time.Now()
	c.mu.Unlock()

	observability.CachedSignatures.Set(float64(len(entries)))
	slog.Debug("signature cache reloaded", "count", len(entries))
	return nil
}

// Invalidate re-reads a single student's signature, dropping it if it no
// longer exists.
func (c *Cache) Invalidate(ctx context.Context, code string) error {
	sig, err := c.src.GetSignature(ctx, code)
	if err != nil {
		return fmt.Errorf("load signature %s: %w", code, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.touched[code] = c.gen

	next := make([]matching.Entry, 0, len(c.entries)+1)
	for _, e := range c.entries {
		if e.ID != code {
			next = append(next, e)
		}
	}
	if sig != nil && len(sig.Vector) > 0 {
		next = append(next, matching.Entry{ID: sig.StudentCode, Name: sig.Name, Vector: sig.Vector})
		sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })
	}
	c.entries = next

	observability.CachedSignatures.Set(float64(len(next)))
	return nil
}

// keepNewer replaces loaded entries for codes invalidated after startGen with
// the current in-memory state. Must be called with c.mu held.
func (c *Cache) keepNewer(loaded []matching.Entry, startGen uint64) []matching.Entry {
	current := make(map[string]matching.Entry, len(c.entries))
	for _, e := range c.entries {
		current[e.ID] = e
	}
	out := make([]matching.Entry, 0, len(loaded))
	for _, e := range loaded {
		if c.touched[e.ID] <= startGen {
			out = append(out, e)
		}
	}
	for code, g := range c.touched {
		if g <= startGen {
			continue
		}
		if e, ok := current[code]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns the current entries. Callers must not modify the slice.
func (c *Cache) Snapshot() []matching.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LoadedAt is the time of the last full reload; zero before the first one.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
