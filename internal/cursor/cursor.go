// Package cursor tracks the last scanned height per chain and derives the
// block window for the next pass.
package cursor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/devblac/warden/internal/bridge"
)

// Store persists cursor heights keyed by chain name.
type Store interface {
	GetCursor(ctx context.Context, chain string) (uint64, bool, error)
	UpsertCursor(ctx context.Context, chain string, height uint64) error
}

// EventCursor computes bounded windows and advances monotonically.
type EventCursor struct {
	store Store
	size  uint64
	start map[bridge.Role]string

	mu sync.Mutex
}

// New returns a cursor over store. start holds optional start_block settings
// per chain ("", "123" or "latest-N").
func New(store Store, size uint64, start map[bridge.Role]string) (*EventCursor, error) {
	if size == 0 {
		size = bridge.DefaultWindowSize
	}
	for role, s := range start {
		if _, err := resolveStartHeight(s, 0); err != nil {
			return nil, bridge.ConfigErrorf("%s start_block: %v", role, err)
		}
	}
	return &EventCursor{store: store, size: size, start: start}, nil
}

// Size returns the window size.
func (c *EventCursor) Size() uint64 { return c.size }

// Window returns the next window for chain given its safe head. Without a
// cursor the window trails head, or starts at the configured start_block.
// With one it continues from the last scanned height, at most size blocks on.
func (c *EventCursor) Window(ctx context.Context, chain bridge.Role, head uint64) (bridge.BlockWindow, error) {
	last, ok, err := c.Last(ctx, chain)
	if err != nil {
		return bridge.BlockWindow{}, err
	}
	if !ok {
		start, err := resolveStartHeight(c.start[chain], head)
		if err != nil {
			return bridge.BlockWindow{}, bridge.ConfigErrorf("%s start_block: %v", chain, err)
		}
		if start == 0 || start > head {
			return bridge.NewWindow(head, c.size), nil
		}
		last = start - 1
	}
	to := head
	if last < head && head-last > c.size {
		to = last + c.size
	}
	return bridge.NewWindow(to, c.size), nil
}

// Advance moves the cursor to height if it is ahead of the stored one and
// reports whether it moved.
func (c *EventCursor) Advance(ctx context.Context, chain bridge.Role, height uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok, err := c.store.GetCursor(ctx, chain.String())
	if err != nil {
		return false, fmt.Errorf("read cursor %s: %w", chain, err)
	}
	if ok && height <= last {
		return false, nil
	}
	if err := c.store.UpsertCursor(ctx, chain.String(), height); err != nil {
		return false, fmt.Errorf("advance cursor %s: %w", chain, err)
	}
	return true, nil
}

// Last returns the last scanned height for chain.
func (c *EventCursor) Last(ctx context.Context, chain bridge.Role) (uint64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok, err := c.store.GetCursor(ctx, chain.String())
	if err != nil {
		return 0, false, fmt.Errorf("read cursor %s: %w", chain, err)
	}
	return h, ok, nil
}

func resolveStartHeight(start string, head uint64) (uint64, error) {
	start = strings.TrimSpace(start)
	if start == "" || start == "0" {
		return 0, nil
	}
	if strings.HasPrefix(start, "latest-") {
		offsetStr := strings.TrimPrefix(start, "latest-")
		n, err := strconv.ParseUint(offsetStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", start, err)
		}
		if n > head {
			return 0, nil
		}
		return head - n, nil
	}

	n, err := strconv.ParseUint(start, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", start, err)
	}
	return n, nil
}

// MemoryStore keeps cursors in memory. Restarting loses them.
type MemoryStore struct {
	mu      sync.Mutex
	heights map[string]uint64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{heights: map[string]uint64{}}
}

func (m *MemoryStore) GetCursor(_ context.Context, chain string) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.heights[chain]
	return h, ok, nil
}

func (m *MemoryStore) UpsertCursor(_ context.Context, chain string, height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.heights[chain]; ok && height <= cur {
		return nil
	}
	m.heights[chain] = height
	return nil
}
