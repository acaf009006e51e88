package relayer

import (
	"sync"

	"github.com/devblac/warden/internal/bridge"
)

// skipLog remembers events already reported as skipped while they can still
// reappear in a window.
type skipLog struct {
	mu   sync.Mutex
	seen map[bridge.EventID]struct{}
}

func newSkipLog() *skipLog {
	return &skipLog{seen: map[bridge.EventID]struct{}{}}
}

// first records id and reports whether it was new.
func (s *skipLog) first(id bridge.EventID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// prune forgets events on chain below from; windows never move back.
func (s *skipLog) prune(chain bridge.Role, from uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.seen {
		if id.Chain == chain && id.Block < from {
			delete(s.seen, id)
		}
	}
}
