package table

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hephy-dd/table-control/pkg/types"
)

// ErrorStack is an ordered queue of diagnostic entries. Entries keep
// insertion order and are popped oldest-first. A cap of 0 keeps the
// stack unbounded; with a cap, the oldest entry is evicted on overflow.
type ErrorStack struct {
	mu      sync.Mutex
	entries []types.ErrorEntry
	cap     int
}

func NewErrorStack(cap int) *ErrorStack {
	return &ErrorStack{cap: cap}
}

func (s *ErrorStack) Push(entry types.ErrorEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cap > 0 && len(s.entries) >= s.cap {
		logrus.WithFields(logrus.Fields{
			"cap":     s.cap,
			"evicted": s.entries[0],
		}).Warn("error stack full, evicting oldest entry")
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
}

// PopOldest removes and returns the oldest entry. The second value is
// false when the stack is empty.
func (s *ErrorStack) PopOldest() (types.ErrorEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return types.ErrorEntry{}, false
	}
	entry := s.entries[0]
	s.entries = s.entries[1:]
	return entry, true
}

func (s *ErrorStack) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *ErrorStack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
