package livesync

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vanderheijden86/edumap/pkg/metrics"
	"github.com/vanderheijden86/edumap/pkg/model"
)

// Session owns the single live channel for whichever graph is open.
// Switching graphs closes the old channel before the new one is dialed, so
// two graphs are never live at once.
type Session struct {
	opts Options

	switchMu sync.Mutex
	gen      atomic.Uint64
	mu       sync.Mutex
	ch       *Channel
}

// NewSession returns a session whose channels share opts. opts.OnUpdate
// receives updates from the current channel only.
func NewSession(opts Options) *Session {
	return &Session{opts: opts}
}

// Switch closes the current channel, if any, and opens one for graphID.
// Errors from the new dial are returned but leave the session usable.
func (s *Session) Switch(ctx context.Context, graphID string) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	gen := s.gen.Add(1)
	s.mu.Lock()
	old := s.ch
	s.ch = nil
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	opts := s.opts
	opts.OnUpdate = func(id string, snap model.Snapshot) {
		if s.gen.Load() != gen {
			metrics.SyncMessages.WithLabelValues("stale").Inc()
			return
		}
		if s.opts.OnUpdate != nil {
			s.opts.OnUpdate(id, snap)
		}
	}
	ch := NewChannel(opts)
	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()
	return ch.Open(ctx, graphID)
}

// Close closes the current channel. Later updates are dropped.
func (s *Session) Close() error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	s.gen.Add(1)
	s.mu.Lock()
	ch := s.ch
	s.ch = nil
	s.mu.Unlock()
	if ch == nil {
		return nil
	}
	return ch.Close()
}

// GraphID returns the graph of the current channel, or "".
func (s *Session) GraphID() string {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch == nil {
		return ""
	}
	return ch.GraphID()
}

// State returns the current channel's state, or Disconnected.
func (s *Session) State() State {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch == nil {
		return Disconnected
	}
	return ch.State()
}
