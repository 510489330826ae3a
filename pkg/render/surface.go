package render

import (
	"errors"
	"image"
	"image/draw"
	"sync"
)

// ErrNoFrame is returned when a surface has not been drawn on yet.
var ErrNoFrame = errors.New("render: no frame drawn yet")

// Surface holds the latest frame for a viewport of a given size.
type Surface struct {
	mu    sync.RWMutex
	w, h  int
	frame *image.RGBA
	seq   uint64
}

// NewSurface returns an empty w×h surface. Sizes below 1 are clamped.
func NewSurface(w, h int) *Surface {
	s := &Surface{}
	s.Resize(w, h)
	return s
}

// Resize changes the viewport size. The current frame is kept until the
// next Present.
func (s *Surface) Resize(w, h int) {
	s.mu.Lock()
	s.w, s.h = max(w, 1), max(h, 1)
	s.mu.Unlock()
}

// Size returns the viewport size in pixels.
func (s *Surface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w, s.h
}

// Present replaces the current frame.
func (s *Surface) Present(img *image.RGBA) {
	s.mu.Lock()
	s.frame = img
	s.seq++
	s.mu.Unlock()
}

// Frames returns how many frames were presented.
func (s *Surface) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Snapshot returns a copy of the current frame, or ErrNoFrame.
func (s *Surface) Snapshot() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return nil, ErrNoFrame
	}
	out := image.NewRGBA(s.frame.Bounds())
	draw.Draw(out, out.Bounds(), s.frame, s.frame.Bounds().Min, draw.Src)
	return out, nil
}
