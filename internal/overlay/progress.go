// Package overlay computes the progress-bar frame sequence rendered
// over the video in lockstep with audio playback.
package overlay

import (
	"fmt"
	"math"

	"storyreel/internal/types"
)

// Sequence is the finite frame sequence for a track of Duration seconds
// sampled at FPS. It is a pure function of (Duration, FPS): frames are
// computed on demand, so the sequence is restartable and holds no state.
type Sequence struct {
	Duration float64
	FPS      float64
}

// NewSequence validates the inputs and returns the frame sequence.
func NewSequence(duration, fps float64) (*Sequence, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("overlay: duration must be > 0, got %g", duration)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("overlay: fps must be > 0, got %g", fps)
	}
	return &Sequence{Duration: duration, FPS: fps}, nil
}

// Len returns the frame count: one frame every 1/FPS seconds from t=0,
// plus the final frame pinned to t=Duration.
func (s *Sequence) Len() int {
	return int(math.Floor(s.Duration*s.FPS)) + 1
}

// At returns frame i. Frames are non-decreasing in both offset and
// fraction; the last frame is pinned to (Duration, 1) and wins over
// the (0, 0) first frame when the sequence has a single frame.
func (s *Sequence) At(i int) types.OverlayFrame {
	if i >= s.Len()-1 {
		return types.OverlayFrame{Offset: s.Duration, Fraction: 1}
	}
	if i <= 0 {
		return types.OverlayFrame{Offset: 0, Fraction: 0}
	}
	offset := float64(i) / s.FPS
	return types.OverlayFrame{Offset: offset, Fraction: fraction(offset, s.Duration)}
}

// All materializes the whole sequence. Used where the frames are
// persisted with the session or fed to the compositor in one pass.
func (s *Sequence) All() []types.OverlayFrame {
	frames := make([]types.OverlayFrame, s.Len())
	for i := range frames {
		frames[i] = s.At(i)
	}
	return frames
}

func fraction(t, duration float64) float64 {
	f := t / duration
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
