package overlay

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceFrameCount(t *testing.T) {
	cases := []struct {
		duration, fps float64
		want          int
	}{
		{10, 30, 301},
		{18.4, 30, 553},
		{1, 1, 2},
		{0.5, 10, 6},
	}
	for _, tc := range cases {
		seq, err := NewSequence(tc.duration, tc.fps)
		require.NoError(t, err)
		assert.Equal(t, tc.want, seq.Len(), "T=%g F=%g", tc.duration, tc.fps)
		assert.Equal(t, int(math.Floor(tc.duration*tc.fps))+1, seq.Len())
	}
}

func TestSequenceEndpoints(t *testing.T) {
	seq, err := NewSequence(18.4, 30)
	require.NoError(t, err)

	first := seq.At(0)
	assert.Equal(t, 0.0, first.Offset)
	assert.Equal(t, 0.0, first.Fraction)

	last := seq.At(seq.Len() - 1)
	assert.Equal(t, 18.4, last.Offset)
	assert.Equal(t, 1.0, last.Fraction)
}

func TestSequenceSingleFrameEndsFull(t *testing.T) {
	// duration*fps < 1 collapses the sequence to one frame, which must
	// still close the bar at fraction 1
	seq, err := NewSequence(0.02, 10)
	require.NoError(t, err)
	require.Equal(t, 1, seq.Len())

	only := seq.At(0)
	assert.Equal(t, 0.02, only.Offset)
	assert.Equal(t, 1.0, only.Fraction)
}

func TestSequenceMonotonic(t *testing.T) {
	seq, err := NewSequence(7.3, 24)
	require.NoError(t, err)

	frames := seq.All()
	require.Len(t, frames, seq.Len())
	for i := 1; i < len(frames); i++ {
		assert.GreaterOrEqual(t, frames[i].Offset, frames[i-1].Offset)
		assert.GreaterOrEqual(t, frames[i].Fraction, frames[i-1].Fraction)
	}
}

func TestSequenceRestartable(t *testing.T) {
	seq, err := NewSequence(5, 30)
	require.NoError(t, err)

	first := seq.All()
	second := seq.All()
	assert.Equal(t, first, second, "two passes over the sequence are identical")
}

func TestSequenceRejectsBadInputs(t *testing.T) {
	_, err := NewSequence(0, 30)
	assert.Error(t, err)
	_, err = NewSequence(10, 0)
	assert.Error(t, err)
	_, err = NewSequence(-1, -1)
	assert.Error(t, err)
}
