package captions

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/internal/types"
)

func wordsFromText(text string, start, wordDur float64) []types.WordStamp {
	fields := strings.Fields(text)
	words := make([]types.WordStamp, 0, len(fields))
	t := start
	for _, f := range fields {
		words = append(words, types.WordStamp{Word: f, Start: t, End: t + wordDur})
		t += wordDur
	}
	return words
}

func TestAlignPartitionsInputExactly(t *testing.T) {
	words := wordsFromText(
		"he opened the door and the house was completely empty except for a single chair in the middle of the room",
		0, 0.35,
	)
	chunks, err := New(40, 0.6).Align(words)
	require.NoError(t, err)

	var rejoined []string
	for _, c := range chunks {
		rejoined = append(rejoined, c.Words...)
	}
	require.Len(t, rejoined, len(words), "no words lost or duplicated")
	for i, w := range words {
		assert.Equal(t, w.Word, rejoined[i])
	}

	for _, c := range chunks {
		assert.LessOrEqual(t, c.Start, c.End)
		assert.Len(t, c.Highlights, len(c.Words))
	}
}

func TestAlignRespectsMaxChars(t *testing.T) {
	words := wordsFromText("one two three four five six seven eight nine ten", 0, 0.5)
	chunks, err := New(15, 0.1).Align(words)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 15, "chunk text %q over budget", c.Text)
	}
}

func TestAlignSingleOversizedWord(t *testing.T) {
	words := []types.WordStamp{{Word: "incomprehensibilities", Start: 0, End: 1.2}}
	chunks, err := New(10, 0.6).Align(words)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "incomprehensibilities", chunks[0].Text)
}

func TestAlignExtendsShortChunks(t *testing.T) {
	words := []types.WordStamp{
		{Word: "wait", Start: 0, End: 0.2},
		{Word: "supercalifragilisticexpialidocious", Start: 0.2, End: 1.5},
	}
	chunks, err := New(10, 0.6).Align(words)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.GreaterOrEqual(t, chunks[0].Duration(), 0.6)

	// extension overlaps the next chunk; display is cut at its start
	assert.Equal(t, 0.2, DisplayEnd(chunks, 0))
	assert.Equal(t, chunks[1].End, DisplayEnd(chunks, 1))
}

func TestAlignZeroDurationWord(t *testing.T) {
	words := []types.WordStamp{{Word: "now", Start: 1.0, End: 1.0}}
	chunks, err := New(40, 0.6).Align(words)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1.0, chunks[0].Start)
	assert.Equal(t, 1.6, chunks[0].End)
	assert.Equal(t, 0.0, chunks[0].Highlights[0].Start)
	assert.Equal(t, 0.0, chunks[0].Highlights[0].End)
}

func TestAlignHighlightWindows(t *testing.T) {
	words := []types.WordStamp{
		{Word: "the", Start: 2.0, End: 2.3},
		{Word: "lights", Start: 2.3, End: 2.8},
		{Word: "flickered", Start: 2.8, End: 3.5},
	}
	chunks, err := New(40, 0.6).Align(words)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.InDelta(t, 0.0, c.Highlights[0].Start, 1e-9)
	assert.InDelta(t, 0.3, c.Highlights[0].End, 1e-9)
	assert.InDelta(t, 0.8, c.Highlights[2].Start, 1e-9)
	assert.InDelta(t, 1.5, c.Highlights[2].End, 1e-9)
}

func TestAlignRejectsBadInput(t *testing.T) {
	a := New(40, 0.6)

	_, err := a.Align(nil)
	assert.Error(t, err)

	_, err = a.Align([]types.WordStamp{{Word: "  ", Start: 0, End: 1}})
	assert.Error(t, err)

	_, err = a.Align([]types.WordStamp{
		{Word: "b", Start: 2, End: 3},
		{Word: "a", Start: 1, End: 2},
	})
	assert.Error(t, err)
}

// Forty-two words over 18.4 seconds, the full production shape: chunk
// boundaries land on word boundaries, no chunk is shorter than the
// floor, and the final chunk ends exactly at the track end.
func TestAlignFullTrackScenario(t *testing.T) {
	const n = 42
	words := make([]types.WordStamp, 0, n)
	step := 18.4 / n
	for i := 0; i < n; i++ {
		words = append(words, types.WordStamp{
			Word:  fmt.Sprintf("word%02d", i),
			Start: float64(i) * step,
			End:   float64(i+1) * step,
		})
	}
	words[n-1].End = 18.4

	chunks, err := New(40, 0.6).Align(words)
	require.NoError(t, err)

	seen := 0
	for _, c := range chunks {
		assert.Equal(t, words[seen].Word, c.Words[0], "chunk starts on a word boundary")
		assert.InDelta(t, words[seen].Start, c.Start, 1e-9)
		seen += len(c.Words)
		assert.GreaterOrEqual(t, c.Duration(), 0.6)
	}
	assert.Equal(t, n, seen)
	assert.InDelta(t, 18.4, chunks[len(chunks)-1].End, 1e-9)
}
