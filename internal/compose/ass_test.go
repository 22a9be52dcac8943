package compose

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/internal/types"
)

func TestAssTimeFormat(t *testing.T) {
	assert.Equal(t, "0:00:00.00", assTime(0))
	assert.Equal(t, "0:00:01.50", assTime(1.5))
	assert.Equal(t, "0:01:02.34", assTime(62.34))
	assert.Equal(t, "1:00:00.00", assTime(3600))
	assert.Equal(t, "0:00:00.00", assTime(-2))
}

func TestAssScriptOneDialoguePerChunk(t *testing.T) {
	chunks := []types.CaptionChunk{
		{
			Text: "he opened the door", Start: 0, End: 1.8,
			Words:      []string{"he", "opened", "the", "door"},
			Highlights: []types.Highlight{{Start: 0, End: 0.3}, {Start: 0.3, End: 0.9}, {Start: 0.9, End: 1.1}, {Start: 1.1, End: 1.8}},
		},
		{
			Text: "nothing was there", Start: 1.8, End: 3.2,
			Words:      []string{"nothing", "was", "there"},
			Highlights: []types.Highlight{{Start: 0, End: 0.6}, {Start: 0.6, End: 0.9}, {Start: 0.9, End: 1.4}},
		},
	}
	script := assScript(chunks, 1080, 1920, 64, "Arial")

	assert.Contains(t, script, "PlayResX: 1080")
	assert.Contains(t, script, "PlayResY: 1920")
	assert.Equal(t, 2, strings.Count(script, "Dialogue:"))
	assert.Contains(t, script, "{\\k30}he")
	assert.Contains(t, script, "0:00:01.80")
}

func TestAssScriptCutsOverlappingChunks(t *testing.T) {
	// first chunk extended past the second chunk's start
	chunks := []types.CaptionChunk{
		{Text: "hi", Start: 0, End: 0.6, Words: []string{"hi"}, Highlights: []types.Highlight{{Start: 0, End: 0.2}}},
		{Text: "there", Start: 0.2, End: 1.0, Words: []string{"there"}, Highlights: []types.Highlight{{Start: 0, End: 0.8}}},
	}
	script := assScript(chunks, 1080, 1920, 64, "Arial")

	// first dialogue must end where the second starts, not at 0.6
	assert.Contains(t, script, "Dialogue: 0,0:00:00.00,0:00:00.20,Caption")
}

func TestKaraokeTextCoversGapsBetweenWords(t *testing.T) {
	chunk := types.CaptionChunk{
		Words:      []string{"wait", "what"},
		Highlights: []types.Highlight{{Start: 0, End: 0.3}, {Start: 1.0, End: 1.4}}, // 0.7s pause
	}
	text := karaokeText(&chunk)
	// first \k spans up to the next word's start: 1.0s = 100cs
	assert.Equal(t, "{\\k100}wait {\\k40}what", text)
}

func TestEscapeASSStripsControlCharacters(t *testing.T) {
	assert.Equal(t, "(hi)", escapeASS("{hi}"))
	assert.Equal(t, "ab", escapeASS("a\\b"))
}

func TestProgressCommandsMonotonicWidths(t *testing.T) {
	frames := []types.OverlayFrame{
		{Offset: 0, Fraction: 0},
		{Offset: 0.5, Fraction: 0.25},
		{Offset: 1.0, Fraction: 0.5},
		{Offset: 2.0, Fraction: 1},
	}
	cmds := progressCommands(frames, 1080)
	lines := strings.Split(strings.TrimSpace(cmds), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "0.000 drawbox@progress w 1;", lines[0], "zero width clamped to 1")
	assert.Equal(t, "2.000 drawbox@progress w 1080;", lines[3])
}

func TestCompositionErrorWrapsCause(t *testing.T) {
	cause := errors.New("codec exploded")
	err := failed("encode", cause)

	var ce *CompositionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "encode", ce.Step)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "encode")
}
