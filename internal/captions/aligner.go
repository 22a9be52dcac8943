// Package captions turns word-level speech timestamps into timed
// on-screen caption chunks with per-word highlight windows.
package captions

import (
	"fmt"
	"strings"

	"storyreel/internal/types"
)

// Aligner groups a word-timestamp list into caption chunks. MaxChars
// bounds the joined text length of a chunk; MinChunkSec is the display
// floor a chunk is extended to so short chunks do not flicker.
type Aligner struct {
	MaxChars    int
	MinChunkSec float64
}

// New creates an aligner with the given chunking parameters.
func New(maxChars int, minChunkSec float64) *Aligner {
	return &Aligner{MaxChars: maxChars, MinChunkSec: minChunkSec}
}

// Align chunks words greedily: a word joins the current chunk while the
// joined text stays within MaxChars, otherwise it opens a new chunk. A
// chunk always holds at least one word, even when that word alone
// exceeds MaxChars. Chunks partition the input exactly and preserve
// order; after extension every chunk spans at least MinChunkSec.
func (a *Aligner) Align(words []types.WordStamp) ([]types.CaptionChunk, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("captions: empty word list")
	}
	for i, w := range words {
		if strings.TrimSpace(w.Word) == "" {
			return nil, fmt.Errorf("captions: empty word at index %d", i)
		}
		if w.End < w.Start {
			return nil, fmt.Errorf("captions: word %q ends before it starts", w.Word)
		}
		if i > 0 && w.Start < words[i-1].Start {
			return nil, fmt.Errorf("captions: timestamps not non-decreasing at index %d", i)
		}
	}

	var chunks []types.CaptionChunk
	start := 0
	text := strings.TrimSpace(words[0].Word)
	for i := 1; i < len(words); i++ {
		joined := text + " " + strings.TrimSpace(words[i].Word)
		if len(joined) > a.MaxChars {
			chunks = append(chunks, a.build(words[start:i]))
			start = i
			text = strings.TrimSpace(words[i].Word)
			continue
		}
		text = joined
	}
	chunks = append(chunks, a.build(words[start:]))

	for i := range chunks {
		if chunks[i].Duration() < a.MinChunkSec {
			chunks[i].End = chunks[i].Start + a.MinChunkSec
		}
	}
	return chunks, nil
}

// build assembles one chunk from a contiguous word run. Highlight
// windows are word times offset from the chunk start, clamped to >= 0.
func (a *Aligner) build(run []types.WordStamp) types.CaptionChunk {
	chunk := types.CaptionChunk{
		Start: run[0].Start,
		End:   run[len(run)-1].End,
	}
	texts := make([]string, 0, len(run))
	for _, w := range run {
		word := strings.TrimSpace(w.Word)
		texts = append(texts, word)
		chunk.Words = append(chunk.Words, word)
		chunk.Highlights = append(chunk.Highlights, types.Highlight{
			Start: clampZero(w.Start - chunk.Start),
			End:   clampZero(w.End - chunk.Start),
		})
	}
	chunk.Text = strings.Join(texts, " ")
	return chunk
}

// DisplayEnd returns the end time chunk i should render until: its own
// end, cut to the next chunk's start when the MinChunkSec extension
// made the two overlap. This keeps two chunks from showing at once.
func DisplayEnd(chunks []types.CaptionChunk, i int) float64 {
	end := chunks[i].End
	if i+1 < len(chunks) && chunks[i+1].Start < end {
		return chunks[i+1].Start
	}
	return end
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
