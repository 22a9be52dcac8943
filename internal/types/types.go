package types

import (
	"strings"
	"time"
)

// SourceItem is one candidate story pulled from the content source.
// Immutable after creation.
type SourceItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Subreddit string    `json:"subreddit"`
	Score     int       `json:"score"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// Script is the narration produced for one SourceItem, in reading order.
type Script struct {
	SourceID string   `json:"source_id"`
	Segments []string `json:"segments"`
}

// Text joins all narration segments into the full spoken text.
func (s *Script) Text() string {
	return strings.Join(s.Segments, " ")
}

// WordStamp is one word with its absolute timing in the audio track.
type WordStamp struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// AudioTrack is the synthesized narration plus word-level timestamps
// covering the whole file.
type AudioTrack struct {
	Path     string      `json:"path"`
	Duration float64     `json:"duration"`
	Words    []WordStamp `json:"words"`
}

// CaptionChunk is a run of consecutive words shown together on screen.
// Highlights carry per-word windows relative to the chunk start for
// karaoke-style emphasis.
type CaptionChunk struct {
	Text       string      `json:"text"`
	Start      float64     `json:"start"`
	End        float64     `json:"end"`
	Words      []string    `json:"words"`
	Highlights []Highlight `json:"highlights"`
}

// Highlight is a word's emphasis window, offset from the chunk start.
type Highlight struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the chunk's display span in seconds.
func (c *CaptionChunk) Duration() float64 {
	return c.End - c.Start
}

// OverlayFrame is one timed sample of progress-bar fill.
type OverlayFrame struct {
	Offset   float64 `json:"offset"`
	Fraction float64 `json:"fraction"`
}

// AssembledVideo is the final rendered artifact for one session.
type AssembledVideo struct {
	Path     string  `json:"path"`
	SourceID string  `json:"source_id"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// VideoMetadata holds everything the publisher needs for an upload.
type VideoMetadata struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	CategoryID  string     `json:"category_id"`
	PublishAt   *time.Time `json:"publish_at,omitempty"`
}
