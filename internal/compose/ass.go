package compose

import (
	"fmt"
	"math"
	"strings"

	"storyreel/internal/captions"
	"storyreel/internal/types"
)

// assHeader is the style block for caption rendering. PrimaryColour is
// the pre-highlight color, SecondaryColour the karaoke fill.
const assHeader = `[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
WrapStyle: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Caption,%s,%d,&H00FFFFFF,&H0000D7FF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,4,0,5,60,60,0,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// assScript renders caption chunks as an ASS subtitle script with
// per-word karaoke timing. Chunk display windows are cut at the next
// chunk's start so two chunks never render at once.
func assScript(chunks []types.CaptionChunk, width, height, fontSize int, font string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, assHeader, width, height, font, fontSize)

	for i, chunk := range chunks {
		end := captions.DisplayEnd(chunks, i)
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Caption,,0,0,0,,%s\n",
			assTime(chunk.Start), assTime(end), karaokeText(&chunk))
	}
	return sb.String()
}

// karaokeText emits the chunk words with \k tags. \k durations are in
// centiseconds and cover the gap up to the next word's highlight start,
// so the fill tracks the real speech cadence including pauses.
func karaokeText(chunk *types.CaptionChunk) string {
	var sb strings.Builder
	for i, word := range chunk.Words {
		start := chunk.Highlights[i].Start
		var next float64
		if i+1 < len(chunk.Highlights) {
			next = chunk.Highlights[i+1].Start
		} else {
			next = chunk.Highlights[i].End
		}
		cs := int(math.Round((next - start) * 100))
		if cs < 0 {
			cs = 0
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "{\\k%d}%s", cs, escapeASS(word))
	}
	return sb.String()
}

// assTime formats seconds as H:MM:SS.cc.
func assTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	cs := int(math.Round(sec * 100))
	h := cs / 360000
	m := cs % 360000 / 6000
	s := cs % 6000 / 100
	c := cs % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, c)
}

func escapeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return s
}
