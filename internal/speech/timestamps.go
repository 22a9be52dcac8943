package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"storyreel/internal/types"
)

// whisperOutput mirrors the JSON whisper writes with word timestamps
// enabled.
type whisperOutput struct {
	Segments []struct {
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// transcribe runs whisper over the audio track and flattens the
// per-segment word lists into one ordered word-timestamp list.
func (s *Synthesizer) transcribe(ctx context.Context, audioFile, outputDir string) ([]types.WordStamp, error) {
	cmd := exec.CommandContext(ctx, "whisper",
		audioFile,
		"--model", s.cfg.WhisperModel,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--language", "en",
		"--word_timestamps", "True",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("whisper: %w: %s", err, firstLine(out))
	}

	base := strings.TrimSuffix(filepath.Base(audioFile), filepath.Ext(audioFile))
	jsonPath := filepath.Join(outputDir, base+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return parseWordStamps(data)
}

// parseWordStamps decodes whisper JSON into the flat word list the
// aligner consumes. Empty words are dropped; timestamps are forced
// non-decreasing, since whisper occasionally emits tiny regressions at
// segment boundaries.
func parseWordStamps(data []byte) ([]types.WordStamp, error) {
	var parsed whisperOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse whisper JSON: %w", err)
	}

	var words []types.WordStamp
	lastStart := 0.0
	for _, seg := range parsed.Segments {
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			start, end := w.Start, w.End
			if start < lastStart {
				start = lastStart
			}
			if end < start {
				end = start
			}
			words = append(words, types.WordStamp{Word: text, Start: start, End: end})
			lastStart = start
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("whisper produced no words")
	}
	return words, nil
}
