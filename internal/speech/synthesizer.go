// Package speech synthesizes narration audio and extracts word-level
// timestamps from it.
package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"storyreel/internal/config"
	"storyreel/internal/types"
)

// Synthesizer produces one audio file per script plus the word
// timestamps covering the whole track.
type Synthesizer struct {
	cfg *config.SpeechConfig
	log hclog.Logger
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(cfg *config.SpeechConfig, log hclog.Logger) *Synthesizer {
	return &Synthesizer{cfg: cfg, log: log.Named("speech")}
}

// Synthesize renders every script segment to audio, concatenates them
// into one track under outputDir and transcribes the track for word
// timestamps. The TTS engine comes from TTS_COMMAND (a binary taking
// --text and --output), falling back to edge-tts when unset.
func (s *Synthesizer) Synthesize(ctx context.Context, script *types.Script, outputDir string) (*types.AudioTrack, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}

	ttsCmd, err := resolveTTSCommand()
	if err != nil {
		return nil, err
	}

	segFiles := make([]string, 0, len(script.Segments))
	for i, segment := range script.Segments {
		outFile := filepath.Join(outputDir, fmt.Sprintf("segment_%03d.mp3", i))
		s.log.Debug("synthesizing segment", "index", i, "of", len(script.Segments))
		if err := s.renderSegment(ctx, ttsCmd, segment, outFile); err != nil {
			return nil, fmt.Errorf("segment %d synthesis: %w", i, err)
		}
		segFiles = append(segFiles, outFile)
	}

	trackPath := filepath.Join(outputDir, "narration.mp3")
	if err := concatAudio(ctx, segFiles, outputDir, trackPath); err != nil {
		return nil, fmt.Errorf("concatenate audio: %w", err)
	}

	duration, err := probeDuration(ctx, trackPath)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}

	words, err := s.transcribe(ctx, trackPath, outputDir)
	if err != nil {
		return nil, fmt.Errorf("word timestamps: %w", err)
	}

	s.log.Info("audio track ready", "path", trackPath, "duration_sec", duration, "words", len(words))
	return &types.AudioTrack{Path: trackPath, Duration: duration, Words: words}, nil
}

func resolveTTSCommand() (string, error) {
	if cmd := strings.TrimSpace(os.Getenv("TTS_COMMAND")); cmd != "" {
		return cmd, nil
	}
	if _, err := exec.LookPath("edge-tts"); err == nil {
		return "edge-tts", nil
	}
	return "", fmt.Errorf("no TTS engine found: set TTS_COMMAND or install edge-tts")
}

func (s *Synthesizer) renderSegment(ctx context.Context, ttsCmd, text, outFile string) error {
	var cmd *exec.Cmd
	switch {
	case ttsCmd == "edge-tts":
		cmd = exec.CommandContext(ctx, "edge-tts",
			"--voice", s.cfg.Voice,
			"--text", text,
			"--write-media", outFile,
		)
	case strings.HasSuffix(ttsCmd, ".py"):
		cmd = exec.CommandContext(ctx, "python3", ttsCmd,
			"--text", text,
			"--output", outFile,
		)
	default:
		cmd = exec.CommandContext(ctx, ttsCmd,
			"--text", text,
			"--output", outFile,
		)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", ttsCmd, err, firstLine(out))
	}
	return nil
}

// concatAudio joins the segment files in order with the ffmpeg concat
// demuxer, stream-copying to avoid a re-encode.
func concatAudio(ctx context.Context, files []string, workDir, outFile string) error {
	listFile := filepath.Join(workDir, "concat_list.txt")
	var lines []string
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("file '%s'", f))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outFile,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg concat: %w: %s", err, firstLine(out))
	}
	return nil
}

// probeDuration reads a media file's duration in seconds via ffprobe.
func probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}

func firstLine(out []byte) string {
	text := strings.TrimSpace(string(out))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
