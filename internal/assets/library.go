// Package assets maintains the library of background video segments
// drawn under each story's captions.
package assets

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"storyreel/internal/config"
)

// Library hands out background segments. A segment is assigned to at
// most one story at a time and deleted once that story's video has
// been published, so the same background is never reused.
type Library struct {
	cfg *config.AssetsConfig

	rawDir      string
	segmentsDir string

	mu       sync.Mutex
	assigned map[string]string // story id -> segment path
	dirty    bool              // raw dir changed since last maintenance

	log hclog.Logger
}

// NewLibrary creates the library and ensures its directories exist.
func NewLibrary(cfg *config.AssetsConfig, rawDir, segmentsDir string, log hclog.Logger) (*Library, error) {
	for _, dir := range []string{rawDir, segmentsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create assets dir %s: %w", dir, err)
		}
	}
	return &Library{
		cfg:         cfg,
		rawDir:      rawDir,
		segmentsDir: segmentsDir,
		assigned:    map[string]string{},
		dirty:       true,
		log:         log.Named("assets"),
	}, nil
}

// Acquire assigns a random valid segment to a story. Repeated calls
// for the same story return the same segment, which keeps a recovered
// session on the background it started with.
func (l *Library) Acquire(storyID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if path, ok := l.assigned[storyID]; ok {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		delete(l.assigned, storyID)
	}

	candidates, err := l.validSegments()
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no background segments available in %s", l.segmentsDir)
	}

	pick := candidates[rand.Intn(len(candidates))]
	l.assigned[storyID] = pick
	l.log.Info("segment assigned", "story_id", storyID, "segment", filepath.Base(pick))
	return pick, nil
}

// Consume deletes the segment assigned to a story after its video has
// been uploaded. Safe to call for stories with no assignment.
func (l *Library) Consume(storyID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	path, ok := l.assigned[storyID]
	if !ok {
		return
	}
	delete(l.assigned, storyID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		l.log.Warn("segment delete failed", "segment", filepath.Base(path), "error", err)
		return
	}
	l.log.Info("segment consumed", "story_id", storyID, "segment", filepath.Base(path))
}

// SegmentCount reports how many valid segments are ready.
func (l *Library) SegmentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	segs, err := l.validSegments()
	if err != nil {
		return 0
	}
	return len(segs)
}

func (l *Library) validSegments() ([]string, error) {
	entries, err := os.ReadDir(l.segmentsDir)
	if err != nil {
		return nil, fmt.Errorf("read segments dir: %w", err)
	}

	taken := make(map[string]bool, len(l.assigned))
	for _, p := range l.assigned {
		taken[p] = true
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp4") {
			continue
		}
		path := filepath.Join(l.segmentsDir, e.Name())
		if taken[path] {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() < l.cfg.MinSegmentBytes {
			continue
		}
		out = append(out, path)
	}
	return out, nil
}

// Maintain splits any new raw videos into fixed-length segments. A raw
// file is deleted once segmented; files already seen are skipped via a
// processed log next to the raw folder. No-op unless the raw folder
// changed since the last run.
func (l *Library) Maintain(ctx context.Context) error {
	l.mu.Lock()
	if !l.dirty {
		l.mu.Unlock()
		return nil
	}
	l.dirty = false
	l.mu.Unlock()

	processedLog := filepath.Join(l.rawDir, ".processed")
	processed := loadProcessedLog(processedLog)

	entries, err := os.ReadDir(l.rawDir)
	if err != nil {
		return fmt.Errorf("read raw dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp4") || processed[e.Name()] {
			continue
		}
		rawPath := filepath.Join(l.rawDir, e.Name())
		if err := l.segmentRawVideo(ctx, rawPath); err != nil {
			l.log.Warn("segmenting raw video failed", "file", e.Name(), "error", err)
			continue
		}
		appendProcessedLog(processedLog, e.Name())
		if err := os.Remove(rawPath); err != nil {
			l.log.Warn("raw video delete failed", "file", e.Name(), "error", err)
		}
	}
	return nil
}

// segmentRawVideo trims the configured head and tail off a raw video,
// then stream-copies it into fixed-duration segments.
func (l *Library) segmentRawVideo(ctx context.Context, rawPath string) error {
	duration, err := probeDuration(ctx, rawPath)
	if err != nil {
		return fmt.Errorf("probe raw video: %w", err)
	}

	usable := duration - l.cfg.TrimStartSec - l.cfg.TrimEndSec
	count := int(usable / l.cfg.SegmentSec)
	if count < 1 {
		return fmt.Errorf("raw video too short: %.1fs usable", usable)
	}

	base := strings.TrimSuffix(filepath.Base(rawPath), ".mp4")
	l.log.Info("segmenting raw video", "file", base, "segments", count)

	for i := 0; i < count; i++ {
		start := l.cfg.TrimStartSec + float64(i)*l.cfg.SegmentSec
		segPath := filepath.Join(l.segmentsDir, fmt.Sprintf("%s_seg%03d.mp4", base, i+1))
		cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
			"-ss", fmt.Sprintf("%.2f", start),
			"-i", rawPath,
			"-t", fmt.Sprintf("%.2f", l.cfg.SegmentSec),
			"-c", "copy",
			"-an",
			segPath,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("ffmpeg segment %d: %w: %s", i+1, err, firstLine(out))
		}
		if info, err := os.Stat(segPath); err != nil || info.Size() < l.cfg.MinSegmentBytes {
			os.Remove(segPath)
			l.log.Debug("segment discarded as too small", "segment", filepath.Base(segPath))
		}
	}
	return nil
}

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

func loadProcessedLog(path string) map[string]bool {
	processed := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return processed
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			processed[line] = true
		}
	}
	return processed
}

func appendProcessedLog(path, name string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, name)
}

func firstLine(out []byte) string {
	text := strings.TrimSpace(string(out))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
