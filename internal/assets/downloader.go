package assets

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
)

// Refill downloads one new raw video when the segment library is
// running low. Source URLs are tried in order and each is fetched at
// most once, tracked in a log next to the raw folder; videos shorter
// than one segment plus the trim margins are filtered out before
// download. The file lands in the raw folder for Maintain to segment.
func (l *Library) Refill(ctx context.Context) error {
	count := l.SegmentCount()
	if count >= l.cfg.RefillThreshold {
		return nil
	}
	if len(l.cfg.SourceURLs) == 0 {
		l.log.Warn("segment library low, no source urls configured", "segments", count)
		return nil
	}

	logPath := filepath.Join(l.rawDir, ".downloaded")
	fetched := loadProcessedLog(logPath)

	minDuration := l.cfg.SegmentSec + l.cfg.TrimStartSec + l.cfg.TrimEndSec
	for _, url := range l.cfg.SourceURLs {
		if fetched[url] {
			continue
		}
		l.log.Info("downloading background source", "url", url)
		cmd := exec.CommandContext(ctx, "yt-dlp",
			"--quiet",
			"--no-playlist",
			"--match-filter", fmt.Sprintf("duration > %.0f", minDuration),
			"--format", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio/best",
			"--merge-output-format", "mp4",
			"--output", filepath.Join(l.rawDir, "%(id)s.mp4"),
			url,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			// failed urls are not logged as fetched, so they retry later
			l.log.Warn("background download failed", "url", url, "error", err, "detail", firstLine(out))
			continue
		}
		appendProcessedLog(logPath, url)

		l.mu.Lock()
		l.dirty = true
		l.mu.Unlock()
		l.log.Info("background source downloaded", "url", url)
		return nil
	}
	return fmt.Errorf("segment library low and every source url is spent")
}
