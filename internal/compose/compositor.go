// Package compose layers a background segment, karaoke captions and a
// progress bar over the narration audio into the final vertical video.
package compose

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"storyreel/internal/config"
	"storyreel/internal/types"
)

// Compositor renders assembled videos with ffmpeg. Intermediates live
// in a scratch directory that is removed on every exit path, and the
// output lands at its final path only after a successful encode.
type Compositor struct {
	video    *config.VideoConfig
	captions *config.CaptionsConfig
	log      hclog.Logger
}

// New creates a Compositor.
func New(video *config.VideoConfig, cap *config.CaptionsConfig, log hclog.Logger) *Compositor {
	return &Compositor{video: video, captions: cap, log: log.Named("compose")}
}

// Compose builds the final video: the background is looped or trimmed
// to the audio duration, cropped to the vertical frame, captioned, and
// overlaid with the progress bar driven by the supplied frames. The
// encode writes to a temporary file that is renamed to outputPath only
// on success, so a crash never leaves a partial artifact at the final
// path.
func (c *Compositor) Compose(
	ctx context.Context,
	backgroundPath string,
	audio *types.AudioTrack,
	chunks []types.CaptionChunk,
	frames []types.OverlayFrame,
	outputPath string,
) (*types.AssembledVideo, error) {
	if audio.Duration <= 0 {
		return nil, failed("validate", fmt.Errorf("audio duration %.3f", audio.Duration))
	}
	if len(frames) == 0 {
		return nil, failed("validate", fmt.Errorf("no overlay frames"))
	}

	scratch, err := os.MkdirTemp(filepath.Dir(outputPath), "compose-*")
	if err != nil {
		return nil, failed("scratch dir", err)
	}
	defer os.RemoveAll(scratch)

	assPath := filepath.Join(scratch, "captions.ass")
	script := assScript(chunks, c.video.Width, c.video.Height, c.captions.FontSize, c.captions.Font)
	if err := os.WriteFile(assPath, []byte(script), 0o644); err != nil {
		return nil, failed("write captions", err)
	}

	cmdPath := filepath.Join(scratch, "progress.cmd")
	if err := os.WriteFile(cmdPath, []byte(progressCommands(frames, c.video.Width)), 0o644); err != nil {
		return nil, failed("write progress commands", err)
	}

	loops, err := c.backgroundLoops(ctx, backgroundPath, audio.Duration)
	if err != nil {
		return nil, failed("probe background", err)
	}

	tmpOut := filepath.Join(scratch, "assembled.mp4")
	if err := c.encode(ctx, backgroundPath, audio.Path, assPath, cmdPath, loops, audio.Duration, tmpOut); err != nil {
		return nil, failed("encode", err)
	}

	if err := os.Rename(tmpOut, outputPath); err != nil {
		return nil, failed("finalize output", err)
	}

	c.log.Info("video assembled", "path", outputPath, "duration_sec", audio.Duration)
	return &types.AssembledVideo{
		Path:     outputPath,
		Duration: audio.Duration,
		Width:    c.video.Width,
		Height:   c.video.Height,
	}, nil
}

// backgroundLoops returns how many extra times the background must be
// looped to cover the track; excess is trimmed by the encode's -t.
func (c *Compositor) backgroundLoops(ctx context.Context, path string, duration float64) (int, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, err
	}
	bgDur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || bgDur <= 0 {
		return 0, fmt.Errorf("background duration unreadable: %v", err)
	}
	if bgDur >= duration {
		return 0, nil
	}
	return int(math.Ceil(duration/bgDur)) - 1, nil
}

func (c *Compositor) encode(ctx context.Context, background, audio, assPath, cmdPath string, loops int, duration float64, outFile string) error {
	w, h := c.video.Width, c.video.Height
	filter := fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1[bg];"+
			"[bg]subtitles=%s[cap];"+
			"[cap]sendcmd=f=%s,drawbox@progress=x=0:y=ih-%d:w=1:h=%d:color=white@0.85:t=fill[out]",
		w, h, w, h,
		escapeFilterPath(assPath),
		escapeFilterPath(cmdPath),
		c.video.BarHeight, c.video.BarHeight,
	)

	args := []string{"-y"}
	if loops > 0 {
		args = append(args, "-stream_loop", strconv.Itoa(loops))
	}
	args = append(args,
		"-i", background,
		"-i", audio,
		"-filter_complex", filter,
		"-map", "[out]",
		"-map", "1:a",
		"-t", fmt.Sprintf("%.3f", duration),
		"-r", strconv.Itoa(c.video.FPS),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "22",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		outFile,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(out))
	}
	return nil
}

// progressCommands renders the overlay frame sequence as an ffmpeg
// sendcmd script updating the progress drawbox width per frame.
func progressCommands(frames []types.OverlayFrame, width int) string {
	var sb strings.Builder
	for _, f := range frames {
		w := int(math.Round(f.Fraction * float64(width)))
		if w < 1 {
			w = 1 // drawbox rejects zero width
		}
		fmt.Fprintf(&sb, "%.3f drawbox@progress w %d;\n", f.Offset, w)
	}
	return sb.String()
}

// escapeFilterPath escapes a path for use inside filter arguments.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, ":", "\\:")
	return path
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
