// Package pipeline drives stories from discovery to publication. The
// orchestrator owns the stage state machine and is the only writer of
// session transitions; every collaborator sits behind a narrow
// interface so stages can be exercised without their real backends.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"storyreel/internal/captions"
	"storyreel/internal/config"
	"storyreel/internal/overlay"
	"storyreel/internal/publish"
	"storyreel/internal/retry"
	"storyreel/internal/script"
	"storyreel/internal/store"
	"storyreel/internal/types"
)

// errUploadsPaused is returned by the upload stage while the quota
// pause window is open. It leaves the session non-terminal so the
// upload retries on a later sweep.
var errUploadsPaused = errors.New("uploads paused until quota window resets")

// Source delivers candidate stories.
type Source interface {
	FetchCandidates(ctx context.Context, limit int) ([]*types.SourceItem, error)
}

// ScriptWriter turns a story into narration and upload metadata.
type ScriptWriter interface {
	Generate(ctx context.Context, item *types.SourceItem) (*types.Script, error)
	Metadata(ctx context.Context, item *types.SourceItem, script *types.Script, titleMax int) (*types.VideoMetadata, error)
}

// SpeechSynthesizer renders narration audio with word timestamps.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, script *types.Script, outputDir string) (*types.AudioTrack, error)
}

// BackgroundLibrary hands out gameplay segments for the video backdrop.
type BackgroundLibrary interface {
	Acquire(storyID string) (string, error)
	Consume(storyID string)
}

// Compositor renders the final vertical video.
type Compositor interface {
	Compose(ctx context.Context, backgroundPath string, audio *types.AudioTrack,
		chunks []types.CaptionChunk, frames []types.OverlayFrame, outputPath string) (*types.AssembledVideo, error)
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Sessions   *store.SessionStore
	Ledger     *store.Ledger
	Source     Source
	Writer     ScriptWriter
	Speech     SpeechSynthesizer
	Assets     BackgroundLibrary
	Compositor Compositor
	Publisher  publish.Publisher
}

// Orchestrator runs the full pipeline: discovery, per-session stage
// execution with bounded concurrency, crash recovery and the global
// upload quota gate.
type Orchestrator struct {
	cfg     *config.Config
	deps    Deps
	log     hclog.Logger
	policy  retry.Policy
	aligner *captions.Aligner
	now     func() time.Time

	mu          sync.Mutex
	pausedUntil time.Time
}

// New wires an orchestrator from config and collaborators.
func New(cfg *config.Config, deps Deps, log hclog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		log:  log.Named("pipeline"),
		policy: retry.Policy{
			MaxAttempts: cfg.Pipeline.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Pipeline.BaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Minute,
		},
		aligner: captions.New(cfg.Captions.MaxCharsPerChunk, cfg.Captions.MinChunkSec),
		now:     time.Now,
	}
}

// Run recovers persisted sessions, then sweeps on the configured
// interval until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Recover(); err != nil {
		return err
	}
	for {
		if err := o.Sweep(ctx); err != nil {
			o.log.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.SweepInterval()):
		}
	}
}

// Recover inspects every non-terminal session left over from a
// previous run. Sessions untouched for longer than the staleness
// threshold are failed; fresher ones are left for the next sweep to
// resume from their persisted stage.
func (o *Orchestrator) Recover() error {
	sessions, err := o.deps.Sessions.ListRecoverable()
	if err != nil {
		return fmt.Errorf("recovery scan: %w", err)
	}
	for _, sess := range sessions {
		if o.now().Sub(sess.UpdatedAt) > o.cfg.StaleAfter() {
			o.log.Warn("failing stale session", "session_id", sess.ID, "stage", sess.Stage,
				"last_update", sess.UpdatedAt)
			sess.Fail("stale_on_restart", o.now())
			if err := o.deps.Sessions.Save(sess); err != nil {
				return err
			}
			continue
		}
		o.log.Info("session will resume", "session_id", sess.ID, "stage", sess.Stage)
	}
	return nil
}

// Sweep discovers new stories, then drives every non-terminal session
// forward. Discovery failures are logged and skipped so in-flight
// sessions keep progressing when the source or ledger is down.
func (o *Orchestrator) Sweep(ctx context.Context) error {
	log := o.log.With("sweep_id", uuid.NewString()[:8])
	log.Debug("sweep started")
	if err := o.discover(ctx); err != nil {
		log.Error("discovery skipped", "error", err)
	}
	return o.process(ctx)
}

// discover pulls candidates, filters them through the ledger, the
// session table and the suitability check, and persists a fresh
// session per accepted story.
func (o *Orchestrator) discover(ctx context.Context) error {
	items, err := o.deps.Source.FetchCandidates(ctx, o.cfg.Hunt.CandidateLimit)
	if err != nil {
		return fmt.Errorf("fetch candidates: %w", err)
	}
	for _, item := range items {
		seen, err := o.deps.Ledger.Has(item.ID)
		if err != nil {
			// dedup cannot be guaranteed, stop taking new work
			return err
		}
		if seen {
			continue
		}
		existing, err := o.deps.Sessions.Load(types.SessionID(item.ID))
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if d := Suitable(&o.cfg.Hunt, item); !d.Approved {
			o.log.Debug("candidate rejected", "source_id", item.ID, "reason", d.Reason)
			continue
		}

		workDir := filepath.Join(o.cfg.Paths.Output, types.SessionID(item.ID))
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return fmt.Errorf("create work dir: %w", err)
		}
		sess := types.NewSession(item, workDir, o.now())
		if err := o.deps.Sessions.Save(sess); err != nil {
			return err
		}
		o.log.Info("session created", "session_id", sess.ID, "title", item.Title)
	}
	return nil
}

// process runs every recoverable session with at most MaxInFlight
// executing concurrently. Each session runs its stages sequentially.
func (o *Orchestrator) process(ctx context.Context) error {
	sessions, err := o.deps.Sessions.ListRecoverable()
	if err != nil {
		return err
	}
	sem := make(chan struct{}, o.cfg.Pipeline.MaxInFlight)
	var wg sync.WaitGroup
	for _, sess := range sessions {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}
		wg.Add(1)
		go func(sess *types.Session) {
			defer wg.Done()
			defer func() { <-sem }()
			o.runSession(ctx, sess)
		}(sess)
	}
	wg.Wait()
	return nil
}

// runSession advances one session stage by stage until it reaches a
// terminal stage, the context ends, or the quota gate defers it. A
// failure in one session never touches any other.
func (o *Orchestrator) runSession(ctx context.Context, sess *types.Session) {
	log := o.log.With("session_id", sess.ID)
	for !sess.Stage.Terminal() {
		if ctx.Err() != nil {
			return
		}
		if o.cancelled(sess) {
			log.Info("session cancelled")
			sess.Fail("cancelled", o.now())
			o.save(sess)
			return
		}

		err := o.step(ctx, sess)
		if errors.Is(err, errUploadsPaused) {
			log.Info("upload deferred", "until", o.pauseDeadline())
			return
		}
		if err != nil {
			log.Error("stage failed", "stage", sess.Stage, "error", err)
			sess.Fail(fmt.Sprintf("%s: %v", sess.Stage, err), o.now())
			o.save(sess)
			return
		}

		prev := sess.Stage
		sess.Advance(o.now())
		o.save(sess)
		log.Info("stage complete", "from", prev, "to", sess.Stage)
	}
	if sess.Stage == types.StageDone {
		o.pruneWorkDirs()
	}
}

func (o *Orchestrator) step(ctx context.Context, sess *types.Session) error {
	switch sess.Stage {
	case types.StageScripting:
		return o.runScripting(ctx, sess)
	case types.StageSynthesizing:
		return o.runSynthesizing(ctx, sess)
	case types.StageAligning:
		return o.runAligning(sess)
	case types.StageAssembling:
		return o.runAssembling(ctx, sess)
	case types.StageUploading:
		return o.runUploading(ctx, sess)
	default:
		return fmt.Errorf("no step for stage %s", sess.Stage)
	}
}

func (o *Orchestrator) runScripting(ctx context.Context, sess *types.Session) error {
	item := sess.Outputs.Source
	err := o.policy.Do(ctx, func() error {
		generated, err := o.deps.Writer.Generate(ctx, item)
		if errors.Is(err, script.ErrGenerationBlocked) {
			return retry.Permanent(err)
		}
		if err != nil {
			return err
		}
		sess.Outputs.Script = generated
		return nil
	})
	if err != nil {
		return err
	}
	return o.policy.Do(ctx, func() error {
		meta, err := o.deps.Writer.Metadata(ctx, item, sess.Outputs.Script, o.cfg.Upload.TitleMaxChars)
		if err != nil {
			return err
		}
		meta.CategoryID = o.cfg.Upload.CategoryID
		meta.Tags = append(meta.Tags, o.cfg.Upload.Tags...)
		sess.Outputs.Metadata = meta
		return nil
	})
}

func (o *Orchestrator) runSynthesizing(ctx context.Context, sess *types.Session) error {
	return o.policy.Do(ctx, func() error {
		audio, err := o.deps.Speech.Synthesize(ctx, sess.Outputs.Script, filepath.Join(sess.WorkDir, "audio"))
		if err != nil {
			return err
		}
		sess.Outputs.Audio = audio
		return nil
	})
}

// runAligning is pure computation, so it gets no retry budget: the
// same input always fails the same way.
func (o *Orchestrator) runAligning(sess *types.Session) error {
	audio := sess.Outputs.Audio
	chunks, err := o.aligner.Align(audio.Words)
	if err != nil {
		return fmt.Errorf("caption alignment: %w", err)
	}
	seq, err := overlay.NewSequence(audio.Duration, float64(o.cfg.Video.FPS))
	if err != nil {
		return fmt.Errorf("overlay frames: %w", err)
	}
	sess.Outputs.Chunks = chunks
	sess.Outputs.Frames = seq.All()
	return nil
}

func (o *Orchestrator) runAssembling(ctx context.Context, sess *types.Session) error {
	background, err := o.deps.Assets.Acquire(sess.SourceID)
	if err != nil {
		return fmt.Errorf("acquire background: %w", err)
	}
	outPath := filepath.Join(sess.WorkDir, sess.ID+".mp4")
	return o.policy.Do(ctx, func() error {
		video, err := o.deps.Compositor.Compose(ctx, background, sess.Outputs.Audio,
			sess.Outputs.Chunks, sess.Outputs.Frames, outPath)
		if err != nil {
			return err
		}
		video.SourceID = sess.SourceID
		sess.Outputs.Video = video
		return nil
	})
}

func (o *Orchestrator) runUploading(ctx context.Context, sess *types.Session) error {
	if o.uploadsPaused() {
		return errUploadsPaused
	}

	meta := sess.Outputs.Metadata
	if meta.PublishAt == nil && len(o.cfg.Upload.Schedule) > 0 {
		at, err := publish.NextSlot(&o.cfg.Upload, o.now())
		if err != nil {
			return err
		}
		meta.PublishAt = at
	}

	if sess.Outputs.RemoteID == "" {
		err := o.policy.Do(ctx, func() error {
			id, err := o.deps.Publisher.Upload(ctx, sess.Outputs.Video, meta)
			if errors.Is(err, publish.ErrQuotaExceeded) {
				return retry.Permanent(err)
			}
			if err != nil {
				return err
			}
			sess.Outputs.RemoteID = id
			return nil
		})
		if errors.Is(err, publish.ErrQuotaExceeded) {
			o.pauseUploads()
			return errUploadsPaused
		}
		if err != nil {
			return err
		}
		// persist the remote id before anything else so a crash here
		// cannot cause a second upload of the same video
		o.save(sess)
	}

	if err := o.deps.Ledger.Record(sess.SourceID, o.now()); err != nil {
		return err
	}
	o.deps.Assets.Consume(sess.SourceID)
	return nil
}

// cancelled re-reads the persisted cancellation flag so a cancel
// issued through the API takes effect at the next stage boundary.
func (o *Orchestrator) cancelled(sess *types.Session) bool {
	if sess.Cancelled {
		return true
	}
	fresh, err := o.deps.Sessions.Load(sess.ID)
	if err != nil || fresh == nil {
		return false
	}
	sess.Cancelled = fresh.Cancelled
	return fresh.Cancelled
}

func (o *Orchestrator) uploadsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now().Before(o.pausedUntil)
}

func (o *Orchestrator) pauseUploads() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pausedUntil = o.now().Add(time.Duration(o.cfg.Upload.QuotaPauseHours) * time.Hour)
	o.log.Warn("upload quota exhausted, pausing all uploads", "until", o.pausedUntil)
}

func (o *Orchestrator) pauseDeadline() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pausedUntil
}

func (o *Orchestrator) save(sess *types.Session) {
	if err := o.deps.Sessions.Save(sess); err != nil {
		o.log.Error("session save failed", "session_id", sess.ID, "error", err)
	}
}

// pruneWorkDirs removes the work directories of the oldest terminal
// sessions, keeping the most recent KeepSessionDirs for inspection.
func (o *Orchestrator) pruneWorkDirs() {
	keep := o.cfg.Pipeline.KeepSessionDirs
	if keep <= 0 {
		return
	}
	sessions, err := o.deps.Sessions.ListAll(0)
	if err != nil {
		o.log.Error("work dir prune scan failed", "error", err)
		return
	}
	terminal := sessions[:0]
	for _, sess := range sessions {
		if sess.Stage.Terminal() && sess.WorkDir != "" {
			terminal = append(terminal, sess)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].UpdatedAt.After(terminal[j].UpdatedAt)
	})
	for _, sess := range terminal[min(keep, len(terminal)):] {
		if err := os.RemoveAll(sess.WorkDir); err != nil {
			o.log.Warn("work dir removal failed", "path", sess.WorkDir, "error", err)
		}
	}
}
