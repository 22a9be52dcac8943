package types

import "time"

// Stage is one named step of the pipeline state machine.
type Stage string

const (
	StageHunting      Stage = "hunting"
	StageScripting    Stage = "scripting"
	StageSynthesizing Stage = "synthesizing"
	StageAligning     Stage = "aligning"
	StageAssembling   Stage = "assembling"
	StageUploading    Stage = "uploading"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Terminal reports whether a stage accepts no further transitions.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// NextStage returns the stage that follows s in the pipeline order.
// Terminal stages return themselves.
func NextStage(s Stage) Stage {
	switch s {
	case StageHunting:
		return StageScripting
	case StageScripting:
		return StageSynthesizing
	case StageSynthesizing:
		return StageAligning
	case StageAligning:
		return StageAssembling
	case StageAssembling:
		return StageUploading
	case StageUploading:
		return StageDone
	default:
		return s
	}
}

// ValidTransition enforces the allowed stage edges: one step forward in
// pipeline order, or failed from any non-terminal stage.
func ValidTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	return NextStage(from) == to
}

// StageOutputs collects the artifacts produced by completed stages.
// Each field is set exactly once, by the stage that produced it.
type StageOutputs struct {
	Source   *SourceItem     `json:"source,omitempty"`
	Script   *Script         `json:"script,omitempty"`
	Audio    *AudioTrack     `json:"audio,omitempty"`
	Chunks   []CaptionChunk  `json:"chunks,omitempty"`
	Frames   []OverlayFrame  `json:"frames,omitempty"`
	Video    *AssembledVideo `json:"video,omitempty"`
	Metadata *VideoMetadata  `json:"metadata,omitempty"`
	RemoteID string          `json:"remote_id,omitempty"`
}

// Session is one end-to-end pipeline run for a single source item.
// Its stage only advances monotonically through the pipeline order, or
// moves to failed; done and failed sessions are immutable.
type Session struct {
	ID            string       `json:"id"`
	SourceID      string       `json:"source_id"`
	Stage         Stage        `json:"stage"`
	Outputs       StageOutputs `json:"outputs"`
	WorkDir       string       `json:"work_dir"`
	FailureReason string       `json:"failure_reason,omitempty"`
	Cancelled     bool         `json:"cancelled"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// SessionID derives the stable session id for a source item. One source
// item maps to exactly one session, which is what keeps two sweeps from
// producing the same video twice.
func SessionID(sourceID string) string {
	return "sess_" + sourceID
}

// NewSession creates a session in the scripting stage: hunting completed
// the moment the source item was selected.
func NewSession(item *SourceItem, workDir string, now time.Time) *Session {
	return &Session{
		ID:        SessionID(item.ID),
		SourceID:  item.ID,
		Stage:     StageScripting,
		Outputs:   StageOutputs{Source: item},
		WorkDir:   workDir,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the session one stage forward. It panics on invalid
// transitions; callers go through the orchestrator, which owns ordering.
func (s *Session) Advance(now time.Time) {
	next := NextStage(s.Stage)
	if !ValidTransition(s.Stage, next) {
		panic("session: advance from terminal stage " + string(s.Stage))
	}
	s.Stage = next
	s.UpdatedAt = now
}

// Fail marks the session failed with a structured reason.
func (s *Session) Fail(reason string, now time.Time) {
	s.Stage = StageFailed
	s.FailureReason = reason
	s.UpdatedAt = now
}
