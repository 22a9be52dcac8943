package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Hunt     HuntConfig     `yaml:"hunt"`
	Script   ScriptConfig   `yaml:"script"`
	Speech   SpeechConfig   `yaml:"speech"`
	Captions CaptionsConfig `yaml:"captions"`
	Video    VideoConfig    `yaml:"video"`
	Assets   AssetsConfig   `yaml:"assets"`
	Upload   UploadConfig   `yaml:"upload"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Server   ServerConfig   `yaml:"server"`
	Paths    PathsConfig    `yaml:"paths"`
}

type HuntConfig struct {
	Subreddits     []string `yaml:"subreddits"`
	CandidateLimit int      `yaml:"candidate_limit"`
	MinScore       int      `yaml:"min_score"`
	MinComments    int      `yaml:"min_comments"`
	MinBodyChars   int      `yaml:"min_body_chars"`
	MaxBodyChars   int      `yaml:"max_body_chars"`
	LookbackDays   int      `yaml:"lookback_days"`
}

type ScriptConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxSegments int     `yaml:"max_segments"`
}

type SpeechConfig struct {
	Voice        string `yaml:"voice"`
	WhisperModel string `yaml:"whisper_model"`
}

type CaptionsConfig struct {
	MaxCharsPerChunk int     `yaml:"max_chars_per_chunk"`
	MinChunkSec      float64 `yaml:"min_chunk_sec"`
	FontSize         int     `yaml:"font_size"`
	Font             string  `yaml:"font"`
}

type VideoConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	FPS       int `yaml:"fps"`
	BarHeight int `yaml:"bar_height"`
}

type AssetsConfig struct {
	SegmentSec      float64  `yaml:"segment_sec"`
	MinSegmentBytes int64    `yaml:"min_segment_bytes"`
	TrimStartSec    float64  `yaml:"trim_start_sec"`
	TrimEndSec      float64  `yaml:"trim_end_sec"`
	RefillThreshold int      `yaml:"refill_threshold"`
	SourceURLs      []string `yaml:"source_urls"`
}

type UploadConfig struct {
	CategoryID      string   `yaml:"category_id"`
	Tags            []string `yaml:"tags"`
	TitleMaxChars   int      `yaml:"title_max_chars"`
	Schedule        []string `yaml:"schedule"`
	Timezone        string   `yaml:"timezone"`
	QuotaPauseHours int      `yaml:"quota_pause_hours"`
}

type PipelineConfig struct {
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
	MaxInFlight      int `yaml:"max_in_flight"`
	StaleAfterHours  int `yaml:"stale_after_hours"`
	MaxAttempts      int `yaml:"max_attempts"`
	BaseDelayMs      int `yaml:"base_delay_ms"`
	KeepSessionDirs  int `yaml:"keep_session_dirs"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type PathsConfig struct {
	Database  string `yaml:"database"`
	Output    string `yaml:"output"`
	RawVideos string `yaml:"raw_videos"`
	Segments  string `yaml:"segments"`
}

// Load reads the YAML config file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every tunable at its baseline value.
func Default() *Config {
	return &Config{
		Hunt: HuntConfig{
			Subreddits:     []string{"AskReddit", "nosleep", "tifu"},
			CandidateLimit: 25,
			MinScore:       500,
			MinComments:    50,
			MinBodyChars:   400,
			MaxBodyChars:   6000,
			LookbackDays:   7,
		},
		Script: ScriptConfig{
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
			MaxSegments: 8,
		},
		Speech: SpeechConfig{
			Voice:        "en-US-GuyNeural",
			WhisperModel: "base",
		},
		Captions: CaptionsConfig{
			MaxCharsPerChunk: 40,
			MinChunkSec:      0.6,
			FontSize:         64,
			Font:             "Arial",
		},
		Video: VideoConfig{
			Width:     1080,
			Height:    1920,
			FPS:       30,
			BarHeight: 14,
		},
		Assets: AssetsConfig{
			SegmentSec:      75,
			MinSegmentBytes: 512 * 1024,
			TrimStartSec:    10,
			TrimEndSec:      10,
			RefillThreshold: 5,
		},
		Upload: UploadConfig{
			CategoryID:      "24",
			Tags:            []string{"reddit", "stories", "storytime"},
			TitleMaxChars:   70,
			Timezone:        "UTC",
			QuotaPauseHours: 12,
		},
		Pipeline: PipelineConfig{
			SweepIntervalSec: 300,
			MaxInFlight:      2,
			StaleAfterHours:  24,
			MaxAttempts:      3,
			BaseDelayMs:      2000,
			KeepSessionDirs:  10,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    ":8085",
		},
		Paths: PathsConfig{
			Database:  "data/storyreel.db",
			Output:    "output",
			RawVideos: "assets/raw",
			Segments:  "assets/segments",
		},
	}
}

// Validate fails fast on values that would break the pipeline at runtime.
func (c *Config) Validate() error {
	if len(c.Hunt.Subreddits) == 0 {
		return fmt.Errorf("config: hunt.subreddits must not be empty")
	}
	if c.Captions.MaxCharsPerChunk < 1 {
		return fmt.Errorf("config: captions.max_chars_per_chunk must be >= 1")
	}
	if c.Captions.MinChunkSec <= 0 {
		return fmt.Errorf("config: captions.min_chunk_sec must be > 0")
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("config: video.fps must be > 0")
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("config: video resolution must be positive")
	}
	if c.Pipeline.MaxInFlight < 1 {
		return fmt.Errorf("config: pipeline.max_in_flight must be >= 1")
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("config: pipeline.max_attempts must be >= 1")
	}
	if c.Paths.Database == "" || c.Paths.Output == "" {
		return fmt.Errorf("config: paths.database and paths.output are required")
	}
	if _, err := time.LoadLocation(c.Upload.Timezone); err != nil {
		return fmt.Errorf("config: upload.timezone: %w", err)
	}
	for _, slot := range c.Upload.Schedule {
		if _, err := time.Parse("15:04", slot); err != nil {
			return fmt.Errorf("config: upload.schedule entry %q: %w", slot, err)
		}
	}
	return nil
}

// SweepInterval returns the pause between scheduler sweeps.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Pipeline.SweepIntervalSec) * time.Second
}

// StaleAfter returns the staleness threshold for session recovery.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Pipeline.StaleAfterHours) * time.Hour
}
