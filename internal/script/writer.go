// Package script generates narration and upload metadata from source
// items using the Groq chat completion API.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"storyreel/internal/config"
	"storyreel/internal/types"
)

const groqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// ErrGenerationBlocked marks a story the model refused to narrate.
// Not retryable: the session fails immediately.
var ErrGenerationBlocked = errors.New("script generation blocked")

const scriptSystemPrompt = `You are a narrator for short vertical videos built from reddit stories.
Rewrite the story as spoken narration: first person, punchy, hook in the first sentence.

You MUST respond with ONLY valid JSON — no preamble, no markdown:
{"segments": ["...", "..."], "blocked": false}

Rules:
- 2-8 segments, each 1-3 spoken sentences.
- Total narration 45-90 seconds read aloud (~150 words per minute).
- Keep names and places from the story. No meta commentary.
- If the story cannot be narrated (sexual content involving minors,
  instructions for violence, doxxing), respond {"segments": [], "blocked": true}.`

const metadataSystemPrompt = `You are a YouTube Shorts strategist.
Respond with ONLY valid JSON:
{"title": "...", "description": "..."}

- title: max 70 chars, hook style, honest.
- description: 2-3 sentences plus a question driving comments.`

// Writer turns source items into scripts and metadata.
type Writer struct {
	cfg        *config.ScriptConfig
	httpClient *http.Client
	log        hclog.Logger
}

// NewWriter creates a Writer using GROQ_API_KEY from the environment.
func NewWriter(cfg *config.ScriptConfig, log hclog.Logger) *Writer {
	return &Writer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log.Named("script"),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate writes the narration script for a story.
func (w *Writer) Generate(ctx context.Context, item *types.SourceItem) (*types.Script, error) {
	w.log.Info("generating script", "source_id", item.ID, "title", item.Title)

	user := fmt.Sprintf("TITLE: %s\nSUBREDDIT: r/%s\n\nSTORY:\n%s\n\nRespond ONLY with valid JSON.",
		item.Title, item.Subreddit, item.Body)

	content, err := w.complete(ctx, scriptSystemPrompt, user, w.cfg.Temperature)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Segments []string `json:"segments"`
		Blocked  bool     `json:"blocked"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(content)), &raw); err != nil {
		return nil, fmt.Errorf("parse script JSON: %w", err)
	}
	if raw.Blocked || len(raw.Segments) == 0 {
		return nil, fmt.Errorf("%w: source %s", ErrGenerationBlocked, item.ID)
	}
	if max := w.cfg.MaxSegments; max > 0 && len(raw.Segments) > max {
		raw.Segments = raw.Segments[:max]
	}

	w.log.Info("script ready", "source_id", item.ID, "segments", len(raw.Segments))
	return &types.Script{SourceID: item.ID, Segments: raw.Segments}, nil
}

// Metadata writes the upload title and description for a finished
// script. Title length is capped at titleMax.
func (w *Writer) Metadata(ctx context.Context, item *types.SourceItem, script *types.Script, titleMax int) (*types.VideoMetadata, error) {
	user := fmt.Sprintf("STORY TITLE: %s\n\nNARRATION:\n%s\n\nRespond ONLY with valid JSON.",
		item.Title, script.Text())

	content, err := w.complete(ctx, metadataSystemPrompt, user, 0.8)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(content)), &raw); err != nil {
		return nil, fmt.Errorf("parse metadata JSON: %w", err)
	}
	if raw.Title == "" {
		raw.Title = item.Title
	}
	if titleMax > 3 && len(raw.Title) > titleMax {
		raw.Title = raw.Title[:titleMax-3] + "..."
	}
	return &types.VideoMetadata{Title: raw.Title, Description: raw.Description}, nil
}

func (w *Writer) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return "", errors.New("GROQ_API_KEY not set")
	}

	body, err := json.Marshal(chatRequest{
		Model: w.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   2048,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, groqEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("parse groq response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("groq error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("groq returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// cleanJSON strips markdown fences when the model wraps its response
// in ```json ... ```.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
