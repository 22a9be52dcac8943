// Package publish uploads assembled videos to YouTube.
package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"storyreel/internal/config"
	"storyreel/internal/types"
)

// ErrQuotaExceeded marks an upload rejected for quota. No further
// uploads are attempted until the quota window resets.
var ErrQuotaExceeded = errors.New("upload quota exceeded")

// Publisher uploads videos through a narrow contract so the pipeline
// can be tested without the YouTube API.
type Publisher interface {
	Upload(ctx context.Context, video *types.AssembledVideo, meta *types.VideoMetadata) (string, error)
}

// YouTubePublisher uploads via the Data API v3 using a refresh token
// from the environment.
type YouTubePublisher struct {
	cfg *config.UploadConfig
	log hclog.Logger
}

// NewYouTubePublisher creates a publisher; credentials are read lazily
// per upload so a token rotation does not require a restart.
func NewYouTubePublisher(cfg *config.UploadConfig, log hclog.Logger) *YouTubePublisher {
	return &YouTubePublisher{cfg: cfg, log: log.Named("publish")}
}

// Upload sends the video with its metadata and returns the remote
// video id. Quota rejections come back as ErrQuotaExceeded.
func (p *YouTubePublisher) Upload(ctx context.Context, video *types.AssembledVideo, meta *types.VideoMetadata) (string, error) {
	client, err := p.oauthClient(ctx)
	if err != nil {
		return "", fmt.Errorf("youtube auth: %w", err)
	}
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	status := &youtube.VideoStatus{
		PrivacyStatus:           "public",
		SelfDeclaredMadeForKids: false,
	}
	if meta.PublishAt != nil {
		// scheduled videos must be private until the publish time
		status.PrivacyStatus = "private"
		status.PublishAt = meta.PublishAt.UTC().Format(time.RFC3339)
	}

	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: status,
	}

	f, err := os.Open(video.Path)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	p.log.Info("uploading video", "title", meta.Title, "path", video.Path)
	call := svc.Videos.Insert([]string{"snippet", "status"}, upload)
	call.Media(f)

	uploaded, err := call.Context(ctx).Do()
	if err != nil {
		if isQuotaError(err) {
			return "", fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("youtube upload: %w", err)
	}

	p.log.Info("upload complete", "video_id", uploaded.Id)
	return uploaded.Id, nil
}

func (p *YouTubePublisher) oauthClient(ctx context.Context) (*http.Client, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, errors.New("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET or YOUTUBE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token)), nil
}

// isQuotaError recognizes the Data API's quota rejections.
func isQuotaError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code != 403 {
		return false
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "quotaExceeded" || item.Reason == "uploadLimitExceeded" ||
			strings.Contains(item.Reason, "quota") {
			return true
		}
	}
	return false
}
