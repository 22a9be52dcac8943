// Package hunt fetches candidate source items from Reddit.
package hunt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/vartanbeno/go-reddit/v2/reddit"

	"storyreel/internal/config"
	"storyreel/internal/types"
)

// ErrSourceUnavailable wraps failures talking to the content source.
// The orchestrator retries with backoff, then skips the sweep.
var ErrSourceUnavailable = errors.New("content source unavailable")

// Source fetches candidate stories. The suitability predicate is not
// applied here; selection policy belongs to the orchestrator.
type Source interface {
	FetchCandidates(ctx context.Context, limit int) ([]*types.SourceItem, error)
}

// RedditSource pulls top self-posts from the configured subreddits
// using the authenticated Reddit API client.
type RedditSource struct {
	cfg    *config.HuntConfig
	client *reddit.Client
	log    hclog.Logger
}

// NewRedditSource builds the client from REDDIT_* environment
// credentials, falling back to the read-only client when they are
// absent.
func NewRedditSource(cfg *config.HuntConfig, log hclog.Logger) (*RedditSource, error) {
	var client *reddit.Client
	var err error

	creds := reddit.Credentials{
		ID:       os.Getenv("REDDIT_CLIENT_ID"),
		Secret:   os.Getenv("REDDIT_CLIENT_SECRET"),
		Username: os.Getenv("REDDIT_USERNAME"),
		Password: os.Getenv("REDDIT_PASSWORD"),
	}
	if creds.ID != "" && creds.Secret != "" {
		client, err = reddit.NewClient(creds)
	} else {
		client, err = reddit.NewReadonlyClient()
	}
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}

	return &RedditSource{cfg: cfg, client: client, log: log.Named("hunt")}, nil
}

// FetchCandidates returns up to limit stories across the configured
// subreddits, best score first. A subreddit that fails is skipped; the
// call fails only when every subreddit is unreachable.
func (s *RedditSource) FetchCandidates(ctx context.Context, limit int) ([]*types.SourceItem, error) {
	perSub := s.cfg.CandidateLimit
	if perSub <= 0 {
		perSub = 25
	}

	var items []*types.SourceItem
	var lastErr error
	reached := 0

	window := topWindow(s.cfg.LookbackDays)
	for _, sub := range s.cfg.Subreddits {
		posts, _, err := s.client.Subreddit.TopPosts(ctx, sub, &reddit.ListPostOptions{
			ListOptions: reddit.ListOptions{Limit: perSub},
			Time:        window,
		})
		if err != nil {
			s.log.Warn("subreddit fetch failed", "subreddit", sub, "error", err)
			lastErr = err
			continue
		}
		reached++

		for _, post := range posts {
			if !post.IsSelfPost || post.Stickied {
				continue
			}
			items = append(items, &types.SourceItem{
				ID:        "reddit_" + post.ID,
				Title:     post.Title,
				Body:      post.Body,
				Subreddit: post.SubredditName,
				Score:     post.Score,
				Comments:  post.NumberOfComments,
				CreatedAt: post.Created.Time,
			})
		}
	}

	if reached == 0 {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, lastErr)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	s.log.Info("candidates fetched", "count", len(items), "subreddits", reached)
	return items, nil
}

// topWindow maps the lookback in days onto the coarser time windows
// the listing API accepts, rounding up so no configured day is lost.
func topWindow(days int) string {
	switch {
	case days <= 0:
		return "week"
	case days <= 1:
		return "day"
	case days <= 7:
		return "week"
	case days <= 31:
		return "month"
	case days <= 365:
		return "year"
	default:
		return "all"
	}
}
