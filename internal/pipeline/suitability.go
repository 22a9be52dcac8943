package pipeline

import (
	"fmt"
	"strings"

	"storyreel/internal/config"
	"storyreel/internal/types"
)

// Suitable decides whether a candidate story is worth producing.
// Rejections carry the reason so sweep logs explain every skip.
func Suitable(cfg *config.HuntConfig, item *types.SourceItem) types.Decision {
	body := strings.TrimSpace(item.Body)
	if body == "[removed]" || body == "[deleted]" {
		return types.Rejected("body removed by moderators or author")
	}
	if len(body) < cfg.MinBodyChars {
		return types.Rejected(fmt.Sprintf("body too short: %d chars, need %d", len(body), cfg.MinBodyChars))
	}
	if cfg.MaxBodyChars > 0 && len(body) > cfg.MaxBodyChars {
		return types.Rejected(fmt.Sprintf("body too long: %d chars, cap %d", len(body), cfg.MaxBodyChars))
	}
	if item.Score < cfg.MinScore {
		return types.Rejected(fmt.Sprintf("score %d below %d", item.Score, cfg.MinScore))
	}
	if item.Comments < cfg.MinComments {
		return types.Rejected(fmt.Sprintf("comments %d below %d", item.Comments, cfg.MinComments))
	}
	return types.Approved()
}
