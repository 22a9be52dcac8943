package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"storyreel/internal/config"
	"storyreel/internal/types"
)

func suitabilityConfig() *config.HuntConfig {
	return &config.HuntConfig{
		MinScore:     100,
		MinComments:  10,
		MinBodyChars: 50,
		MaxBodyChars: 500,
	}
}

func TestSuitableApprovesGoodStory(t *testing.T) {
	item := &types.SourceItem{
		Body:     strings.Repeat("word ", 30),
		Score:    500,
		Comments: 40,
	}
	d := Suitable(suitabilityConfig(), item)
	assert.True(t, d.Approved)
	assert.Empty(t, d.Reason)
}

func TestSuitableRejections(t *testing.T) {
	cases := []struct {
		name   string
		item   *types.SourceItem
		reason string
	}{
		{
			name:   "removed body",
			item:   &types.SourceItem{Body: "[removed]", Score: 500, Comments: 40},
			reason: "removed",
		},
		{
			name:   "deleted body",
			item:   &types.SourceItem{Body: "  [deleted]  ", Score: 500, Comments: 40},
			reason: "removed",
		},
		{
			name:   "too short",
			item:   &types.SourceItem{Body: "short", Score: 500, Comments: 40},
			reason: "too short",
		},
		{
			name:   "too long",
			item:   &types.SourceItem{Body: strings.Repeat("x", 600), Score: 500, Comments: 40},
			reason: "too long",
		},
		{
			name:   "low score",
			item:   &types.SourceItem{Body: strings.Repeat("word ", 30), Score: 10, Comments: 40},
			reason: "score",
		},
		{
			name:   "few comments",
			item:   &types.SourceItem{Body: strings.Repeat("word ", 30), Score: 500, Comments: 2},
			reason: "comments",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Suitable(suitabilityConfig(), tc.item)
			assert.False(t, d.Approved)
			assert.Contains(t, d.Reason, tc.reason)
		})
	}
}
