package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/internal/config"
)

func testLibrary(t *testing.T, cfg *config.AssetsConfig) *Library {
	t.Helper()
	lib, err := NewLibrary(cfg, t.TempDir(), t.TempDir(), hclog.NewNullLogger())
	require.NoError(t, err)
	return lib
}

func TestRefillNoOpWhileStocked(t *testing.T) {
	cfg := &config.AssetsConfig{
		MinSegmentBytes: 4,
		RefillThreshold: 1,
		SourceURLs:      []string{"https://example.invalid/never-called"},
	}
	lib := testLibrary(t, cfg)
	seg := filepath.Join(lib.segmentsDir, "stock_seg001.mp4")
	require.NoError(t, os.WriteFile(seg, []byte("mp4 data"), 0o644))

	assert.NoError(t, lib.Refill(context.Background()))
}

func TestRefillNoOpWithoutSources(t *testing.T) {
	cfg := &config.AssetsConfig{RefillThreshold: 3}
	lib := testLibrary(t, cfg)

	assert.NoError(t, lib.Refill(context.Background()))
}

func TestRefillErrorsWhenEverySourceSpent(t *testing.T) {
	url := "https://example.invalid/video"
	cfg := &config.AssetsConfig{
		RefillThreshold: 3,
		SourceURLs:      []string{url},
	}
	lib := testLibrary(t, cfg)
	require.NoError(t, os.WriteFile(filepath.Join(lib.rawDir, ".downloaded"), []byte(url+"\n"), 0o644))

	err := lib.Refill(context.Background())
	assert.Error(t, err)
}
