package publish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/internal/config"
)

func TestNextSlotEmptyScheduleMeansImmediate(t *testing.T) {
	cfg := &config.UploadConfig{Timezone: "UTC"}
	at, err := NextSlot(cfg, time.Now())
	require.NoError(t, err)
	assert.Nil(t, at)
}

func TestNextSlotPicksEarliestFutureSlotToday(t *testing.T) {
	cfg := &config.UploadConfig{
		Schedule: []string{"09:00", "15:00", "21:00"},
		Timezone: "UTC",
	}
	now := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)
	at, err := NextSlot(cfg, now)
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), at.UTC())
}

func TestNextSlotRollsOverToTomorrow(t *testing.T) {
	cfg := &config.UploadConfig{
		Schedule: []string{"09:00", "15:00"},
		Timezone: "UTC",
	}
	now := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	at, err := NextSlot(cfg, now)
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), at.UTC())
}

func TestNextSlotHonorsTimezone(t *testing.T) {
	cfg := &config.UploadConfig{
		Schedule: []string{"12:00"},
		Timezone: "America/New_York",
	}
	// 11:00 New York time, so the noon slot is still ahead
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 11, 0, 0, 0, loc)
	at, err := NextSlot(cfg, now)
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, loc).UTC(), at.UTC())
}

func TestNextSlotBadTimezone(t *testing.T) {
	cfg := &config.UploadConfig{Schedule: []string{"12:00"}, Timezone: "Not/AZone"}
	_, err := NextSlot(cfg, time.Now())
	assert.Error(t, err)
}
