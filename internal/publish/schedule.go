package publish

import (
	"fmt"
	"time"

	"storyreel/internal/config"
)

// NextSlot returns the next publish time from the configured daily
// schedule, strictly after now. With an empty schedule it returns nil,
// meaning publish immediately.
func NextSlot(cfg *config.UploadConfig, now time.Time) (*time.Time, error) {
	if len(cfg.Schedule) == 0 {
		return nil, nil
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	local := now.In(loc)

	var best *time.Time
	// scan today and tomorrow; the earliest future slot wins
	for day := 0; day < 2; day++ {
		date := local.AddDate(0, 0, day)
		for _, slot := range cfg.Schedule {
			t, err := time.ParseInLocation("15:04", slot, loc)
			if err != nil {
				return nil, fmt.Errorf("parse schedule slot %q: %w", slot, err)
			}
			at := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
			if !at.After(local) {
				continue
			}
			if best == nil || at.Before(*best) {
				v := at
				best = &v
			}
		}
		if best != nil {
			break
		}
	}
	return best, nil
}
