package hunt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopWindowFromLookbackDays(t *testing.T) {
	cases := []struct {
		days int
		want string
	}{
		{0, "week"},
		{1, "day"},
		{3, "week"},
		{7, "week"},
		{14, "month"},
		{31, "month"},
		{90, "year"},
		{365, "year"},
		{1000, "all"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, topWindow(tc.days), "lookback of %d days", tc.days)
	}
}
