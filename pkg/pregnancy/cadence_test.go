package pregnancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextAppointment(t *testing.T) {
	now := day(t, "2024-12-10")
	tests := []struct {
		week     int
		interval int
		until    int
	}{
		{0, 4, 4},
		{10, 4, 2},
		{24, 4, 4},
		{27, 4, 1},
		{28, 2, 2},
		{29, 2, 1},
		{30, 2, 2},
		{35, 2, 1},
		{36, 1, 1},
		{38, 1, 1},
		{44, 1, 1},
	}
	for _, tt := range tests {
		rec, err := NextAppointment(tt.week, now)
		require.NoError(t, err)
		assert.Equal(t, tt.week, rec.CurrentWeek)
		assert.Equal(t, tt.interval, rec.IntervalWeeks, "week %d interval", tt.week)
		assert.Equal(t, tt.until, rec.WeeksUntil, "week %d until", tt.week)
		assert.Equal(t, now.AddDate(0, 0, 7*tt.until), rec.Date, "week %d date", tt.week)
	}
}

func TestNextAppointment_AlwaysAhead(t *testing.T) {
	now := day(t, "2024-12-10")
	for w := 0; w <= 45; w++ {
		rec, err := NextAppointment(w, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, rec.WeeksUntil, 1)
		assert.LessOrEqual(t, rec.WeeksUntil, rec.IntervalWeeks)
		assert.True(t, rec.Date.After(now))
	}
}

func TestNextAppointment_NegativeWeek(t *testing.T) {
	_, err := NextAppointment(-1, day(t, "2024-12-10"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRecommendFromLMP(t *testing.T) {
	now := day(t, "2024-12-10")
	d, rec, err := RecommendFromLMP(day(t, "2024-06-01"), now)
	require.NoError(t, err)
	assert.Equal(t, 27, d.Week)
	assert.Equal(t, 4, rec.IntervalWeeks)
	assert.Equal(t, 1, rec.WeeksUntil)
	assert.Equal(t, "2024-12-17", FormatDate(rec.Date))

	_, _, err = RecommendFromLMP(day(t, "2024-12-11"), now)
	assert.ErrorIs(t, err, ErrInvalidDate)
}
