package pacing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ollayorbek0833/library-manage-bot/db"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDailyRangeGrowsByInterval(t *testing.T) {
	book := &db.Book{
		TotalPages:   300,
		StartPage:    1,
		StartDate:    date(2026, time.March, 1),
		LastReadPage: 0,
	}
	p := DefaultParams()

	tests := []struct {
		name        string
		target      time.Time
		wantFrom    int
		wantTo      int
		wantPlanned int
	}{
		{"first day", date(2026, time.March, 1), 1, 10, 10},
		{"last day of first interval", date(2026, time.March, 7), 1, 10, 10},
		{"second interval", date(2026, time.March, 8), 1, 15, 15},
		{"third interval", date(2026, time.March, 15), 1, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, planned := DailyRange(book, tt.target, p)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
			assert.Equal(t, tt.wantPlanned, planned)
		})
	}
}

func TestDailyRangeStartsAfterLastReadPage(t *testing.T) {
	book := &db.Book{
		TotalPages:   300,
		StartPage:    1,
		StartDate:    date(2026, time.March, 1),
		LastReadPage: 42,
	}

	from, to, planned := DailyRange(book, date(2026, time.March, 3), DefaultParams())
	assert.Equal(t, 43, from)
	assert.Equal(t, 52, to)
	assert.Equal(t, 10, planned)
}

func TestDailyRangeClampsToLastPage(t *testing.T) {
	book := &db.Book{
		TotalPages:   100,
		StartPage:    1,
		StartDate:    date(2026, time.March, 1),
		LastReadPage: 95,
	}

	from, to, planned := DailyRange(book, date(2026, time.March, 2), DefaultParams())
	assert.Equal(t, 96, from)
	assert.Equal(t, 100, to)
	// planned is not clamped, only the range is
	assert.Equal(t, 10, planned)
}

func TestDailyRangeBeyondBookSignalsFinish(t *testing.T) {
	book := &db.Book{
		TotalPages:   100,
		StartPage:    1,
		StartDate:    date(2026, time.March, 1),
		LastReadPage: 100,
	}

	from, to, _ := DailyRange(book, date(2026, time.March, 2), DefaultParams())
	assert.Equal(t, 101, from)
	assert.Greater(t, from, book.TotalPages)
	assert.Equal(t, 100, to)
}

func TestDailyRangeBeforeStartDateUsesFirstInterval(t *testing.T) {
	book := &db.Book{
		TotalPages:   300,
		StartPage:    1,
		StartDate:    date(2026, time.March, 10),
		LastReadPage: 0,
	}

	_, _, planned := DailyRange(book, date(2026, time.March, 5), DefaultParams())
	assert.Equal(t, DefaultStartPages, planned)
}

func TestDailyRangeIgnoresTimeOfDay(t *testing.T) {
	book := &db.Book{
		TotalPages:   300,
		StartPage:    1,
		StartDate:    time.Date(2026, time.March, 1, 23, 59, 0, 0, time.UTC),
		LastReadPage: 0,
	}
	p := DefaultParams()

	morning := time.Date(2026, time.March, 8, 0, 1, 0, 0, time.UTC)
	evening := time.Date(2026, time.March, 8, 23, 0, 0, 0, time.UTC)

	f1, t1, p1 := DailyRange(book, morning, p)
	f2, t2, p2 := DailyRange(book, evening, p)
	assert.Equal(t, f1, f2)
	assert.Equal(t, t1, t2)
	assert.Equal(t, p1, p2)
	assert.Equal(t, 15, p1)
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   Params
	}{
		{
			name:   "all missing",
			values: map[string]string{},
			want:   DefaultParams(),
		},
		{
			name: "all set",
			values: map[string]string{
				KeyStartPages:         "12",
				KeyWeeklyIncrement:    "3",
				KeyIncrementEveryDays: "5",
			},
			want: Params{StartPages: 12, WeeklyIncrement: 3, IncrementEveryDays: 5},
		},
		{
			name: "malformed falls back per key",
			values: map[string]string{
				KeyStartPages:         "abc",
				KeyWeeklyIncrement:    "8",
				KeyIncrementEveryDays: "0",
			},
			want: Params{StartPages: DefaultStartPages, WeeklyIncrement: 8, IncrementEveryDays: DefaultIncrementEveryDays},
		},
		{
			name: "negative falls back",
			values: map[string]string{
				KeyStartPages: "-4",
			},
			want: DefaultParams(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseParams(tt.values, testLogger()))
		})
	}
}
