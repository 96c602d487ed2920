// Package pacing computes the daily page range for a book. The calculation
// is pure: the same book, date and parameters always produce the same range.
package pacing

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ollayorbek0833/library-manage-bot/db"
)

// Fallbacks used when a pacing setting is missing or malformed. Scheduling
// keeps running on these rather than halting.
const (
	DefaultStartPages         = 10
	DefaultWeeklyIncrement    = 5
	DefaultIncrementEveryDays = 7
)

// Settings table keys recognized by ParseParams.
const (
	KeyStartPages         = "start_pages"
	KeyWeeklyIncrement    = "weekly_increment"
	KeyIncrementEveryDays = "increment_every_days"
)

// Params control how fast the daily assignment grows.
type Params struct {
	StartPages         int // pages per day during the first interval
	WeeklyIncrement    int // extra pages added every interval
	IncrementEveryDays int // interval length in days
}

func DefaultParams() Params {
	return Params{
		StartPages:         DefaultStartPages,
		WeeklyIncrement:    DefaultWeeklyIncrement,
		IncrementEveryDays: DefaultIncrementEveryDays,
	}
}

// ParseParams reads string-encoded pacing settings, falling back per key on
// missing, non-numeric or non-positive values.
func ParseParams(values map[string]string, logger *zap.SugaredLogger) Params {
	return Params{
		StartPages:         parsePositiveInt(values[KeyStartPages], DefaultStartPages, logger),
		WeeklyIncrement:    parsePositiveInt(values[KeyWeeklyIncrement], DefaultWeeklyIncrement, logger),
		IncrementEveryDays: parsePositiveInt(values[KeyIncrementEveryDays], DefaultIncrementEveryDays, logger),
	}
}

func parsePositiveInt(raw string, fallback int, logger *zap.SugaredLogger) int {
	if raw == "" {
		return fallback
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warnf("invalid pacing setting %q, using %d", raw, fallback)
		return fallback
	}
	if val <= 0 {
		logger.Warnf("non-positive pacing setting %q, using %d", raw, fallback)
		return fallback
	}
	return val
}

// DailyRange returns the page range due on targetDate. The plan grows by
// WeeklyIncrement every IncrementEveryDays since the book's start date, the
// longer the book runs the bigger the daily bite. The range is clamped to the
// last page and is not re-expanded when clamping shortens it; pagesPlanned
// stays unclamped for audit.
//
// When fromPage > book.TotalPages the book is already fully read and the
// caller must treat the result as a finish signal, not an error.
func DailyRange(book *db.Book, targetDate time.Time, p Params) (fromPage, toPage, pagesPlanned int) {
	deltaDays := wholeDays(book.StartDate, targetDate)

	weekIndex := deltaDays / p.IncrementEveryDays
	if weekIndex < 0 {
		weekIndex = 0
	}

	pagesPlanned = p.StartPages + p.WeeklyIncrement*weekIndex
	fromPage = book.LastReadPage + 1
	toPage = fromPage + pagesPlanned - 1
	if toPage > book.TotalPages {
		toPage = book.TotalPages
	}

	return fromPage, toPage, pagesPlanned
}

// wholeDays counts calendar days from a to b, ignoring the time of day and
// any DST offset between them.
func wholeDays(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
