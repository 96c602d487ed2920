package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const displayDateLayout = "02.01.2006"

var errBadTimeFormat = errors.New("time must be in HH:MM 24-hour format")

// FormatDisplayDate renders a date the way it appears in channel messages.
func FormatDisplayDate(t time.Time) string {
	return t.Format(displayDateLayout)
}

// BuildHeaderText renders the per-book channel header. The finish date shows
// as "..." until the book is finished.
func BuildHeaderText(title, author string, startDate time.Time, finishDate *time.Time) string {
	finish := "..."
	if finishDate != nil {
		finish = FormatDisplayDate(*finishDate)
	}
	return fmt.Sprintf("📚 %s — %s (%s → %s)", title, author, FormatDisplayDate(startDate), finish)
}

// BuildReminderText renders a day's page assignment.
func BuildReminderText(date time.Time, fromPage, toPage int) string {
	return fmt.Sprintf("📅 %s — Read pages %d–%d", FormatDisplayDate(date), fromPage, toPage)
}

// BuildFinishText renders the completion announcement.
func BuildFinishText(title, author string) string {
	return fmt.Sprintf("✅ Finished: %s — %s", title, author)
}

// ParseTimeHHMM parses a 24-hour "HH:MM" string.
func ParseTimeHHMM(raw string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, 0, errBadTimeFormat
	}

	hour, err = validateInt(parts[0], 0, 23)
	if err != nil {
		return 0, 0, errBadTimeFormat
	}

	minute, err = validateInt(parts[1], 0, 59)
	if err != nil {
		return 0, 0, errBadTimeFormat
	}

	return hour, minute, nil
}

func validateInt(txt string, min int, max int) (int, error) {
	val, err := strconv.Atoi(strings.TrimSpace(txt))
	if err != nil {
		return 0, err
	}

	if val < min || val > max {
		return 0, errors.New("value is out of range")
	}
	return val, nil
}
