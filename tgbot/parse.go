package tgbot

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	errUnknownRangeFormat = errors.New("use a range like 80-89 or '80 89'")
	errUnknownDateFormat  = errors.New("use YYYY-MM-DD or DD.MM.YYYY")
)

// parsePageRange accepts "80-89", "80–89" or "80 89".
func parsePageRange(raw string) (from, to int, err error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), "–", "-")

	var parts []string
	if strings.Contains(cleaned, "-") {
		parts = strings.SplitN(cleaned, "-", 2)
	} else {
		parts = strings.Fields(cleaned)
	}
	if len(parts) != 2 {
		return 0, 0, errUnknownRangeFormat
	}

	from, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, errUnknownRangeFormat
	}
	to, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, errUnknownRangeFormat
	}
	if from <= 0 || to <= 0 {
		return 0, 0, errUnknownRangeFormat
	}

	return from, to, nil
}

// parseDateInput accepts ISO and DD.MM.YYYY dates; "-", "skip" and "today"
// mean the provided default.
func parseDateInput(raw string, defaultDate time.Time) (time.Time, error) {
	value := strings.TrimSpace(raw)
	switch value {
	case "-", "skip", "today":
		return defaultDate, nil
	}

	for _, layout := range []string{"2006-01-02", "02.01.2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errUnknownDateFormat
}
