package tgbot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		raw      string
		from, to int
		wantErr  bool
	}{
		{"80-89", 80, 89, false},
		{"80–89", 80, 89, false},
		{"80 89", 80, 89, false},
		{" 80 - 89 ", 80, 89, false},
		{"1-1", 1, 1, false},
		{"89", 0, 0, true},
		{"a-b", 0, 0, true},
		{"0-10", 0, 0, true},
		{"-5-10", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			from, to, err := parsePageRange(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestParseDateInput(t *testing.T) {
	fallback := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	for _, raw := range []string{"-", "skip", "today", " - "} {
		got, err := parseDateInput(raw, fallback)
		require.NoError(t, err, raw)
		assert.Equal(t, fallback, got, raw)
	}

	got, err := parseDateInput("2026-04-15", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDateInput("15.04.2026", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDateInput("April 15", fallback)
	assert.Error(t, err)
}

func TestSplitCallbackData(t *testing.T) {
	prefix, id, err := splitCallbackData("mark_read:42")
	require.NoError(t, err)
	assert.Equal(t, cbqMarkRead, prefix)
	assert.Equal(t, int64(42), id)

	prefix, id, err = splitCallbackData("settings_edit:reminder_time")
	require.NoError(t, err)
	assert.Equal(t, cbqSettingsEdit, prefix)
	assert.Zero(t, id)

	_, _, err = splitCallbackData("mark_read")
	assert.Error(t, err)

	_, _, err = splitCallbackData("toggle_pause:abc")
	assert.Error(t, err)
}

func TestExtractReminderID(t *testing.T) {
	markup := reminderKeyboard(42, 7, false)
	id, ok := extractReminderID(&markup)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = extractReminderID(nil)
	assert.False(t, ok)

	settings := settingsKeyboard()
	_, ok = extractReminderID(&settings)
	assert.False(t, ok)
}
