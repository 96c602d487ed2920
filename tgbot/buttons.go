package tgbot

import (
	"fmt"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes. The numeric suffix is the reminder or book ID.
const (
	cbqMarkRead      = "mark_read"
	cbqReadDifferent = "read_different"
	cbqTogglePause   = "toggle_pause"
	cbqSettingsEdit  = "settings_edit"
)

func reminderKeyboard(reminderID, bookID int64, paused bool) tg.InlineKeyboardMarkup {
	pauseLabel := "⏸️ Pause"
	if paused {
		pauseLabel = "▶️ Resume"
	}

	return tg.NewInlineKeyboardMarkup(
		tg.NewInlineKeyboardRow(
			tg.NewInlineKeyboardButtonData("✅ Mark as read", fmt.Sprintf("%s:%d", cbqMarkRead, reminderID)),
		),
		tg.NewInlineKeyboardRow(
			tg.NewInlineKeyboardButtonData("✍️ I read different pages", fmt.Sprintf("%s:%d", cbqReadDifferent, reminderID)),
		),
		tg.NewInlineKeyboardRow(
			tg.NewInlineKeyboardButtonData(pauseLabel, fmt.Sprintf("%s:%d", cbqTogglePause, bookID)),
		),
	)
}

func settingsKeyboard() tg.InlineKeyboardMarkup {
	row := func(key string) []tg.InlineKeyboardButton {
		return tg.NewInlineKeyboardRow(
			tg.NewInlineKeyboardButtonData("Edit "+key, cbqSettingsEdit+":"+key),
		)
	}

	return tg.NewInlineKeyboardMarkup(
		row("reminder_time"),
		row("start_pages"),
		row("weekly_increment"),
		row("increment_every_days"),
	)
}
