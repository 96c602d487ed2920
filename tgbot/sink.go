package tgbot

import (
	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// The scheduler.Sink implementation. Channel calls are single attempt: the
// scheduler treats a failure as recoverable and a later run retries the post,
// so retrying here would only risk duplicates.

func (b *TBot) PostReminder(channelID int64, text string, reminderID, bookID int64) (int, error) {
	m := tg.NewMessage(channelID, text)
	m.ReplyMarkup = reminderKeyboard(reminderID, bookID, false)

	sent, err := b.Bot.Send(m)
	if err != nil {
		return 0, errors.Wrap(err, "failed posting reminder message")
	}
	return sent.MessageID, nil
}

func (b *TBot) PostText(channelID int64, text string) error {
	_, err := b.postText(channelID, text)
	return err
}

func (b *TBot) postText(chatID int64, text string) (int, error) {
	sent, err := b.Bot.Send(tg.NewMessage(chatID, text))
	if err != nil {
		return 0, errors.Wrap(err, "failed posting message")
	}
	return sent.MessageID, nil
}

func (b *TBot) EditText(channelID int64, messageID int, text string) error {
	if _, err := b.Bot.Request(tg.NewEditMessageText(channelID, messageID, text)); err != nil {
		return errors.Wrap(err, "failed editing message")
	}
	return nil
}

func (b *TBot) DeleteMessage(channelID int64, messageID int) error {
	if _, err := b.Bot.Request(tg.NewDeleteMessage(channelID, messageID)); err != nil {
		return errors.Wrap(err, "failed deleting message")
	}
	return nil
}
