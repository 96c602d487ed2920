package scheduler

import (
	"github.com/pkg/errors"

	"github.com/ollayorbek0833/library-manage-bot/db"
)

// Validation and lookup failures reported back to the owner. None of them
// leaves a half-applied mutation behind.
var (
	ErrReminderNotFound = errors.New("reminder not found")
	ErrReminderDone     = errors.New("reminder is already done")
	ErrBookNotFound     = errors.New("book not found")
	ErrRangeOrder       = errors.New("from_page cannot be greater than to_page")
	ErrRangeBeforeStart = errors.New("from_page is before the book's start page")
	ErrRangeBeyondBook  = errors.New("to_page is beyond the book's last page")
	ErrRangeNoProgress  = errors.New("to_page does not advance the bookmark")
)

// CompleteReminder applies the owner's acknowledgment of a reminder, either
// as planned (override == nil) or with the range actually read. It marks the
// reminder done, advances the bookmark, removes the channel notification and
// reconciles completion when the last page was reached.
func (s *Scheduler) CompleteReminder(reminderID int64, override *db.PageRange) error {
	rem, err := s.repo.GetReminder(reminderID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return ErrReminderNotFound
	case err != nil:
		return errors.Wrap(err, "failed fetching reminder")
	}
	if rem.Status == db.ReminderDone {
		return ErrReminderDone
	}

	book, err := s.repo.GetBook(rem.BookID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return ErrBookNotFound
	case err != nil:
		return errors.Wrap(err, "failed fetching book")
	}

	toPage := rem.ToPage
	if override != nil {
		if err := validateOverride(override, book); err != nil {
			return err
		}
		toPage = override.To
	}

	// Conditional on pending: a concurrent acknowledgment loses here and the
	// progress advance below happens exactly once.
	changed, err := s.repo.MarkReminderDone(rem.ID, override)
	if err != nil {
		return errors.Wrap(err, "failed marking reminder done")
	}
	if !changed {
		return ErrReminderDone
	}

	if err := s.repo.UpdateBookProgress(book.ID, toPage, rem.Date); err != nil {
		return errors.Wrap(err, "failed advancing book progress")
	}

	s.deleteChannelMessage(rem)

	if toPage >= book.TotalPages {
		if err := s.FinishIfNeeded(book, rem.Date); err != nil {
			return errors.Wrap(err, "failed finishing book")
		}
	}

	s.logger.Infow("reminder completed", "reminder_id", rem.ID, "book_id", book.ID, "to_page", toPage)
	return nil
}

func validateOverride(r *db.PageRange, book *db.Book) error {
	switch {
	case r.From > r.To:
		return ErrRangeOrder
	case r.From < book.StartPage:
		return ErrRangeBeforeStart
	case r.To > book.TotalPages:
		return ErrRangeBeyondBook
	case r.To <= book.LastReadPage:
		return ErrRangeNoProgress
	}
	return nil
}

// deleteChannelMessage removes the posted notification, best effort.
func (s *Scheduler) deleteChannelMessage(rem *db.Reminder) {
	if rem.ChannelMessageID == 0 {
		return
	}

	channelID, err := s.channelID()
	if err != nil {
		s.logger.Warnw("cannot delete reminder message", "reminder_id", rem.ID, "err", err)
		return
	}

	if err := s.sink.DeleteMessage(channelID, rem.ChannelMessageID); err != nil {
		s.logger.Errorw("failed deleting reminder message", "reminder_id", rem.ID, "err", err)
	}
}
