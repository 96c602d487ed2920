// Package scheduler drives the daily reading reminders: one run per calendar
// day per book, with the (book, date) reminder row as the idempotency anchor
// so that restarts and overlapping runs never double-post or drop a day.
package scheduler

import (
	"strconv"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ollayorbek0833/library-manage-bot/db"
	"github.com/ollayorbek0833/library-manage-bot/pacing"
)

// Settings table keys owned by the scheduler.
const (
	KeyChannelID    = "channel_id"
	KeyReminderTime = "reminder_time"
)

const (
	defaultHour   = 8
	defaultMinute = 0

	schedulerTick = 20 * time.Second
)

var clk = clock.New()

// Repository is the durable store the scheduler runs against. *db.Database
// implements it; tests use an in-memory fake.
type Repository interface {
	GetSetting(key string) (string, error)
	GetSettings(keys ...string) (map[string]string, error)
	ActiveBooks() ([]db.Book, error)
	GetBook(id int64) (*db.Book, error)
	GetReminder(id int64) (*db.Reminder, error)
	CreateOrGetReminder(bookID int64, date time.Time, fromPage, toPage, pagesPlanned int) (*db.Reminder, bool, error)
	SetReminderChannelMessage(id int64, messageID int) error
	MarkReminderDone(id int64, override *db.PageRange) (bool, error)
	UpdateBookProgress(id int64, lastReadPage int, lastReadDate time.Time) error
	FinishBook(id int64, finishDate time.Time, lastReadPage int) (bool, error)
}

// Sink posts, edits and deletes channel messages. Every call may fail
// independently; the scheduler logs the failure and moves on.
type Sink interface {
	PostReminder(channelID int64, text string, reminderID, bookID int64) (int, error)
	PostText(channelID int64, text string) error
	EditText(channelID int64, messageID int, text string) error
	DeleteMessage(channelID int64, messageID int) error
}

type Scheduler struct {
	repo   Repository
	sink   Sink
	logger *zap.SugaredLogger
	loc    *time.Location

	mu     sync.Mutex
	nextAt time.Time
}

func New(repo Repository, sink Sink, loc *time.Location, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		repo:   repo,
		sink:   sink,
		logger: logger,
		loc:    loc,
	}
}

// Run installs the recurring trigger and blocks, firing RunForToday whenever
// the wall clock passes the configured HH:MM. One run is triggered
// immediately so a restart still produces today's reminders.
func (s *Scheduler) Run() {
	s.Refresh()
	s.RunForToday()

	ch := time.NewTicker(schedulerTick).C
	for range ch {
		s.mu.Lock()
		at := s.nextAt
		s.mu.Unlock()

		if clk.Now().Before(at) {
			continue
		}

		// Re-reading the setting here picks up edits made since the last
		// fire, in addition to explicit Refresh calls.
		s.Refresh()
		s.RunForToday()
	}
}

// Refresh re-reads the reminder_time setting and schedules the next trigger.
// Invalid or missing values fall back to 08:00 rather than stopping the loop.
func (s *Scheduler) Refresh() {
	hour, minute := defaultHour, defaultMinute

	raw, err := s.repo.GetSetting(KeyReminderTime)
	switch {
	case errors.Is(err, db.ErrNotFound):
		// defaults
	case err != nil:
		s.logger.Errorw("failed reading reminder_time, using default", "err", err)
	default:
		if h, m, err := ParseTimeHHMM(raw); err != nil {
			s.logger.Warnf("invalid reminder_time %q, falling back to %02d:%02d", raw, defaultHour, defaultMinute)
		} else {
			hour, minute = h, m
		}
	}

	now := clk.Now().In(s.loc)
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.loc)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}

	s.mu.Lock()
	s.nextAt = at
	s.mu.Unlock()

	s.logger.Infof("reminder schedule set to %02d:%02d, next run at %s", hour, minute, at.Format(time.RFC3339))
}

// NextRun reports the currently scheduled trigger instant.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextAt
}

func (s *Scheduler) RunForToday() {
	s.RunForDate(truncateDay(clk.Now().In(s.loc)))
}

// RunForDate visits every active book and ensures exactly one reminder exists
// and has been posted for (book, date), or that the book has been finished
// when no pages remain. Safe to call repeatedly for the same date.
func (s *Scheduler) RunForDate(date time.Time) {
	channelID, err := s.channelID()
	if err != nil {
		s.logger.Warnw("skipping reminders run", "err", err)
		return
	}

	// One settings snapshot for the whole run; books processed mid-run are
	// not affected by a concurrent settings edit.
	values, err := s.repo.GetSettings(pacing.KeyStartPages, pacing.KeyWeeklyIncrement, pacing.KeyIncrementEveryDays)
	if err != nil {
		s.logger.Errorw("failed fetching pacing settings, using defaults", "err", err)
	}
	params := pacing.ParseParams(values, s.logger)

	books, err := s.repo.ActiveBooks()
	if err != nil {
		s.logger.Errorw("failed fetching active books", "err", err)
		return
	}

	s.logger.Infof("running reminders for %s, active books: %d", date.Format("2006-01-02"), len(books))

	for i := range books {
		book := &books[i]
		if err := s.processBook(book, date, channelID, params); err != nil {
			// One broken book must not silence the others.
			s.logger.Errorw("failed processing book", "book_id", book.ID, "err", err)
		}
	}
}

func (s *Scheduler) processBook(book *db.Book, date time.Time, channelID int64, params pacing.Params) error {
	if dayBefore(date, book.StartDate) {
		return nil
	}

	if book.LastReadPage >= book.TotalPages {
		return s.FinishIfNeeded(book, date)
	}

	fromPage, toPage, pagesPlanned := pacing.DailyRange(book, date, params)

	if fromPage > book.TotalPages {
		// Plan exhausted by clamping: nothing left to assign.
		return s.FinishIfNeeded(book, date)
	}

	// The row is persisted before the post attempt: a crash between the two
	// loses only the notification, never the plan, and the next run retries.
	rem, _, err := s.repo.CreateOrGetReminder(book.ID, date, fromPage, toPage, pagesPlanned)
	if err != nil {
		return err
	}

	if rem.Status != db.ReminderPending || rem.ChannelMessageID != 0 {
		// Already handled on an earlier run.
		return nil
	}

	messageID, err := s.sink.PostReminder(channelID, BuildReminderText(rem.Date, rem.FromPage, rem.ToPage), rem.ID, rem.BookID)
	if err != nil {
		// Leave the reminder pending and handle-less so a later run posts it.
		s.logger.Errorw("failed posting reminder", "book_id", book.ID, "reminder_id", rem.ID, "err", err)
		return nil
	}

	if err := s.repo.SetReminderChannelMessage(rem.ID, messageID); err != nil {
		return err
	}

	s.logger.Infow("posted reminder", "book_id", book.ID, "reminder_id", rem.ID, "message_id", messageID)
	return nil
}

// FinishIfNeeded attempts the one-time finish transition and, when the state
// actually changed, fans out the channel notifications. Notification failures
// are logged and never roll back the transition.
func (s *Scheduler) FinishIfNeeded(book *db.Book, finishDate time.Time) error {
	changed, err := s.repo.FinishBook(book.ID, finishDate, book.TotalPages)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.logger.Infow("book finished", "book_id", book.ID, "title", book.Title)

	channelID, err := s.channelID()
	if err != nil {
		s.logger.Warnw("book finished but channel is not available", "book_id", book.ID, "err", err)
		return nil
	}

	if book.HeaderMessageID != 0 {
		header := BuildHeaderText(book.Title, book.Author, book.StartDate, &finishDate)
		if err := s.sink.EditText(channelID, book.HeaderMessageID, header); err != nil {
			s.logger.Errorw("failed editing header message", "book_id", book.ID, "err", err)
		}
	}

	if err := s.sink.PostText(channelID, BuildFinishText(book.Title, book.Author)); err != nil {
		s.logger.Errorw("failed posting finish message", "book_id", book.ID, "err", err)
	}

	return nil
}

func (s *Scheduler) channelID() (int64, error) {
	raw, err := s.repo.GetSetting(KeyChannelID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return 0, errors.New("channel_id is not configured")
	case err != nil:
		return 0, errors.Wrap(err, "failed fetching channel_id")
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("channel_id is invalid (%s)", raw)
	}
	return id, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dayBefore(a, b time.Time) bool {
	return truncateDay(a).Before(truncateDay(b))
}
