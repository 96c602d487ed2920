package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollayorbek0833/library-manage-bot/db"
)

// seedPostedReminder runs the scheduler once so the reminder exists exactly
// the way production creates it.
func seedPostedReminder(t *testing.T, repo *fakeRepo, sink *fakeSink, s *Scheduler, date time.Time) *db.Reminder {
	t.Helper()
	s.RunForDate(date)
	require.Len(t, sink.posts, 1)
	rem := repo.reminders[sink.posts[0].reminderID]
	require.NotNil(t, rem)
	return rem
}

func TestCompleteReminderAsPlanned(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[KeyChannelID] = "-100123"
	book := repo.addBook(activeBook(1, 300, 0, day(2026, time.March, 1)))
	sink := &fakeSink{}
	s := newTestScheduler(repo, sink)
	rem := seedPostedReminder(t, repo, sink, s, day(2026, time.March, 1))

	err := s.CompleteReminder(rem.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, db.ReminderDone, rem.Status)
	assert.Equal(t, 10, book.LastReadPage)
	assert.Equal(t, day(2026, time.March, 1), book.LastReadDate)
	assert.Equal(t, []int{rem.ChannelMessageID}, sink.deleted)
	assert.Equal(t, db.BookActive, book.Status)
}

func TestCompleteReminderTwiceFails(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[KeyChannelID] = "-100123"
	book := repo.addBook(activeBook(1, 300, 0, day(2026, time.March, 1)))
	sink := &fakeSink{}
	s := newTestScheduler(repo, sink)
	rem := seedPostedReminder(t, repo, sink, s, day(2026, time.March, 1))

	require.NoError(t, s.CompleteReminder(rem.ID, nil))
	err := s.CompleteReminder(rem.ID, nil)
	assert.ErrorIs(t, err, ErrReminderDone)

	// Bookmark moved exactly once.
	assert.Equal(t, 10, book.LastReadPage)
	assert.Len(t, sink.deleted, 1)
}

func TestCompleteReminderWithOverride(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[KeyChannelID] = "-100123"
	book := repo.addBook(activeBook(1, 300, 0, day(2026, time.March, 1)))
	sink := &fakeSink{}
	s := newTestScheduler(repo, sink)
	rem := seedPostedReminder(t, repo, sink, s, day(2026, time.March, 1))

	err := s.CompleteReminder(rem.ID, &db.PageRange{From: 1, To: 25})
	require.NoError(t, err)

	assert.Equal(t, db.ReminderDone, rem.Status)
	assert.Equal(t, 25, rem.ToPage)
	assert.Equal(t, 25, book.LastReadPage)
}

func TestCompleteReminderOverrideValidation(t *testing.T) {
	tests := []struct {
		name     string
		override db.PageRange
		wantErr  error
	}{
		{"from after to", db.PageRange{From: 30, To: 20}, ErrRangeOrder},
		{"from before start page", db.PageRange{From: 0, To: 10}, ErrRangeBeforeStart},
		{"to beyond book", db.PageRange{From: 1, To: 400}, ErrRangeBeyondBook},
		{"no forward progress", db.PageRange{From: 40, To: 50}, ErrRangeNoProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.settings[KeyChannelID] = "-100123"
			book := repo.addBook(activeBook(1, 300, 50, day(2026, time.March, 1)))
			sink := &fakeSink{}
			s := newTestScheduler(repo, sink)
			rem := seedPostedReminder(t, repo, sink, s, day(2026, time.March, 2))

			err := s.CompleteReminder(rem.ID, &tt.override)
			assert.ErrorIs(t, err, tt.wantErr)

			// Nothing was mutated by the rejected attempt.
			assert.Equal(t, db.ReminderPending, rem.Status)
			assert.Equal(t, 50, book.LastReadPage)
			assert.Empty(t, sink.deleted)
		})
	}
}

func TestCompleteReminderFinishesBookOnLastPage(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[KeyChannelID] = "-100123"
	book := repo.addBook(activeBook(1, 100, 95, day(2026, time.March, 1)))
	sink := &fakeSink{}
	s := newTestScheduler(repo, sink)
	rem := seedPostedReminder(t, repo, sink, s, day(2026, time.March, 2))
	assert.Equal(t, 100, rem.ToPage)

	err := s.CompleteReminder(rem.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, db.BookFinished, book.Status)
	assert.Equal(t, 100, book.LastReadPage)
	require.Len(t, sink.texts, 1)
	assert.Contains(t, sink.texts[0], "Finished")
	require.Len(t, sink.edits, 1)
}

func TestCompleteReminderUnknownID(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[KeyChannelID] = "-100123"
	s := newTestScheduler(repo, &fakeSink{})

	err := s.CompleteReminder(42, nil)
	assert.ErrorIs(t, err, ErrReminderNotFound)
}

func TestCompleteReminderDeleteSkippedWithoutMessage(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[KeyChannelID] = "-100123"
	book := repo.addBook(activeBook(1, 300, 0, day(2026, time.March, 1)))
	sink := &fakeSink{failPosts: true}
	s := newTestScheduler(repo, sink)
	s.RunForDate(day(2026, time.March, 1))

	var rem *db.Reminder
	for _, r := range repo.reminders {
		rem = r
	}
	require.NotNil(t, rem)
	require.Zero(t, rem.ChannelMessageID)

	err := s.CompleteReminder(rem.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, book.LastReadPage)
	assert.Empty(t, sink.deleted)
}
