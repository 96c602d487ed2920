package db

import "time"

// Book statuses. Stored as smallint; Finished is terminal.
const (
	BookActive BookStatus = iota
	BookPaused
	BookFinished
)

// Reminder statuses. A reminder goes pending -> done exactly once.
const (
	ReminderPending ReminderStatus = iota
	ReminderDone
)

type BookStatus uint

// CanTransitionTo is the single place that knows which book status changes
// are legal. Finished accepts nothing.
func (s BookStatus) CanTransitionTo(t BookStatus) bool {
	switch s {
	case BookActive:
		return t == BookPaused || t == BookFinished
	case BookPaused:
		return t == BookActive || t == BookFinished
	default:
		return false
	}
}

func (s BookStatus) String() string {
	switch s {
	case BookActive:
		return "active"
	case BookPaused:
		return "paused"
	case BookFinished:
		return "finished"
	}
	return "unknown"
}

type ReminderStatus uint

func (s ReminderStatus) CanTransitionTo(t ReminderStatus) bool {
	return s == ReminderPending && t == ReminderDone
}

func (s ReminderStatus) String() string {
	switch s {
	case ReminderPending:
		return "pending"
	case ReminderDone:
		return "done"
	}
	return "unknown"
}

// A Book is one tracked reading goal. LastReadPage starts at StartPage-1 and
// never decreases; HeaderMessageID is 0 until the channel header is posted.
type Book struct {
	ID              int64
	Title           string
	Author          string
	TotalPages      int
	StartPage       int
	StartDate       time.Time
	Status          BookStatus
	HeaderMessageID int
	LastReadPage    int
	LastReadDate    time.Time // zero when the owner has not reported yet
	CreatedAt       time.Time
	FinishedAt      time.Time // zero until finished
}

// A Reminder is one day's page assignment for a book. The (BookID, Date)
// pair is unique; ChannelMessageID is 0 until the channel post succeeded.
type Reminder struct {
	ID               int64
	BookID           int64
	Date             time.Time
	FromPage         int
	ToPage           int
	PagesPlanned     int // unclamped plan, kept for audit even when the range is clamped
	Status           ReminderStatus
	ChannelMessageID int
	CreatedAt        time.Time
	DoneAt           time.Time // zero while pending
}

// PageRange is an owner-reported correction applied at the done transition.
type PageRange struct {
	From int
	To   int
}
