package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
)

/**
DB tables:
- settings:
	- key: text - setting name (channel_id, reminder_time, start_pages, ...)
	- value: text - string-encoded value

- books:
	- id: bigserial - book ID
	- title, author: text
	- total_pages, start_page: int
	- start_date: date - plan start
	- status: smallint - 0 active, 1 paused, 2 finished
	- header_message_id: int - channel header message, null until posted
	- last_read_page: int - monotonically non-decreasing bookmark
	- last_read_date: date - null until the owner reports progress

- reminders:
	- id: bigserial - reminder ID
	- book_id + date: unique pair, the idempotency anchor
	- from_page, to_page: clamped daily range
	- pages_planned: unclamped plan for audit
	- status: smallint - 0 pending, 1 done
	- channel_message_id: int - null until the channel post succeeded
*/

const schema = `
CREATE TABLE IF NOT EXISTS settings(
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS books(
	id                BIGSERIAL PRIMARY KEY,
	title             TEXT NOT NULL,
	author            TEXT NOT NULL,
	total_pages       INT NOT NULL,
	start_page        INT NOT NULL,
	start_date        DATE NOT NULL,
	status            SMALLINT NOT NULL,
	header_message_id INT,
	last_read_page    INT NOT NULL,
	last_read_date    DATE,
	created_at        TIMESTAMPTZ NOT NULL,
	finished_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS reminders(
	id                 BIGSERIAL PRIMARY KEY,
	book_id            BIGINT NOT NULL REFERENCES books(id),
	date               DATE NOT NULL,
	from_page          INT NOT NULL,
	to_page            INT NOT NULL,
	pages_planned      INT NOT NULL,
	status             SMALLINT NOT NULL,
	channel_message_id INT,
	created_at         TIMESTAMPTZ NOT NULL,
	done_at            TIMESTAMPTZ,
	UNIQUE(book_id, date)
);`

var (
	noCtx = context.Background()
	clk   = clock.New()

	// ErrNotFound is returned when the referenced book, reminder or setting
	// doesn't exist. Callers treat it as a benign no-op.
	ErrNotFound = errors.New("not found")
)

// PgxIface is the subset of pgxpool.Pool the repository needs. pgxmock
// implements the same set in tests.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Database struct {
	Conn PgxIface
}

// Init connects to Postgres and applies the schema.
func Init(connStr string) (*Database, error) {
	pool, err := pgxpool.New(noCtx, connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed connecting to database")
	}

	if err = pool.Ping(noCtx); err != nil {
		return nil, errors.Wrap(err, "failed pinging database")
	}

	d := &Database{Conn: pool}
	if _, err = pool.Exec(noCtx, schema); err != nil {
		return nil, errors.Wrap(err, "failed applying schema")
	}

	return d, nil
}

func (d *Database) Close() {
	d.Conn.Close()
}

// EnsureDefaultSettings inserts missing settings without touching existing values.
func (d *Database) EnsureDefaultSettings(defaults map[string]string) error {
	for key, value := range defaults {
		if _, err := d.Conn.Exec(noCtx, `INSERT INTO settings(key, value) VALUES($1, $2)
ON CONFLICT (key) DO NOTHING`, key, value); err != nil {
			return errors.Wrapf(err, "failed ensuring default setting %q", key)
		}
	}
	return nil
}

func (d *Database) GetSetting(key string) (string, error) {
	var value string
	err := d.Conn.QueryRow(noCtx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&value)
	switch {
	case err == pgx.ErrNoRows:
		return "", ErrNotFound
	case err != nil:
		return "", errors.Wrapf(err, "failed fetching setting %q", key)
	}
	return value, nil
}

func (d *Database) SetSetting(key, value string) error {
	if _, err := d.Conn.Exec(noCtx, `INSERT INTO settings(key, value) VALUES($1, $2)
ON CONFLICT (key) DO UPDATE SET value=excluded.value`, key, value); err != nil {
		return errors.Wrapf(err, "failed storing setting %q", key)
	}
	return nil
}

// GetSettings returns the values for the given keys. Missing keys are absent
// from the result rather than an error.
func (d *Database) GetSettings(keys ...string) (map[string]string, error) {
	rows, err := d.Conn.Query(noCtx, `SELECT key, value FROM settings WHERE key=ANY($1)`, keys)
	if err != nil {
		return nil, errors.Wrap(err, "failed fetching settings")
	}
	defer rows.Close()

	values := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err = rows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(err, "failed scanning setting")
		}
		values[key] = value
	}

	return values, rows.Err()
}

// CreateBook inserts a new active book with the bookmark one page before the
// start page, so the first computed range begins at start_page.
func (d *Database) CreateBook(title, author string, totalPages, startPage int, startDate time.Time) (int64, error) {
	var id int64
	err := d.Conn.QueryRow(noCtx, `INSERT INTO books(title, author, total_pages, start_page, start_date,
status, header_message_id, last_read_page, last_read_date, created_at, finished_at)
VALUES($1, $2, $3, $4, $5, $6, NULL, $7, NULL, $8, NULL)
RETURNING id`,
		title, author, totalPages, startPage, startDate, BookActive, startPage-1, clk.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "failed creating book")
	}
	return id, nil
}

// DeleteBook removes a book. Used only to roll back a creation whose channel
// header never made it out.
func (d *Database) DeleteBook(id int64) error {
	if _, err := d.Conn.Exec(noCtx, `DELETE FROM books WHERE id=$1`, id); err != nil {
		return errors.Wrap(err, "failed deleting book")
	}
	return nil
}

func (d *Database) SetBookHeaderMessage(id int64, messageID int) error {
	if _, err := d.Conn.Exec(noCtx, `UPDATE books SET header_message_id=$1 WHERE id=$2`, messageID, id); err != nil {
		return errors.Wrap(err, "failed storing header message ID")
	}
	return nil
}

const bookColumns = `id, title, author, total_pages, start_page, start_date, status,
header_message_id, last_read_page, last_read_date, created_at, finished_at`

func scanBook(row pgx.Row) (*Book, error) {
	var b Book
	var status int16
	var headerMessageID pgtype.Int4
	var lastReadDate pgtype.Date
	var finishedAt pgtype.Timestamptz

	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.TotalPages, &b.StartPage, &b.StartDate,
		&status, &headerMessageID, &b.LastReadPage, &lastReadDate, &b.CreatedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	b.Status = BookStatus(status)
	if headerMessageID.Valid {
		b.HeaderMessageID = int(headerMessageID.Int32)
	}
	if lastReadDate.Valid {
		b.LastReadDate = lastReadDate.Time
	}
	if finishedAt.Valid {
		b.FinishedAt = finishedAt.Time
	}

	return &b, nil
}

func (d *Database) GetBook(id int64) (*Book, error) {
	b, err := scanBook(d.Conn.QueryRow(noCtx, `SELECT `+bookColumns+` FROM books WHERE id=$1`, id))
	switch {
	case err == pgx.ErrNoRows:
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Wrap(err, "failed fetching book")
	}
	return b, nil
}

// ListBooks returns books in the given statuses, newest first.
func (d *Database) ListBooks(statuses ...BookStatus) ([]Book, error) {
	raw := make([]int16, len(statuses))
	for i, s := range statuses {
		raw[i] = int16(s)
	}

	rows, err := d.Conn.Query(noCtx, `SELECT `+bookColumns+` FROM books
WHERE status=ANY($1) ORDER BY id DESC`, raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed listing books")
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed scanning book")
		}
		books = append(books, *b)
	}

	return books, rows.Err()
}

func (d *Database) ActiveBooks() ([]Book, error) {
	return d.ListBooks(BookActive)
}

// SetBookStatus flips a book between active and paused. A finished book is
// terminal and is never touched.
func (d *Database) SetBookStatus(id int64, status BookStatus) error {
	tag, err := d.Conn.Exec(noCtx, `UPDATE books SET status=$1 WHERE id=$2 AND status<>$3`,
		status, id, BookFinished)
	if err != nil {
		return errors.Wrap(err, "failed updating book status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateBookProgress advances the bookmark. The guard keeps last_read_page
// monotone even if two acknowledgments race.
func (d *Database) UpdateBookProgress(id int64, lastReadPage int, lastReadDate time.Time) error {
	if _, err := d.Conn.Exec(noCtx, `UPDATE books SET last_read_page=$1, last_read_date=$2
WHERE id=$3 AND last_read_page<$1`, lastReadPage, lastReadDate, id); err != nil {
		return errors.Wrap(err, "failed updating book progress")
	}
	return nil
}

// FinishBook performs the one-time finish transition. The status predicate
// makes it a compare-and-set: of any number of concurrent callers exactly
// one observes changed=true.
func (d *Database) FinishBook(id int64, finishDate time.Time, lastReadPage int) (bool, error) {
	tag, err := d.Conn.Exec(noCtx, `UPDATE books
SET status=$1, finished_at=$2, last_read_date=$3, last_read_page=GREATEST(last_read_page, $4)
WHERE id=$5 AND status<>$1`, BookFinished, clk.Now().UTC(), finishDate, lastReadPage, id)
	if err != nil {
		return false, errors.Wrap(err, "failed finishing book")
	}
	return tag.RowsAffected() > 0, nil
}

const reminderColumns = `id, book_id, date, from_page, to_page, pages_planned, status,
channel_message_id, created_at, done_at`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var r Reminder
	var status int16
	var channelMessageID pgtype.Int4
	var doneAt pgtype.Timestamptz

	err := row.Scan(&r.ID, &r.BookID, &r.Date, &r.FromPage, &r.ToPage, &r.PagesPlanned,
		&status, &channelMessageID, &r.CreatedAt, &doneAt)
	if err != nil {
		return nil, err
	}

	r.Status = ReminderStatus(status)
	if channelMessageID.Valid {
		r.ChannelMessageID = int(channelMessageID.Int32)
	}
	if doneAt.Valid {
		r.DoneAt = doneAt.Time
	}

	return &r, nil
}

func (d *Database) GetReminder(id int64) (*Reminder, error) {
	r, err := scanReminder(d.Conn.QueryRow(noCtx, `SELECT `+reminderColumns+` FROM reminders WHERE id=$1`, id))
	switch {
	case err == pgx.ErrNoRows:
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Wrap(err, "failed fetching reminder")
	}
	return r, nil
}

func (d *Database) GetReminderByBookAndDate(bookID int64, date time.Time) (*Reminder, error) {
	r, err := scanReminder(d.Conn.QueryRow(noCtx, `SELECT `+reminderColumns+` FROM reminders
WHERE book_id=$1 AND date=$2`, bookID, date))
	switch {
	case err == pgx.ErrNoRows:
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Wrap(err, "failed fetching reminder by book and date")
	}
	return r, nil
}

// LatestReminder returns the most recent reminder of a book, or ErrNotFound.
func (d *Database) LatestReminder(bookID int64) (*Reminder, error) {
	r, err := scanReminder(d.Conn.QueryRow(noCtx, `SELECT `+reminderColumns+` FROM reminders
WHERE book_id=$1 ORDER BY date DESC, id DESC LIMIT 1`, bookID))
	switch {
	case err == pgx.ErrNoRows:
		return nil, ErrNotFound
	case err != nil:
		return nil, errors.Wrap(err, "failed fetching latest reminder")
	}
	return r, nil
}

// CreateOrGetReminder inserts a pending reminder for (bookID, date) or returns
// the existing one. The unique index absorbs the race: concurrent callers for
// the same pair all end up with the same row, created=true for at most one.
func (d *Database) CreateOrGetReminder(bookID int64, date time.Time, fromPage, toPage, pagesPlanned int) (*Reminder, bool, error) {
	tag, err := d.Conn.Exec(noCtx, `INSERT INTO reminders(book_id, date, from_page, to_page,
pages_planned, status, channel_message_id, created_at, done_at)
VALUES($1, $2, $3, $4, $5, $6, NULL, $7, NULL)
ON CONFLICT (book_id, date) DO NOTHING`,
		bookID, date, fromPage, toPage, pagesPlanned, ReminderPending, clk.Now().UTC())
	if err != nil {
		return nil, false, errors.Wrap(err, "failed creating reminder")
	}

	r, err := d.GetReminderByBookAndDate(bookID, date)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed fetching reminder after insert")
	}

	return r, tag.RowsAffected() > 0, nil
}

// SetReminderChannelMessage records the channel message handle after a
// successful post.
func (d *Database) SetReminderChannelMessage(id int64, messageID int) error {
	if _, err := d.Conn.Exec(noCtx, `UPDATE reminders SET channel_message_id=$1 WHERE id=$2`,
		messageID, id); err != nil {
		return errors.Wrap(err, "failed storing reminder message ID")
	}
	return nil
}

// MarkReminderDone transitions a reminder pending -> done, optionally
// overwriting the range with what the owner actually read. The status
// predicate guarantees the transition fires at most once.
func (d *Database) MarkReminderDone(id int64, override *PageRange) (bool, error) {
	var tag pgconn.CommandTag
	var err error
	if override == nil {
		tag, err = d.Conn.Exec(noCtx, `UPDATE reminders SET status=$1, done_at=$2
WHERE id=$3 AND status=$4`, ReminderDone, clk.Now().UTC(), id, ReminderPending)
	} else {
		tag, err = d.Conn.Exec(noCtx, `UPDATE reminders SET status=$1, done_at=$2, from_page=$3, to_page=$4
WHERE id=$5 AND status=$6`, ReminderDone, clk.Now().UTC(), override.From, override.To, id, ReminderPending)
	}
	if err != nil {
		return false, errors.Wrap(err, "failed marking reminder done")
	}
	return tag.RowsAffected() > 0, nil
}
