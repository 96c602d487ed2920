package tgbot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ollayorbek0833/library-manage-bot/db"
	"github.com/ollayorbek0833/library-manage-bot/pacing"
	"github.com/ollayorbek0833/library-manage-bot/scheduler"
)

type Stage int

const (
	stageIdle Stage = iota
	stageNewBookTitle
	stageNewBookAuthor
	stageNewBookTotalPages
	stageNewBookStartDate
	stageNewBookStartPage
	stageReadRange
	stageSettingValue
)

const (
	txtHelpMessage = `Reading tracker commands:
/setchannel <channel_id> - set target channel ID
/newbook - start new book wizard
/list - list active and paused books
/progress <book_id> - show detailed progress
/pause <book_id> - pause reminders for a book
/resume <book_id> - resume reminders for a book
/settings - show and edit reminder settings
/cancel - cancel pending input`
	txtAccessDenied        = "Access denied."
	txtUsePrivateChat      = "Use this command in private chat."
	txtUnknownCommand      = "I don't know this command. Use /start to list commands."
	txtChannelUsage        = "Usage: /setchannel -1001234567890"
	txtChannelMustBeInt    = "channel_id must be a numeric ID like -100..."
	txtSetChannelFirst     = "Set channel first using /setchannel <channel_id>."
	txtEnterTitle          = "Enter book title:"
	txtTitleEmpty          = "Title cannot be empty. Enter book title:"
	txtEnterAuthor         = "Enter author:"
	txtAuthorEmpty         = "Author cannot be empty. Enter author:"
	txtEnterTotalPages     = "Enter total pages (integer):"
	txtTotalPagesInvalid   = "total_pages must be a positive integer."
	txtEnterStartDate      = "Enter start date (YYYY-MM-DD or DD.MM.YYYY), or '-' to use today:"
	txtEnterStartPage      = "Enter start page, or '-' to use 1:"
	txtStartPageInvalid    = "start_page must be an integer or '-'."
	txtHeaderPostFailed    = "Failed to post header to channel. Ensure bot is admin with post permission."
	txtNothingToCancel     = "Nothing to cancel."
	txtCancelledPending    = "Cancelled pending input."
	txtNoBooks             = "No active or paused books."
	txtBookIDUsage         = "book_id must be an integer."
	txtBookNotFound        = "Book not found."
	txtBookFinished        = "Book is already finished."
	txtReminderNotFound    = "Reminder not found."
	txtReminderAlreadyDone = "Reminder already done."
	txtMarkedAsRead        = "Marked as read."
	txtNotAllowed          = "Not allowed."
	txtOpenPrivateChat     = "Open private chat with the bot first."
	txtSendActualPages     = "Send actual pages in private chat."
	txtDatabaseTrouble     = "Something went wrong, try again later."

	fmtStartPageRange    = "start_page must be between 1 and %d."
	fmtChannelSaved      = "Channel saved: %d"
	fmtBookStatusChanged = "Book #%d is now %s."
	fmtBookAlready       = "Book is already %s."
	fmtSettingUpdated    = "Updated %s = %s"
	fmtReadRangePrompt   = "Reminder #%d: send actual page range.\nExample: 83-95\nUse /cancel to abort."
	fmtSettingPrompt     = "Send new value for %s.\nExamples:\n- reminder_time: 08:00\n- start_pages: 10\n- weekly_increment: 5\n- increment_every_days: 7\nUse /cancel to abort."
	fmtBookCreated       = "Book created.\nID: %d\n%s — %s\nStart: %s\nProgress: %d/%d"
	fmtSavedActualPages  = "Saved actual pages: %d-%d for reminder #%d."
)

type bookDraft struct {
	title      string
	author     string
	totalPages int
	startDate  time.Time
}

type state struct {
	stage      Stage
	draft      bookDraft
	reminderID int64
	settingKey string
}

type TBot struct {
	Bot           *tg.BotAPI
	DB            *db.Database
	Scheduler     *scheduler.Scheduler
	Logger        *zap.SugaredLogger
	Owner         int64
	Location      *time.Location
	RetryAttempts int
	RetryDelay    time.Duration
	states        map[int64]*state
}

func NewTBot(tgToken string, owner int64, d *db.Database, loc *time.Location, l *zap.SugaredLogger) (*TBot, error) {
	b, err := tg.NewBotAPI(tgToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Telegram Bot")
	}

	b.Debug = false

	l.Infof("authorized on account %q (%q, %d)", b.Self.FirstName, b.Self.UserName, b.Self.ID)

	return &TBot{
		Bot:           b,
		DB:            d,
		Logger:        l,
		Owner:         owner,
		Location:      loc,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
		states:        make(map[int64]*state),
	}, nil
}

// Run consumes the updates channel until it is closed.
func (b *TBot) Run() {
	uCfg := tg.NewUpdate(0)
	uCfg.Timeout = 60

	for u := range b.Bot.GetUpdatesChan(uCfg) {
		switch {
		case u.CallbackQuery != nil:
			b.HandleCallback(u.CallbackQuery)
		case u.Message != nil && u.Message.IsCommand():
			b.HandleCommand(u.Message)
		case u.Message != nil:
			b.HandleMessage(u.Message)
		}
	}
}

func (b *TBot) ownerState() *state {
	userState := b.states[b.Owner]
	if userState == nil {
		userState = &state{stage: stageIdle}
		b.states[b.Owner] = userState
	}
	return userState
}

func (b *TBot) ensureOwnerPrivate(msg *tg.Message) bool {
	if msg.From == nil || msg.From.ID != b.Owner {
		b.SendMessage(msg.Chat.ID, txtAccessDenied, msg.MessageID)
		return false
	}
	if !msg.Chat.IsPrivate() {
		b.SendMessage(msg.Chat.ID, txtUsePrivateChat, msg.MessageID)
		return false
	}
	return true
}

func (b *TBot) HandleCommand(msg *tg.Message) {
	if !b.ensureOwnerPrivate(msg) {
		return
	}

	userState := b.ownerState()
	if userState.stage != stageIdle && msg.Command() != "cancel" {
		// Commands interrupt any ongoing input
		*userState = state{stage: stageIdle}
	}

	switch msg.Command() {
	case "start", "help":
		b.SendMessage(msg.Chat.ID, txtHelpMessage, -1)

	case "setchannel":
		b.setChannel(msg)

	case "newbook":
		if _, err := b.channelID(); err != nil {
			b.SendMessage(msg.Chat.ID, txtSetChannelFirst, msg.MessageID)
			return
		}
		userState.stage = stageNewBookTitle
		b.SendMessage(msg.Chat.ID, txtEnterTitle, -1)

	case "list":
		b.listBooks(msg)

	case "progress":
		b.showProgress(msg)

	case "pause":
		b.setBookStatus(msg, db.BookPaused)

	case "resume":
		b.setBookStatus(msg, db.BookActive)

	case "settings":
		b.showSettings(msg)

	case "cancel":
		if userState.stage == stageIdle {
			b.SendMessage(msg.Chat.ID, txtNothingToCancel, -1)
			return
		}
		*userState = state{stage: stageIdle}
		b.SendMessage(msg.Chat.ID, txtCancelledPending, -1)

	default:
		b.SendMessage(msg.Chat.ID, txtUnknownCommand, msg.MessageID)
	}
}

func (b *TBot) HandleMessage(msg *tg.Message) {
	if msg.From == nil || msg.From.ID != b.Owner || !msg.Chat.IsPrivate() {
		return
	}

	userState := b.ownerState()
	text := strings.TrimSpace(msg.Text)

	switch userState.stage {
	case stageNewBookTitle:
		if text == "" {
			b.SendMessage(msg.Chat.ID, txtTitleEmpty, msg.MessageID)
			return
		}
		userState.draft.title = text
		userState.stage = stageNewBookAuthor
		b.SendMessage(msg.Chat.ID, txtEnterAuthor, -1)

	case stageNewBookAuthor:
		if text == "" {
			b.SendMessage(msg.Chat.ID, txtAuthorEmpty, msg.MessageID)
			return
		}
		userState.draft.author = text
		userState.stage = stageNewBookTotalPages
		b.SendMessage(msg.Chat.ID, txtEnterTotalPages, -1)

	case stageNewBookTotalPages:
		totalPages, err := strconv.Atoi(text)
		if err != nil || totalPages <= 0 {
			b.SendMessage(msg.Chat.ID, txtTotalPagesInvalid, msg.MessageID)
			return
		}
		userState.draft.totalPages = totalPages
		userState.stage = stageNewBookStartDate
		b.SendMessage(msg.Chat.ID, txtEnterStartDate, -1)

	case stageNewBookStartDate:
		today := time.Now().In(b.Location)
		startDate, err := parseDateInput(text, time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC))
		if err != nil {
			b.SendMessage(msg.Chat.ID, err.Error()+". Enter start date again:", msg.MessageID)
			return
		}
		userState.draft.startDate = startDate
		userState.stage = stageNewBookStartPage
		b.SendMessage(msg.Chat.ID, txtEnterStartPage, -1)

	case stageNewBookStartPage:
		b.createBook(msg, userState, text)

	case stageReadRange:
		b.applyReadRange(msg, userState, text)

	case stageSettingValue:
		b.applySettingValue(msg, userState, text)
	}
}

func (b *TBot) setChannel(msg *tg.Message) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		b.SendMessage(msg.Chat.ID, txtChannelUsage, -1)
		return
	}

	channelID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.SendMessage(msg.Chat.ID, txtChannelMustBeInt, msg.MessageID)
		return
	}

	if err := b.DB.SetSetting(scheduler.KeyChannelID, strconv.FormatInt(channelID, 10)); err != nil {
		b.Logger.Errorw("failed saving channel ID", "err", err)
		b.SendMessage(msg.Chat.ID, txtDatabaseTrouble, msg.MessageID)
		return
	}

	b.SendMessage(msg.Chat.ID, fmt.Sprintf(fmtChannelSaved, channelID), -1)
}

// createBook finishes the wizard: inserts the book, posts the channel header
// and records its handle. If the header cannot be posted the half-created
// book is rolled back so a later /newbook starts clean.
func (b *TBot) createBook(msg *tg.Message, userState *state, text string) {
	draft := userState.draft

	startPage := 1
	if text != "-" && text != "skip" {
		var err error
		startPage, err = strconv.Atoi(text)
		if err != nil {
			b.SendMessage(msg.Chat.ID, txtStartPageInvalid, msg.MessageID)
			return
		}
	}
	if startPage <= 0 || startPage > draft.totalPages {
		b.SendMessage(msg.Chat.ID, fmt.Sprintf(fmtStartPageRange, draft.totalPages), msg.MessageID)
		return
	}

	bookID, err := b.DB.CreateBook(draft.title, draft.author, draft.totalPages, startPage, draft.startDate)
	if err != nil {
		b.Logger.Errorw("failed creating book", "err", err)
		b.SendMessage(msg.Chat.ID, txtDatabaseTrouble, msg.MessageID)
		return
	}

	channelID, err := b.channelID()
	if err != nil {
		b.rollbackBook(bookID)
		*userState = state{stage: stageIdle}
		b.SendMessage(msg.Chat.ID, txtSetChannelFirst, -1)
		return
	}

	headerID, err := b.postText(channelID, scheduler.BuildHeaderText(draft.title, draft.author, draft.startDate, nil))
	if err != nil {
		b.Logger.Errorw("failed posting header message", "book_id", bookID, "err", err)
		b.rollbackBook(bookID)
		*userState = state{stage: stageIdle}
		b.SendMessage(msg.Chat.ID, txtHeaderPostFailed, -1)
		return
	}

	if err := b.DB.SetBookHeaderMessage(bookID, headerID); err != nil {
		b.Logger.Errorw("failed storing header message ID", "book_id", bookID, "err", err)
	}

	*userState = state{stage: stageIdle}
	b.SendMessage(msg.Chat.ID, fmt.Sprintf(fmtBookCreated, bookID, draft.title, draft.author,
		scheduler.FormatDisplayDate(draft.startDate), startPage-1, draft.totalPages), -1)
}

func (b *TBot) rollbackBook(bookID int64) {
	if err := b.DB.DeleteBook(bookID); err != nil {
		b.Logger.Errorw("failed rolling back book", "book_id", bookID, "err", err)
	}
}

func (b *TBot) listBooks(msg *tg.Message) {
	books, err := b.DB.ListBooks(db.BookActive, db.BookPaused)
	if err != nil {
		b.Logger.Errorw("failed listing books", "err", err)
		b.SendMessage(msg.Chat.ID, txtDatabaseTrouble, msg.MessageID)
		return
	}

	if len(books) == 0 {
		b.SendMessage(msg.Chat.ID, txtNoBooks, -1)
		return
	}

	lines := []string{"Books:"}
	for _, book := range books {
		lines = append(lines, fmt.Sprintf("#%d [%s] %s — %s\nProgress: %d/%d | Start: %s",
			book.ID, book.Status, book.Title, book.Author,
			book.LastReadPage, book.TotalPages, scheduler.FormatDisplayDate(book.StartDate)))
	}
	b.SendMessage(msg.Chat.ID, strings.Join(lines, "\n\n"), -1)
}

func (b *TBot) showProgress(msg *tg.Message) {
	bookID, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.SendMessage(msg.Chat.ID, txtBookIDUsage, msg.MessageID)
		return
	}

	book, err := b.DB.GetBook(bookID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		b.SendMessage(msg.Chat.ID, txtBookNotFound, msg.MessageID)
		return
	case err != nil:
		b.Logger.Errorw("failed fetching book", "book_id", bookID, "err", err)
		b.SendMessage(msg.Chat.ID, txtDatabaseTrouble, msg.MessageID)
		return
	}

	lines := []string{
		fmt.Sprintf("Book #%d: %s — %s", book.ID, book.Title, book.Author),
		fmt.Sprintf("Status: %s", book.Status),
		fmt.Sprintf("Progress: %d/%d", book.LastReadPage, book.TotalPages),
		fmt.Sprintf("Start: %s", scheduler.FormatDisplayDate(book.StartDate)),
	}
	if !book.LastReadDate.IsZero() {
		lines = append(lines, fmt.Sprintf("Last read date: %s", scheduler.FormatDisplayDate(book.LastReadDate)))
	}

	today := time.Now().In(b.Location)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if rem, err := b.DB.GetReminderByBookAndDate(bookID, todayDate); err == nil {
		lines = append(lines, fmt.Sprintf("Today reminder: %d-%d [%s]", rem.FromPage, rem.ToPage, rem.Status))
	}
	if rem, err := b.DB.LatestReminder(bookID); err == nil {
		lines = append(lines, fmt.Sprintf("Latest reminder: %s %d-%d [%s]",
			scheduler.FormatDisplayDate(rem.Date), rem.FromPage, rem.ToPage, rem.Status))
	}

	b.SendMessage(msg.Chat.ID, strings.Join(lines, "\n"), -1)
}

func (b *TBot) setBookStatus(msg *tg.Message, target db.BookStatus) {
	bookID, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.SendMessage(msg.Chat.ID, txtBookIDUsage, msg.MessageID)
		return
	}

	book, err := b.DB.GetBook(bookID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		b.SendMessage(msg.Chat.ID, txtBookNotFound, msg.MessageID)
		return
	case err != nil:
		b.Logger.Errorw("failed fetching book", "book_id", bookID, "err", err)
		b.SendMessage(msg.Chat.ID, txtDatabaseTrouble, msg.MessageID)
		return
	}

	if book.Status == db.BookFinished {
		b.SendMessage(msg.Chat.ID, txtBookFinished, msg.MessageID)
		return
	}
	if !book.Status.CanTransitionTo(target) {
		b.SendMessage(msg.Chat.ID, fmt.Sprintf(fmtBookAlready, target), msg.MessageID)
		return
	}

	if err := b.DB.SetBookStatus(bookID, target); err != nil {
		b.Logger.Errorw("failed updating book status", "book_id", bookID, "err", err)
		b.SendMessage(msg.Chat.ID, txtDatabaseTrouble, msg.MessageID)
		return
	}

	b.SendMessage(msg.Chat.ID, fmt.Sprintf(fmtBookStatusChanged, bookID, target), -1)
}

func (b *TBot) showSettings(msg *tg.Message) {
	values, err := b.DB.GetSettings(scheduler.KeyChannelID, scheduler.KeyReminderTime,
		pacing.KeyStartPages, pacing.KeyWeeklyIncrement, pacing.KeyIncrementEveryDays)
	if err != nil {
		b.Logger.Errorw("failed fetching settings", "err", err)
		b.SendMessage(msg.Chat.ID, txtDatabaseTrouble, msg.MessageID)
		return
	}

	get := func(key, fallback string) string {
		if v, ok := values[key]; ok {
			return v
		}
		return fallback
	}

	text := "Current settings:\n" +
		"- channel_id: " + get(scheduler.KeyChannelID, "not set") + "\n" +
		"- reminder_time: " + get(scheduler.KeyReminderTime, "08:00") + "\n" +
		"- start_pages: " + get(pacing.KeyStartPages, "10") + "\n" +
		"- weekly_increment: " + get(pacing.KeyWeeklyIncrement, "5") + "\n" +
		"- increment_every_days: " + get(pacing.KeyIncrementEveryDays, "7")

	m := tg.NewMessage(msg.Chat.ID, text)
	m.ReplyMarkup = settingsKeyboard()
	if _, err := b.Bot.Send(m); err != nil {
		b.Logger.Errorw("failed sending settings", "err", err)
	}
}

// applyReadRange consumes the corrected page range the owner typed after
// pressing "I read different pages".
func (b *TBot) applyReadRange(msg *tg.Message, userState *state, text string) {
	from, to, err := parsePageRange(text)
	if err != nil {
		b.SendMessage(msg.Chat.ID, err.Error()+". Try again or /cancel.", msg.MessageID)
		return
	}

	reminderID := userState.reminderID
	err = b.Scheduler.CompleteReminder(reminderID, &db.PageRange{From: from, To: to})
	switch {
	case errors.Is(err, scheduler.ErrReminderNotFound), errors.Is(err, scheduler.ErrBookNotFound):
		*userState = state{stage: stageIdle}
		b.SendMessage(msg.Chat.ID, txtReminderNotFound, -1)
	case errors.Is(err, scheduler.ErrReminderDone):
		*userState = state{stage: stageIdle}
		b.SendMessage(msg.Chat.ID, txtReminderAlreadyDone, -1)
	case errors.Is(err, scheduler.ErrRangeOrder), errors.Is(err, scheduler.ErrRangeBeforeStart),
		errors.Is(err, scheduler.ErrRangeBeyondBook), errors.Is(err, scheduler.ErrRangeNoProgress):
		// Invalid range keeps the prompt open for another attempt.
		b.SendMessage(msg.Chat.ID, err.Error()+". Try again or /cancel.", msg.MessageID)
	case err != nil:
		b.Logger.Errorw("failed completing reminder", "reminder_id", reminderID, "err", err)
		b.SendMessage(msg.Chat.ID, txtDatabaseTrouble, msg.MessageID)
	default:
		*userState = state{stage: stageIdle}
		b.SendMessage(msg.Chat.ID, fmt.Sprintf(fmtSavedActualPages, from, to, reminderID), -1)
	}
}

func (b *TBot) applySettingValue(msg *tg.Message, userState *state, text string) {
	key := userState.settingKey
	value := strings.TrimSpace(text)

	switch key {
	case scheduler.KeyReminderTime:
		if _, _, err := scheduler.ParseTimeHHMM(value); err != nil {
			b.SendMessage(msg.Chat.ID, err.Error()+". Try again or /cancel.", msg.MessageID)
			return
		}
	case pacing.KeyStartPages, pacing.KeyWeeklyIncrement, pacing.KeyIncrementEveryDays:
		val, err := strconv.Atoi(value)
		if err != nil || val <= 0 {
			b.SendMessage(msg.Chat.ID, "Value must be a positive integer. Try again or /cancel.", msg.MessageID)
			return
		}
		value = strconv.Itoa(val)
	default:
		*userState = state{stage: stageIdle}
		b.SendMessage(msg.Chat.ID, "Unsupported setting key.", -1)
		return
	}

	if err := b.DB.SetSetting(key, value); err != nil {
		b.Logger.Errorw("failed storing setting", "key", key, "err", err)
		b.SendMessage(msg.Chat.ID, txtDatabaseTrouble, msg.MessageID)
		return
	}

	if key == scheduler.KeyReminderTime {
		// Reschedule without restarting the process.
		b.Scheduler.Refresh()
	}

	*userState = state{stage: stageIdle}
	b.SendMessage(msg.Chat.ID, fmt.Sprintf(fmtSettingUpdated, key, value), -1)
}

func (b *TBot) HandleCallback(cbq *tg.CallbackQuery) {
	if cbq.From == nil || cbq.From.ID != b.Owner {
		b.answerCallback(cbq.ID, txtNotAllowed, true)
		return
	}

	prefix, id, err := splitCallbackData(cbq.Data)
	if err != nil {
		b.Logger.Warnw("unexpected callback data", "data", cbq.Data)
		b.answerCallback(cbq.ID, "", false)
		return
	}

	switch prefix {
	case cbqMarkRead:
		b.markRead(cbq, id)
	case cbqReadDifferent:
		b.readDifferent(cbq, id)
	case cbqTogglePause:
		b.togglePause(cbq, id)
	case cbqSettingsEdit:
		b.settingsEdit(cbq)
	default:
		b.answerCallback(cbq.ID, "", false)
	}
}

func (b *TBot) markRead(cbq *tg.CallbackQuery, reminderID int64) {
	err := b.Scheduler.CompleteReminder(reminderID, nil)
	switch {
	case errors.Is(err, scheduler.ErrReminderNotFound), errors.Is(err, scheduler.ErrBookNotFound):
		b.answerCallback(cbq.ID, txtReminderNotFound, true)
	case errors.Is(err, scheduler.ErrReminderDone):
		b.answerCallback(cbq.ID, txtReminderAlreadyDone, true)
	case err != nil:
		b.Logger.Errorw("failed completing reminder", "reminder_id", reminderID, "err", err)
		b.answerCallback(cbq.ID, txtDatabaseTrouble, true)
	default:
		b.answerCallback(cbq.ID, txtMarkedAsRead, false)
	}
}

func (b *TBot) readDifferent(cbq *tg.CallbackQuery, reminderID int64) {
	rem, err := b.DB.GetReminder(reminderID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		b.answerCallback(cbq.ID, txtReminderNotFound, true)
		return
	case err != nil:
		b.Logger.Errorw("failed fetching reminder", "reminder_id", reminderID, "err", err)
		b.answerCallback(cbq.ID, txtDatabaseTrouble, true)
		return
	}
	if rem.Status == db.ReminderDone {
		b.answerCallback(cbq.ID, txtReminderAlreadyDone, true)
		return
	}

	if err := b.SendMessage(b.Owner, fmt.Sprintf(fmtReadRangePrompt, reminderID), -1); err != nil {
		// The owner never opened a private chat with the bot.
		b.answerCallback(cbq.ID, txtOpenPrivateChat, true)
		return
	}

	userState := b.ownerState()
	*userState = state{stage: stageReadRange, reminderID: reminderID}
	b.answerCallback(cbq.ID, txtSendActualPages, true)
}

func (b *TBot) togglePause(cbq *tg.CallbackQuery, bookID int64) {
	book, err := b.DB.GetBook(bookID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		b.answerCallback(cbq.ID, txtBookNotFound, true)
		return
	case err != nil:
		b.Logger.Errorw("failed fetching book", "book_id", bookID, "err", err)
		b.answerCallback(cbq.ID, txtDatabaseTrouble, true)
		return
	}
	if book.Status == db.BookFinished {
		b.answerCallback(cbq.ID, txtBookFinished, true)
		return
	}

	target := db.BookPaused
	if book.Status == db.BookPaused {
		target = db.BookActive
	}

	if err := b.DB.SetBookStatus(bookID, target); err != nil {
		b.Logger.Errorw("failed updating book status", "book_id", bookID, "err", err)
		b.answerCallback(cbq.ID, txtDatabaseTrouble, true)
		return
	}

	if cbq.Message != nil {
		if reminderID, ok := extractReminderID(cbq.Message.ReplyMarkup); ok {
			markup := reminderKeyboard(reminderID, bookID, target == db.BookPaused)
			edit := tg.NewEditMessageReplyMarkup(cbq.Message.Chat.ID, cbq.Message.MessageID, markup)
			if _, err := b.Bot.Request(edit); err != nil {
				b.Logger.Errorw("failed editing reminder keyboard", "book_id", bookID, "err", err)
			}
		}
	}

	b.answerCallback(cbq.ID, fmt.Sprintf("Book %s.", target), false)
}

func (b *TBot) settingsEdit(cbq *tg.CallbackQuery) {
	if cbq.Message == nil || !cbq.Message.Chat.IsPrivate() {
		b.answerCallback(cbq.ID, txtUsePrivateChat, true)
		return
	}

	key := strings.SplitN(cbq.Data, ":", 2)[1]
	userState := b.ownerState()
	*userState = state{stage: stageSettingValue, settingKey: key}

	b.answerCallback(cbq.ID, "", false)
	b.SendMessage(cbq.Message.Chat.ID, fmt.Sprintf(fmtSettingPrompt, key), -1)
}

func (b *TBot) answerCallback(id, text string, alert bool) {
	cb := tg.NewCallback(id, text)
	if alert {
		cb = tg.NewCallbackWithAlert(id, text)
	}
	if _, err := b.Bot.Request(cb); err != nil {
		b.Logger.Errorw("failed answering callback", "err", err)
	}
}

// splitCallbackData parses "<prefix>:<id>" callback payloads. settings_edit
// carries a key instead of a numeric ID, the caller reads it from raw data.
func splitCallbackData(data string) (string, int64, error) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return "", 0, errors.New("unknown format")
	}
	if parts[0] == cbqSettingsEdit {
		return parts[0], 0, nil
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, errors.Wrap(err, "bad callback ID")
	}
	return parts[0], id, nil
}

// extractReminderID recovers the reminder ID from the first keyboard button
// so togglePause can rebuild the markup without a DB round trip.
func extractReminderID(markup *tg.InlineKeyboardMarkup) (int64, bool) {
	if markup == nil || len(markup.InlineKeyboard) == 0 || len(markup.InlineKeyboard[0]) == 0 {
		return 0, false
	}

	button := markup.InlineKeyboard[0][0]
	if button.CallbackData == nil {
		return 0, false
	}

	prefix, id, err := splitCallbackData(*button.CallbackData)
	if err != nil || prefix != cbqMarkRead {
		return 0, false
	}
	return id, true
}

func (b *TBot) channelID() (int64, error) {
	raw, err := b.DB.GetSetting(scheduler.KeyChannelID)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// SendMessage delivers a message to the owner's private chat with a few
// retries. Owner-facing chatter may retry; channel posts never do.
func (b *TBot) SendMessage(chatID int64, txt string, replyTo int) error {
	m := tg.NewMessage(chatID, txt)
	if replyTo >= 0 {
		m.ReplyToMessageID = replyTo
	}
	m.DisableWebPagePreview = true

	var err error
	robustExecute(b.RetryAttempts, b.RetryDelay, func() bool {
		_, err = b.Bot.Send(m)
		return err == nil
	})
	if err != nil {
		b.Logger.Errorw("failed sending message", "err", err)
	}
	return err
}

func robustExecute(n int, d time.Duration, f func() bool) bool {
	for i := 0; i < n; i++ {
		if f() {
			return true
		}
		time.Sleep(d)
	}
	return false
}
