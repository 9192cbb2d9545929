package service

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeper-crm/keeper-back/internal/db"
)

func seedReminder(t *testing.T, svc *Reminders, user *db.User, contactID uint64) *db.Reminder {
	t.Helper()

	notes := "bring the quarterly report"
	model, err := svc.Create(user, contactID, ReminderInput{
		Title:   "Catch up with Alice",
		Date:    time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		Channel: "call",
		Notes:   &notes,
	})
	require.Nil(t, err)
	return model
}

func TestReminderCompleteOneWayIdempotent(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	svc := NewReminders(g)

	contact := seedContact(t, g, user, "Alice", "Archer")
	reminder := seedReminder(t, svc, user, contact.ID)
	assert.True(t, reminder.IsActive)

	completed, err := svc.Complete(user, reminder.ID)
	require.Nil(t, err)
	assert.False(t, completed.IsActive)

	// Second completion: no error, no revert.
	again, err := svc.Complete(user, reminder.ID)
	require.Nil(t, err)
	assert.False(t, again.IsActive)

	reloaded, err := svc.Get(user, reminder.ID)
	require.Nil(t, err)
	assert.False(t, reloaded.IsActive)
}

func TestReminderInteractionDraft(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	svc := NewReminders(g)

	contact := seedContact(t, g, user, "Alice", "Archer")
	reminder := seedReminder(t, svc, user, contact.ID)

	now := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	draft := InteractionDraft(reminder, now)

	assert.Equal(t, "call", draft.Type)
	assert.Equal(t, now, draft.Date)
	require.NotNil(t, draft.Notes)
	assert.Equal(t, "Follow-up from reminder: Catch up with Alice\n\nbring the quarterly report", *draft.Notes)
}

func TestReminderInteractionDraftNoNotes(t *testing.T) {
	reminder := &db.Reminder{Title: "Ping Bob", Channel: "email"}
	draft := InteractionDraft(reminder, time.Now())
	require.NotNil(t, draft.Notes)
	assert.Equal(t, "Follow-up from reminder: Ping Bob\n\n", *draft.Notes)
}

func TestCalendarLink(t *testing.T) {
	notes := "room 4"
	reminder := &db.Reminder{
		Title:   "Catch up with Alice",
		Date:    time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		Channel: "call",
		Notes:   &notes,
	}

	link := CalendarLink(reminder)
	assert.True(t, strings.HasPrefix(link, "https://calendar.google.com/calendar/render?"))

	parsed, err := url.Parse(link)
	require.Nil(t, err)
	q := parsed.Query()
	assert.Equal(t, "TEMPLATE", q.Get("action"))
	assert.Equal(t, "Catch up with Alice", q.Get("text"))
	assert.Equal(t, "20240601T093000Z/20240601T103000Z", q.Get("dates"))
	assert.Equal(t, "call\n\nroom 4", q.Get("details"))
}

func TestReminderDelete(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	svc := NewReminders(g)

	contact := seedContact(t, g, user, "Alice", "Archer")
	reminder := seedReminder(t, svc, user, contact.ID)

	require.Nil(t, svc.Delete(user, reminder.ID))

	_, err := svc.Get(user, reminder.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReminderValidation(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	svc := NewReminders(g)
	contact := seedContact(t, g, user, "Alice", "Archer")

	vErr := &ValidationError{}

	_, err := svc.Create(user, contact.ID, ReminderInput{Channel: "call", Date: time.Now()})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "title", vErr.Field)

	_, err = svc.Create(user, contact.ID, ReminderInput{Title: "x", Date: time.Now()})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "channel", vErr.Field)

	_, err = svc.Create(user, contact.ID, ReminderInput{Title: "x", Channel: "call"})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "date", vErr.Field)

	_, err = svc.Create(user, 42, ReminderInput{Title: "x", Channel: "call", Date: time.Now()})
	assert.True(t, errors.Is(err, ErrNotFound))
}
