package service

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/keeper-crm/keeper-back/internal/db"
)

type (
	ReminderInput struct {
		Title   string
		Date    time.Time
		Channel string
		Notes   *string
	}

	Reminders struct {
		db *gorm.DB
	}
)

func NewReminders(g *gorm.DB) *Reminders {
	return &Reminders{db: g}
}

func (s *Reminders) List(user *db.User) ([]db.Reminder, error) {
	reminders := make([]db.Reminder, 0)
	res := s.db.Where("user_id = ?", user.ID).Order("date, id").Find(&reminders)
	if res.Error != nil {
		return nil, res.Error
	}
	return reminders, nil
}

func (s *Reminders) ListByContact(user *db.User, contactID uint64) ([]db.Reminder, error) {
	if err := contactOwned(s.db, user, contactID); err != nil {
		return nil, err
	}
	reminders := make([]db.Reminder, 0)
	res := s.db.Where("contact_id = ? AND user_id = ?", contactID, user.ID).
		Order("date, id").
		Find(&reminders)
	if res.Error != nil {
		return nil, res.Error
	}
	return reminders, nil
}

func (s *Reminders) Get(user *db.User, reminderID uint64) (*db.Reminder, error) {
	model := db.Reminder{}
	res := s.db.Where("id = ? AND user_id = ?", reminderID, user.ID).First(&model)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "reminder %d", reminderID)
		}
		return nil, res.Error
	}
	return &model, nil
}

func (s *Reminders) Create(user *db.User, contactID uint64, in ReminderInput) (*db.Reminder, error) {
	if err := validateReminder(in); err != nil {
		return nil, err
	}
	if err := contactOwned(s.db, user, contactID); err != nil {
		return nil, err
	}

	model := db.Reminder{
		ContactID: contactID,
		UserID:    user.ID,
		Title:     strings.TrimSpace(in.Title),
		Date:      in.Date,
		Channel:   in.Channel,
		Notes:     in.Notes,
		IsActive:  true,
	}

	res := s.db.Create(&model)
	if res.Error != nil {
		return nil, res.Error
	}
	return &model, nil
}

func (s *Reminders) Update(user *db.User, reminderID uint64, in ReminderInput) (*db.Reminder, error) {
	if err := validateReminder(in); err != nil {
		return nil, err
	}

	model, err := s.Get(user, reminderID)
	if err != nil {
		return nil, err
	}

	res := s.db.Model(model).Updates(map[string]interface{}{
		"title":   strings.TrimSpace(in.Title),
		"date":    in.Date,
		"channel": in.Channel,
		"notes":   in.Notes,
	})
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update model")
	}
	return model, nil
}

// Complete flips is_active to false. The transition is one-way and
// idempotent: completing an already-completed reminder is a no-op success.
// The completion timestamp is the row's updated_at at transition.
func (s *Reminders) Complete(user *db.User, reminderID uint64) (*db.Reminder, error) {
	model, err := s.Get(user, reminderID)
	if err != nil {
		return nil, err
	}
	if !model.IsActive {
		return model, nil
	}

	res := s.db.Model(model).Update("is_active", false)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "complete reminder")
	}
	return model, nil
}

// Delete is immediate and irreversible, with no completion semantics.
func (s *Reminders) Delete(user *db.User, reminderID uint64) error {
	model, err := s.Get(user, reminderID)
	if err != nil {
		return err
	}
	res := s.db.Delete(&db.Reminder{}, model.ID)
	return res.Error
}

// InteractionDraft seeds the follow-up interaction offered on completion.
// It is returned to the caller for confirmation, never submitted here.
func InteractionDraft(r *db.Reminder, now time.Time) InteractionInput {
	notes := ""
	if r.Notes != nil {
		notes = *r.Notes
	}
	seeded := fmt.Sprintf("Follow-up from reminder: %s\n\n%s", r.Title, notes)
	return InteractionInput{
		Type:  r.Channel,
		Date:  now,
		Notes: &seeded,
	}
}

// CalendarLink builds a shareable Google Calendar event URL from the
// reminder. Pure computation, no write to the reminder.
func CalendarLink(r *db.Reminder) string {
	const layout = "20060102T150405Z"
	start := r.Date.UTC()
	end := start.Add(time.Hour)

	details := r.Channel
	if r.Notes != nil && *r.Notes != "" {
		details = r.Channel + "\n\n" + *r.Notes
	}

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", r.Title)
	q.Set("dates", start.Format(layout)+"/"+end.Format(layout))
	q.Set("details", details)

	return "https://calendar.google.com/calendar/render?" + q.Encode()
}

func validateReminder(in ReminderInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "must not be empty")
	}
	if strings.TrimSpace(in.Channel) == "" {
		return invalid("channel", "must not be empty")
	}
	if in.Date.IsZero() {
		return invalid("date", "must be set")
	}
	return nil
}
