package service

import (
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keeper-crm/keeper-back/internal/db"
	"github.com/keeper-crm/keeper-back/internal/storage"
)

type SortField string

const (
	SortByName      SortField = "name"
	SortByCompany   SortField = "company"
	SortByPosition  SortField = "position"
	SortByLocation  SortField = "location"
	SortByEmail     SortField = "email"
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

var sortFields = map[SortField]bool{
	SortByName:      true,
	SortByCompany:   true,
	SortByPosition:  true,
	SortByLocation:  true,
	SortByEmail:     true,
	SortByCreatedAt: true,
	SortByUpdatedAt: true,
}

type (
	// ContactQuery composes free-text search, tag-set membership and a
	// single-field sort. The tag filter needs a join round-trip, the text
	// filter and sort run over the fetched rows.
	ContactQuery struct {
		Text   string
		TagIDs []uint64
		Sort   SortField
		Dir    SortDirection
	}

	ContactInput struct {
		FirstName   string
		LastName    string
		Email       *string
		Phone       *string
		Company     string
		Position    string
		Location    string
		URL         *string
		Notes       *string
		ConnectedOn *time.Time
	}

	Contacts struct {
		db     *gorm.DB
		store  storage.Store
		logger *zap.SugaredLogger
	}
)

func NewContacts(g *gorm.DB, store storage.Store, l *zap.SugaredLogger) *Contacts {
	return &Contacts{
		db:     g,
		store:  store,
		logger: l,
	}
}

func (s *Contacts) Get(user *db.User, contactID uint64) (*db.Contact, error) {
	model := db.Contact{}
	res := s.db.Where("id = ? AND user_id = ?", contactID, user.ID).First(&model)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "contact %d", contactID)
		}
		return nil, res.Error
	}
	return &model, nil
}

// List fetches the owner's contacts, restricted to the selected tag set when
// one is given (OR membership), then applies the text filter and sort.
func (s *Contacts) List(user *db.User, q ContactQuery) ([]db.Contact, error) {
	contacts := make([]db.Contact, 0)

	if len(q.TagIDs) != 0 {
		sql, args, err := squirrel.
			Select("DISTINCT c.*").
			From("contacts c").
			Join("contact_tags ct ON c.id = ct.contact_id").
			Where(squirrel.Eq{
				"c.user_id": user.ID,
				"ct.tag_id": q.TagIDs,
			}).
			OrderBy("c.id").
			ToSql()
		if err != nil {
			return nil, errors.Wrap(err, "build sql")
		}
		res := s.db.Raw(sql, args...).Scan(&contacts)
		if res.Error != nil {
			return nil, errors.Wrap(res.Error, "scan")
		}
	} else {
		res := s.db.Where("user_id = ?", user.ID).Order("id").Find(&contacts)
		if res.Error != nil {
			return nil, res.Error
		}
	}

	contacts = FilterByText(contacts, q.Text)
	return SortContacts(contacts, q.Sort, q.Dir), nil
}

func (s *Contacts) Create(user *db.User, in ContactInput) (*db.Contact, error) {
	if err := validateContact(in); err != nil {
		return nil, err
	}

	model := db.Contact{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       in.Email,
		Phone:       in.Phone,
		Company:     strings.TrimSpace(in.Company),
		Position:    strings.TrimSpace(in.Position),
		Location:    strings.TrimSpace(in.Location),
		URL:         in.URL,
		Notes:       in.Notes,
		ConnectedOn: in.ConnectedOn,
		UserID:      user.ID,
	}

	res := s.db.Create(&model)
	if res.Error != nil {
		return nil, res.Error
	}
	return &model, nil
}

func (s *Contacts) Update(user *db.User, contactID uint64, in ContactInput) (*db.Contact, error) {
	if err := validateContact(in); err != nil {
		return nil, err
	}

	model, err := s.Get(user, contactID)
	if err != nil {
		return nil, err
	}

	res := s.db.Model(model).Updates(map[string]interface{}{
		"first_name":   strings.TrimSpace(in.FirstName),
		"last_name":    strings.TrimSpace(in.LastName),
		"email":        in.Email,
		"phone":        in.Phone,
		"company":      strings.TrimSpace(in.Company),
		"position":     strings.TrimSpace(in.Position),
		"location":     strings.TrimSpace(in.Location),
		"url":          in.URL,
		"notes":        in.Notes,
		"connected_on": in.ConnectedOn,
	})
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update model")
	}
	return model, nil
}

// Delete removes the contact with everything it owns: join rows, interactions
// and reminders go in one transaction. Stored attachment objects are removed
// best-effort once the records are gone.
func (s *Contacts) Delete(user *db.User, contactID uint64) error {
	keys := make([]string, 0)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := contactOwned(tx, user, contactID); err != nil {
			return err
		}

		interactions := make([]db.Interaction, 0)
		res := tx.Where("contact_id = ? AND user_id = ?", contactID, user.ID).Find(&interactions)
		if res.Error != nil {
			return errors.Wrap(res.Error, "load interactions")
		}
		for i := range interactions {
			atts, err := db.DecodeFileAttachments(interactions[i].FileAttachments)
			if err != nil {
				s.logger.Warnw("decode file attachments", "interaction", interactions[i].ID, "error", err)
			}
			for _, att := range atts {
				keys = append(keys, att.Key)
			}
		}

		res = tx.Where("contact_id = ?", contactID).Delete(&db.Interaction{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete interactions")
		}
		res = tx.Where("contact_id = ?", contactID).Delete(&db.Reminder{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete reminders")
		}
		res = tx.Where("contact_id = ?", contactID).Delete(&db.ContactTag{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete join rows")
		}
		res = tx.Delete(&db.Contact{}, contactID)
		return res.Error
	})
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.store.Remove(key); err != nil {
			s.logger.Warnw("remove attachment object", "key", key, "error", err)
		}
	}
	return nil
}

func validateContact(in ContactInput) error {
	required := []struct {
		field string
		value string
	}{
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
		{"company", in.Company},
		{"position", in.Position},
		{"location", in.Location},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalid(r.field, "must not be empty")
		}
	}
	return nil
}

// MatchesText reports whether the contact matches a case-insensitive
// substring query over full name, email, company, position and location.
// The empty query matches everything.
func MatchesText(c *db.Contact, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}

	email := ""
	if c.Email != nil {
		email = *c.Email
	}
	fields := []string{
		c.FirstName + " " + c.LastName,
		email,
		c.Company,
		c.Position,
		c.Location,
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func FilterByText(contacts []db.Contact, query string) []db.Contact {
	out := make([]db.Contact, 0, len(contacts))
	for i := range contacts {
		if MatchesText(&contacts[i], query) {
			out = append(out, contacts[i])
		}
	}
	return out
}

// SortContacts returns a sorted copy. The sort is stable, so ties keep their
// incoming order; an unknown field falls back to name ascending.
func SortContacts(contacts []db.Contact, field SortField, dir SortDirection) []db.Contact {
	if !sortFields[field] {
		field = SortByName
	}
	if dir != SortDesc {
		dir = SortAsc
	}

	out := make([]db.Contact, len(contacts))
	copy(out, contacts)

	sort.SliceStable(out, func(i, j int) bool {
		if dir == SortDesc {
			return contactLess(&out[j], &out[i], field)
		}
		return contactLess(&out[i], &out[j], field)
	})
	return out
}

func contactLess(a, b *db.Contact, field SortField) bool {
	switch field {
	case SortByCreatedAt:
		return a.CreatedAt.Before(b.CreatedAt)
	case SortByUpdatedAt:
		return a.UpdatedAt.Before(b.UpdatedAt)
	default:
		return sortKey(a, field) < sortKey(b, field)
	}
}

func sortKey(c *db.Contact, field SortField) string {
	var v string
	switch field {
	case SortByCompany:
		v = c.Company
	case SortByPosition:
		v = c.Position
	case SortByLocation:
		v = c.Location
	case SortByEmail:
		if c.Email != nil {
			v = *c.Email
		}
	default:
		v = c.FirstName + " " + c.LastName
	}
	return strings.ToLower(v)
}

// NextSort is the header-click rule: clicking the active field flips the
// direction, clicking a new field resets to ascending.
func NextSort(current SortField, dir SortDirection, clicked SortField) (SortField, SortDirection) {
	if clicked == current {
		if dir == SortAsc {
			return current, SortDesc
		}
		return current, SortAsc
	}
	return clicked, SortAsc
}
