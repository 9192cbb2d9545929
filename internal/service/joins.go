package service

import (
	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/keeper-crm/keeper-back/internal/db"
)

// JoinManager owns every write to the contact_tags join. Both write
// strategies (full replace on an edit-save, single toggle in inline
// selectors) go through the same row-level core so they converge on
// identical final state for equal target sets.
type JoinManager struct {
	db *gorm.DB
}

func NewJoinManager(g *gorm.DB) *JoinManager {
	return &JoinManager{db: g}
}

// Replace drops every join row for the contact and inserts one per id in
// tagIDs. An empty set leaves the contact untagged without error.
func (m *JoinManager) Replace(user *db.User, contactID uint64, tagIDs []uint64) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		if err := contactOwned(tx, user, contactID); err != nil {
			return err
		}

		res := tx.Where("contact_id = ?", contactID).Delete(&db.ContactTag{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "clear join rows")
		}

		for _, tagID := range tagIDs {
			if err := addRow(tx, user, contactID, tagID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Toggle adds the tag if absent, removes it if present. Other rows for the
// contact are never touched. Reports whether the tag ended up attached.
func (m *JoinManager) Toggle(user *db.User, contactID, tagID uint64) (bool, error) {
	attached := false
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := contactOwned(tx, user, contactID); err != nil {
			return err
		}

		var count int64
		res := tx.Model(&db.ContactTag{}).
			Where("contact_id = ? AND tag_id = ?", contactID, tagID).
			Count(&count)
		if res.Error != nil {
			return errors.Wrap(res.Error, "check join row")
		}

		if count > 0 {
			return removeRow(tx, contactID, tagID)
		}
		attached = true
		return addRow(tx, user, contactID, tagID)
	})
	return attached, err
}

// TagsForContact is the single tag fetch used by both read paths and the
// interaction snapshot. Ordered by tag id for deterministic snapshots.
func (m *JoinManager) TagsForContact(user *db.User, contactID uint64) ([]db.Tag, error) {
	if err := contactOwned(m.db, user, contactID); err != nil {
		return nil, err
	}

	sql, args, err := squirrel.
		Select("t.id", "t.name", "t.color", "t.user_id", "t.created_at", "t.updated_at").
		From("tags t").
		Join("contact_tags ct ON t.id = ct.tag_id").
		Where(squirrel.Eq{"ct.contact_id": contactID, "t.user_id": user.ID}).
		OrderBy("t.id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	tags := make([]db.Tag, 0)
	res := m.db.Raw(sql, args...).Scan(&tags)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}
	return tags, nil
}

// addRow inserts one join row. The tag must exist under the same owner as
// the contact; another owner's tag id reads as not found.
func addRow(tx *gorm.DB, user *db.User, contactID, tagID uint64) error {
	var tagCount int64
	res := tx.Model(&db.Tag{}).Where("id = ? AND user_id = ?", tagID, user.ID).Count(&tagCount)
	if res.Error != nil {
		return errors.Wrap(res.Error, "check tag")
	}
	if tagCount == 0 {
		return errors.Wrapf(ErrNotFound, "tag %d", tagID)
	}

	res = tx.Create(&db.ContactTag{
		ContactID: contactID,
		TagID:     tagID,
	})
	return errors.Wrap(res.Error, "insert join row")
}

func removeRow(tx *gorm.DB, contactID, tagID uint64) error {
	res := tx.Where("contact_id = ? AND tag_id = ?", contactID, tagID).
		Delete(&db.ContactTag{})
	return errors.Wrap(res.Error, "delete join row")
}

func contactOwned(tx *gorm.DB, user *db.User, contactID uint64) error {
	var count int64
	res := tx.Model(&db.Contact{}).
		Where("id = ? AND user_id = ?", contactID, user.ID).
		Count(&count)
	if res.Error != nil {
		return errors.Wrap(res.Error, "check contact")
	}
	if count == 0 {
		return errors.Wrapf(ErrNotFound, "contact %d", contactID)
	}
	return nil
}
