package service

import (
	"regexp"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/keeper-crm/keeper-back/internal/db"
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type (
	Tags struct {
		db *gorm.DB
	}

	// TagWithCount is the aggregation row: a tag plus how many contacts
	// currently carry it.
	TagWithCount struct {
		ID           uint64 `json:"id"`
		Name         string `json:"name"`
		Color        string `json:"color"`
		ContactCount int64  `json:"contact_count"`
	}
)

func NewTags(g *gorm.DB) *Tags {
	return &Tags{db: g}
}

func (s *Tags) List(user *db.User) ([]db.Tag, error) {
	tags := make([]db.Tag, 0)
	res := s.db.Where("user_id = ?", user.ID).Find(&tags)
	if res.Error != nil {
		return nil, res.Error
	}
	return tags, nil
}

// ListWithCounts reports each tag with its contact count, 0 for unused tags,
// ordered by name case-insensitively.
func (s *Tags) ListWithCounts(user *db.User) ([]TagWithCount, error) {
	sql, args, err := squirrel.
		Select("t.id", "t.name", "t.color", "COUNT(ct.id) AS contact_count").
		From("tags t").
		LeftJoin("contact_tags ct ON t.id = ct.tag_id").
		Where(squirrel.Eq{"t.user_id": user.ID}).
		GroupBy("t.id", "t.name", "t.color").
		OrderBy("LOWER(t.name) ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	counts := make([]TagWithCount, 0)
	res := s.db.Raw(sql, args...).Scan(&counts)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}
	return counts, nil
}

func (s *Tags) Create(user *db.User, name, color string) (*db.Tag, error) {
	if err := validateTag(name, color); err != nil {
		return nil, err
	}

	model := db.Tag{
		Name:   strings.TrimSpace(name),
		Color:  color,
		UserID: user.ID,
	}

	res := s.db.Create(&model)
	if res.Error != nil {
		return nil, res.Error
	}
	return &model, nil
}

func (s *Tags) Update(user *db.User, tagID uint64, name, color string) (*db.Tag, error) {
	if err := validateTag(name, color); err != nil {
		return nil, err
	}

	model := db.Tag{}
	res := s.db.Where("id = ? AND user_id = ?", tagID, user.ID).First(&model)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "tag %d", tagID)
		}
		return nil, res.Error
	}

	res = s.db.Model(&model).Updates(map[string]interface{}{
		"name":  strings.TrimSpace(name),
		"color": color,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	return &model, nil
}

// Delete removes the tag and all of its join rows. The returned count is the
// number of affected contacts computed before anything is deleted, so the
// caller can surface it in the confirmation message.
func (s *Tags) Delete(user *db.User, tagID uint64) (int64, error) {
	var affected int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		res := tx.Model(&db.Tag{}).
			Where("id = ? AND user_id = ?", tagID, user.ID).
			Count(&count)
		if res.Error != nil {
			return res.Error
		}
		if count == 0 {
			return errors.Wrapf(ErrNotFound, "tag %d", tagID)
		}

		res = tx.Model(&db.ContactTag{}).Where("tag_id = ?", tagID).Count(&affected)
		if res.Error != nil {
			return errors.Wrap(res.Error, "count join rows")
		}

		res = tx.Where("tag_id = ?", tagID).Delete(&db.ContactTag{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete join rows")
		}

		res = tx.Where("user_id = ?", user.ID).Delete(&db.Tag{}, tagID)
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func validateTag(name, color string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "must not be empty")
	}
	if !hexColorRe.MatchString(color) {
		return invalid("color", "must be a #rrggbb hex color")
	}
	return nil
}
