package service

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/keeper-crm/keeper-back/internal/db"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	g, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.Nil(t, err)
	require.Nil(t, db.Migrate(g))
	return g
}

func newTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func seedUser(t *testing.T, g *gorm.DB) *db.User {
	t.Helper()

	user := db.User{
		Email:    "owner@example.com",
		Password: "hash",
		Token:    "token",
	}
	require.Nil(t, g.Create(&user).Error)
	return &user
}

func seedContact(t *testing.T, g *gorm.DB, user *db.User, first, last string) *db.Contact {
	t.Helper()

	contact := db.Contact{
		FirstName: first,
		LastName:  last,
		Company:   "Acme",
		Position:  "Engineer",
		Location:  "Berlin",
		UserID:    user.ID,
	}
	require.Nil(t, g.Create(&contact).Error)
	return &contact
}

func seedTag(t *testing.T, g *gorm.DB, user *db.User, name, color string) *db.Tag {
	t.Helper()

	tag := db.Tag{
		Name:   name,
		Color:  color,
		UserID: user.ID,
	}
	require.Nil(t, g.Create(&tag).Error)
	return &tag
}

// joinTagIDs reads the raw join rows for a contact, sorted by tag id.
func joinTagIDs(t *testing.T, g *gorm.DB, contactID uint64) []uint64 {
	t.Helper()

	rows := make([]db.ContactTag, 0)
	require.Nil(t, g.Where("contact_id = ?", contactID).Order("tag_id").Find(&rows).Error)

	ids := make([]uint64, len(rows))
	for i := range rows {
		ids[i] = rows[i].TagID
	}
	return ids
}
