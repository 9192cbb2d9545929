package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/keeper-crm/keeper-back/internal/config"
)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		GormForkedModel
		Email    string `gorm:"unique;not null"`
		Password string `gorm:"not null"`
		Token    string `gorm:"not null"`
		Contacts []Contact
		Tags     []Tag
	}

	Contact struct {
		GormForkedModel
		FirstName   string `gorm:"not null"`
		LastName    string `gorm:"not null"`
		Email       *string
		Phone       *string
		Company     string `gorm:"not null"`
		Position    string `gorm:"not null"`
		Location    string `gorm:"not null"`
		URL         *string
		Notes       *string
		ConnectedOn *time.Time
		UserID      uint64 `gorm:"not null"`
		User        User
		Tags        []Tag `gorm:"many2many:contact_tags;"`
	}

	Tag struct {
		GormForkedModel
		Name     string    `gorm:"not null;uniqueIndex:uidx_tag_name_user_id"`
		Color    string    `gorm:"not null"`
		UserID   uint64    `gorm:"not null;uniqueIndex:uidx_tag_name_user_id"`
		User     User
		Contacts []Contact `gorm:"many2many:contact_tags;"`
	}

	// ContactTag is the explicit join model backing the contacts<->tags
	// many-to-many, so join rows can be written and counted directly.
	ContactTag struct {
		ID        uint64 `gorm:"primarykey"`
		ContactID uint64 `gorm:"not null;uniqueIndex:uidx_contact_tag"`
		TagID     uint64 `gorm:"not null;uniqueIndex:uidx_contact_tag"`
		CreatedAt time.Time
	}

	Interaction struct {
		GormForkedModel
		ContactID uint64 `gorm:"not null"`
		Contact   Contact
		UserID    uint64    `gorm:"not null"`
		Type      string    `gorm:"not null"`
		Date      time.Time `gorm:"not null"`
		Notes     *string
		// JSON value lists, decoded through types.go only.
		FileAttachments datatypes.JSON
		HistoricalTags  datatypes.JSON
	}

	Reminder struct {
		GormForkedModel
		ContactID uint64 `gorm:"not null"`
		Contact   Contact
		UserID    uint64    `gorm:"not null"`
		Title     string    `gorm:"not null"`
		Date      time.Time `gorm:"not null"`
		Channel   string    `gorm:"not null"`
		Notes     *string
		IsActive  bool `gorm:"not null;default:true"`
	}
)

// Migrate wires the explicit join model and migrates every table. Shared
// between the Postgres client and the sqlite-backed test suites.
func Migrate(g *gorm.DB) error {
	if err := g.SetupJoinTable(&Contact{}, "Tags", &ContactTag{}); err != nil {
		return errors.Wrap(err, "setup join table")
	}

	for _, model := range []interface{}{
		&User{}, &Contact{}, &Tag{}, &ContactTag{}, &Interaction{}, &Reminder{},
	} {
		if err := g.AutoMigrate(model); err != nil {
			return errors.Wrapf(err, "migrate %T", model)
		}
	}
	return nil
}

func NewGormClient(cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Info,
		Colorful:                  true,
		IgnoreRecordNotFoundError: false,
	})

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
	g, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(g); err != nil {
		return nil, err
	}

	return g, nil
}
