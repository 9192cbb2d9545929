package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/keeper-crm/keeper-back/internal/db"
	"github.com/keeper-crm/keeper-back/internal/storage"
)

var interactionTypes = map[string]bool{
	"call":    true,
	"email":   true,
	"meeting": true,
	"message": true,
	"note":    true,
	"other":   true,
}

func ValidInteractionType(t string) bool {
	return interactionTypes[t]
}

type (
	InteractionInput struct {
		Type  string
		Date  time.Time
		Notes *string
	}

	// Upload is one pending file for an interaction.
	Upload struct {
		Name     string
		MimeType string
		Reader   io.Reader
	}

	Interactions struct {
		db     *gorm.DB
		joins  *JoinManager
		store  storage.Store
		logger *zap.SugaredLogger
	}
)

func NewInteractions(g *gorm.DB, joins *JoinManager, store storage.Store, l *zap.SugaredLogger) *Interactions {
	return &Interactions{
		db:     g,
		joins:  joins,
		store:  store,
		logger: l,
	}
}

// Create logs an interaction and snapshots the contact's current tag set
// (id, name, color) into it. The snapshot is a value copy: later tag edits
// or deletions leave it untouched.
func (s *Interactions) Create(user *db.User, contactID uint64, in InteractionInput) (*db.Interaction, error) {
	if err := validateInteraction(in); err != nil {
		return nil, err
	}

	tags, err := s.joins.TagsForContact(user, contactID)
	if err != nil {
		return nil, err
	}
	snapshot := make([]db.HistoricalTag, len(tags))
	for i := range tags {
		snapshot[i] = db.HistoricalTag{
			ID:    tags[i].ID,
			Name:  tags[i].Name,
			Color: tags[i].Color,
		}
	}
	encoded, err := db.EncodeHistoricalTags(snapshot)
	if err != nil {
		return nil, err
	}
	emptyAtts, err := db.EncodeFileAttachments(nil)
	if err != nil {
		return nil, err
	}

	model := db.Interaction{
		ContactID:       contactID,
		UserID:          user.ID,
		Type:            in.Type,
		Date:            in.Date,
		Notes:           in.Notes,
		HistoricalTags:  encoded,
		FileAttachments: emptyAtts,
	}

	res := s.db.Create(&model)
	if res.Error != nil {
		return nil, res.Error
	}
	return &model, nil
}

func (s *Interactions) Get(user *db.User, interactionID uint64) (*db.Interaction, error) {
	model := db.Interaction{}
	res := s.db.Where("id = ? AND user_id = ?", interactionID, user.ID).First(&model)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "interaction %d", interactionID)
		}
		return nil, res.Error
	}
	return &model, nil
}

func (s *Interactions) ListByContact(user *db.User, contactID uint64) ([]db.Interaction, error) {
	if err := contactOwned(s.db, user, contactID); err != nil {
		return nil, err
	}
	interactions := make([]db.Interaction, 0)
	res := s.db.Where("contact_id = ? AND user_id = ?", contactID, user.ID).
		Order("date DESC, id DESC").
		Find(&interactions)
	if res.Error != nil {
		return nil, res.Error
	}
	return interactions, nil
}

// Update edits type/date/notes only. The historical tag snapshot is carried
// through unchanged, never recomputed.
func (s *Interactions) Update(user *db.User, interactionID uint64, in InteractionInput) (*db.Interaction, error) {
	if err := validateInteraction(in); err != nil {
		return nil, err
	}

	model, err := s.Get(user, interactionID)
	if err != nil {
		return nil, err
	}

	res := s.db.Model(model).Updates(map[string]interface{}{
		"type":  in.Type,
		"date":  in.Date,
		"notes": in.Notes,
	})
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update model")
	}
	return model, nil
}

func (s *Interactions) Delete(user *db.User, interactionID uint64) error {
	model, err := s.Get(user, interactionID)
	if err != nil {
		return err
	}

	res := s.db.Delete(&db.Interaction{}, model.ID)
	if res.Error != nil {
		return res.Error
	}

	// Stored objects go best-effort after the record is gone.
	atts := s.Attachments(model)
	for _, att := range atts {
		if err := s.store.Remove(att.Key); err != nil {
			s.logger.Warnw("remove attachment object", "key", att.Key, "error", err)
		}
	}
	return nil
}

// AttachFiles uploads sequentially and embeds each success as an attachment.
// A failed upload is logged, counted and skipped; the rest of the batch and
// the record update proceed (not atomic by design of the upload flow).
func (s *Interactions) AttachFiles(ctx context.Context, user *db.User, interactionID uint64, uploads []Upload) ([]db.FileAttachment, int, error) {
	model, err := s.Get(user, interactionID)
	if err != nil {
		return nil, 0, err
	}

	atts := s.Attachments(model)

	failed := 0
	for _, up := range uploads {
		obj, err := s.store.Upload(ctx, up.Name, up.MimeType, up.Reader)
		if err != nil {
			failed++
			s.logger.Warnw("upload attachment", "name", up.Name, "error", err)
			continue
		}
		atts = append(atts, db.FileAttachment{
			ID:         uuid.New().String(),
			Name:       up.Name,
			MimeType:   obj.ContentType,
			Size:       obj.Size,
			Key:        obj.Key,
			UploadedAt: obj.UploadedAt,
		})
	}

	encoded, err := db.EncodeFileAttachments(atts)
	if err != nil {
		return nil, failed, err
	}
	res := s.db.Model(model).Update("file_attachments", encoded)
	if res.Error != nil {
		return nil, failed, errors.Wrap(res.Error, "update attachments")
	}
	return atts, failed, nil
}

// RemoveAttachment drops the attachment from the record first; the stored
// object is removed best-effort only after that update succeeds, and a store
// failure is never surfaced as a record-update failure.
func (s *Interactions) RemoveAttachment(user *db.User, interactionID uint64, attachmentID string) error {
	model, err := s.Get(user, interactionID)
	if err != nil {
		return err
	}

	atts := s.Attachments(model)
	kept := make([]db.FileAttachment, 0, len(atts))
	removedKey := ""
	for _, att := range atts {
		if att.ID == attachmentID {
			removedKey = att.Key
			continue
		}
		kept = append(kept, att)
	}
	if removedKey == "" {
		return errors.Wrapf(ErrNotFound, "attachment %s", attachmentID)
	}

	encoded, err := db.EncodeFileAttachments(kept)
	if err != nil {
		return err
	}
	res := s.db.Model(model).Update("file_attachments", encoded)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update attachments")
	}

	if err := s.store.Remove(removedKey); err != nil {
		s.logger.Warnw("remove attachment object", "key", removedKey, "error", err)
	}
	return nil
}

// HistoricalTags exposes the decoded snapshot for responses.
func (s *Interactions) HistoricalTags(model *db.Interaction) []db.HistoricalTag {
	tags, err := db.DecodeHistoricalTags(model.HistoricalTags)
	if err != nil {
		s.logger.Warnw("decode historical tags", "interaction", model.ID, "error", err)
	}
	return tags
}

func (s *Interactions) Attachments(model *db.Interaction) []db.FileAttachment {
	atts, err := db.DecodeFileAttachments(model.FileAttachments)
	if err != nil {
		s.logger.Warnw("decode file attachments", "interaction", model.ID, "error", err)
	}
	return atts
}

func validateInteraction(in InteractionInput) error {
	if !ValidInteractionType(in.Type) {
		return invalid("type", "unknown interaction type")
	}
	if in.Date.IsZero() {
		return invalid("date", "must be set")
	}
	return nil
}
