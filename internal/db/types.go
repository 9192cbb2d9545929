package db

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
)

type (
	// HistoricalTag is a value copy of a tag taken when an interaction is
	// logged. It carries no foreign key: renaming or deleting the live tag
	// must never change what was recorded.
	HistoricalTag struct {
		ID    uint64 `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	}

	// FileAttachment describes a stored object embedded in an interaction.
	// Immutable once written.
	FileAttachment struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		MimeType   string    `json:"mime_type"`
		Size       int64     `json:"size"`
		Key        string    `json:"key"`
		UploadedAt time.Time `json:"uploaded_at"`
	}
)

// DecodeHistoricalTags parses a stored JSON column. Malformed content yields
// an empty list and the parse error; callers log and move on, the error is
// never propagated past the data-access boundary.
func DecodeHistoricalTags(raw datatypes.JSON) ([]HistoricalTag, error) {
	tags := make([]HistoricalTag, 0)
	if len(raw) == 0 {
		return tags, nil
	}
	if err := json.Unmarshal(raw, &tags); err != nil {
		return make([]HistoricalTag, 0), errors.Wrap(err, "decode historical tags")
	}
	return tags, nil
}

func EncodeHistoricalTags(tags []HistoricalTag) (datatypes.JSON, error) {
	if tags == nil {
		tags = make([]HistoricalTag, 0)
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, errors.Wrap(err, "encode historical tags")
	}
	return datatypes.JSON(b), nil
}

func DecodeFileAttachments(raw datatypes.JSON) ([]FileAttachment, error) {
	atts := make([]FileAttachment, 0)
	if len(raw) == 0 {
		return atts, nil
	}
	if err := json.Unmarshal(raw, &atts); err != nil {
		return make([]FileAttachment, 0), errors.Wrap(err, "decode file attachments")
	}
	return atts, nil
}

func EncodeFileAttachments(atts []FileAttachment) (datatypes.JSON, error) {
	if atts == nil {
		atts = make([]FileAttachment, 0)
	}
	b, err := json.Marshal(atts)
	if err != nil {
		return nil, errors.Wrap(err, "encode file attachments")
	}
	return datatypes.JSON(b), nil
}
