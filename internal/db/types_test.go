package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestHistoricalTagsRoundTrip(t *testing.T) {
	in := []HistoricalTag{
		{ID: 1, Name: "VIP", Color: "#9b87f5"},
		{ID: 2, Name: "work", Color: "#112233"},
	}

	raw, err := EncodeHistoricalTags(in)
	require.Nil(t, err)

	out, err := DecodeHistoricalTags(raw)
	require.Nil(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeHistoricalTagsMalformed(t *testing.T) {
	out, err := DecodeHistoricalTags(datatypes.JSON(`{{definitely not json`))
	assert.NotNil(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestDecodeHistoricalTagsEmpty(t *testing.T) {
	out, err := DecodeHistoricalTags(nil)
	assert.Nil(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestEncodeHistoricalTagsNil(t *testing.T) {
	raw, err := EncodeHistoricalTags(nil)
	require.Nil(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestFileAttachmentsRoundTrip(t *testing.T) {
	in := []FileAttachment{
		{ID: "att-1", Name: "a.pdf", MimeType: "application/pdf", Size: 3, Key: "abc.pdf"},
	}

	raw, err := EncodeFileAttachments(in)
	require.Nil(t, err)

	out, err := DecodeFileAttachments(raw)
	require.Nil(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeFileAttachmentsMalformed(t *testing.T) {
	out, err := DecodeFileAttachments(datatypes.JSON(`[1,2`))
	assert.NotNil(t, err)
	assert.Empty(t, out)
}
