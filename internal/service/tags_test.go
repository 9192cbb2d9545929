package service

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeper-crm/keeper-back/internal/db"
)

func TestListWithCounts(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	tags := NewTags(g)
	joins := NewJoinManager(g)

	c1 := seedContact(t, g, user, "Alice", "Archer")
	c2 := seedContact(t, g, user, "Bob", "Builder")

	// Mixed-case names to pin the case-insensitive ordering.
	banana := seedTag(t, g, user, "banana", "#112233")
	apple := seedTag(t, g, user, "Apple", "#445566")
	seedTag(t, g, user, "cherry", "#778899")

	require.Nil(t, joins.Replace(user, c1.ID, []uint64{banana.ID, apple.ID}))
	require.Nil(t, joins.Replace(user, c2.ID, []uint64{banana.ID}))

	counts, err := tags.ListWithCounts(user)
	require.Nil(t, err)
	require.Len(t, counts, 3)

	assert.Equal(t, "Apple", counts[0].Name)
	assert.Equal(t, int64(1), counts[0].ContactCount)
	assert.Equal(t, "banana", counts[1].Name)
	assert.Equal(t, int64(2), counts[1].ContactCount)
	assert.Equal(t, "cherry", counts[2].Name)
	assert.Equal(t, int64(0), counts[2].ContactCount)
}

func TestTagDeleteReportsPreDeleteCount(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	tags := NewTags(g)
	joins := NewJoinManager(g)

	c1 := seedContact(t, g, user, "Alice", "Archer")
	c2 := seedContact(t, g, user, "Bob", "Builder")
	tag := seedTag(t, g, user, "vip", "#9b87f5")

	require.Nil(t, joins.Replace(user, c1.ID, []uint64{tag.ID}))
	require.Nil(t, joins.Replace(user, c2.ID, []uint64{tag.ID}))

	var before int64
	require.Nil(t, g.Model(&db.ContactTag{}).Where("tag_id = ?", tag.ID).Count(&before).Error)

	affected, err := tags.Delete(user, tag.ID)
	require.Nil(t, err)
	assert.Equal(t, before, affected)

	var after int64
	require.Nil(t, g.Model(&db.ContactTag{}).Where("tag_id = ?", tag.ID).Count(&after).Error)
	assert.Equal(t, int64(0), after)

	var tagCount int64
	require.Nil(t, g.Model(&db.Tag{}).Where("id = ?", tag.ID).Count(&tagCount).Error)
	assert.Equal(t, int64(0), tagCount)

	// Contacts themselves survive the cascade.
	var contactCount int64
	require.Nil(t, g.Model(&db.Contact{}).Count(&contactCount).Error)
	assert.Equal(t, int64(2), contactCount)
}

func TestTagDeleteUnknown(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	tags := NewTags(g)

	_, err := tags.Delete(user, 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTagValidation(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	tags := NewTags(g)

	_, err := tags.Create(user, "  ", "#9b87f5")
	vErr := &ValidationError{}
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "name", vErr.Field)

	_, err = tags.Create(user, "vip", "purple")
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "color", vErr.Field)

	_, err = tags.Create(user, "vip", "#9b87f")
	assert.True(t, errors.As(err, &vErr))

	tag, err := tags.Create(user, " vip ", "#9B87F5")
	require.Nil(t, err)
	assert.Equal(t, "vip", tag.Name)
}

func TestTagUpdate(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	tags := NewTags(g)

	tag := seedTag(t, g, user, "vip", "#9b87f5")

	updated, err := tags.Update(user, tag.ID, "important", "#112233")
	require.Nil(t, err)
	assert.Equal(t, "important", updated.Name)
	assert.Equal(t, "#112233", updated.Color)

	_, err = tags.Update(user, 42, "x", "#112233")
	assert.True(t, errors.Is(err, ErrNotFound))
}
