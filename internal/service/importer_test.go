package service

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeper-crm/keeper-back/internal/db"
)

const importHeader = "first_name,last_name,email,phone,company,position,location,url,connected_on,notes\n"

func TestImportSkipsBadRows(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	imp := NewImporter(g, newTestLogger(), 25)

	csv := importHeader +
		"Ada,Lovelace,ada@engines.example,,Analytical Engines,Mathematician,London,,1843-09-05,\n" +
		"Grace,Hopper,,,US Navy,Rear Admiral,Arlington,,,\n" +
		"Alan,Turing,,,,Cryptanalyst,Bletchley,,,\n" // missing company

	summary, err := imp.Import(user, strings.NewReader(csv))
	require.Nil(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)

	var count int64
	require.Nil(t, g.Model(&db.Contact{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestImportQuotedFields(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	imp := NewImporter(g, newTestLogger(), 25)

	csv := importHeader +
		`Ada,Lovelace,,,"Engines, Analytical",Mathematician,"London, UK",,,"notes, with commas"` + "\n"

	summary, err := imp.Import(user, strings.NewReader(csv))
	require.Nil(t, err)
	assert.Equal(t, 1, summary.Imported)

	contact := db.Contact{}
	require.Nil(t, g.Where("user_id = ?", user.ID).First(&contact).Error)
	assert.Equal(t, "Engines, Analytical", contact.Company)
	assert.Equal(t, "London, UK", contact.Location)
	require.NotNil(t, contact.Notes)
	assert.Equal(t, "notes, with commas", *contact.Notes)
}

func TestImportConnectedOn(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	imp := NewImporter(g, newTestLogger(), 25)

	csv := importHeader +
		"Ada,Lovelace,,,Engines,Math,London,,1843-09-05,\n" +
		"Grace,Hopper,,,Navy,Admiral,Arlington,,garbage-date,\n"

	before := time.Now().Add(-time.Minute)
	summary, err := imp.Import(user, strings.NewReader(csv))
	require.Nil(t, err)
	assert.Equal(t, 2, summary.Imported)

	ada := db.Contact{}
	require.Nil(t, g.Where("first_name = ?", "Ada").First(&ada).Error)
	require.NotNil(t, ada.ConnectedOn)
	assert.Equal(t, 1843, ada.ConnectedOn.Year())

	// Unparseable dates fall back to the import date.
	grace := db.Contact{}
	require.Nil(t, g.Where("first_name = ?", "Grace").First(&grace).Error)
	require.NotNil(t, grace.ConnectedOn)
	assert.True(t, grace.ConnectedOn.After(before))
}

func TestImportMissingRequiredColumn(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	imp := NewImporter(g, newTestLogger(), 25)

	csv := "first_name,last_name,position,location\nAda,Lovelace,Math,London\n"

	_, err := imp.Import(user, strings.NewReader(csv))
	assert.True(t, errors.Is(err, ErrMissingColumns))
}

func TestImportBatches(t *testing.T) {
	g := newTestDB(t)
	user := seedUser(t, g)
	imp := NewImporter(g, newTestLogger(), 2)

	var sb strings.Builder
	sb.WriteString(importHeader)
	names := []string{"Ada", "Grace", "Alan", "Joan", "Kathleen"}
	for _, name := range names {
		sb.WriteString(name + ",Example,,,Acme,Engineer,Berlin,,,\n")
	}

	summary, err := imp.Import(user, strings.NewReader(sb.String()))
	require.Nil(t, err)
	assert.Equal(t, 5, summary.Imported)
	assert.Equal(t, 0, summary.Skipped)

	var count int64
	require.Nil(t, g.Model(&db.Contact{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

func TestImportHeaderTemplate(t *testing.T) {
	header := ImportHeader()
	assert.Equal(t, []string{
		"first_name", "last_name", "email", "phone", "company",
		"position", "location", "url", "connected_on", "notes",
	}, header)
}
