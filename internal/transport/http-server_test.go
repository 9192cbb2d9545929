package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCensorBody(t *testing.T) {
	b := `{
		"email": "email@email.com",
		"password": "123456789123"
	}`

	got := censorBody([]byte(b))
	assert.JSONEq(t, `{
		"email": "email@email.com",
		"password": "$censored"
	}`, string(got))
}

func TestCensorBodyNotJSON(t *testing.T) {
	b := []byte("not json at all")
	assert.Equal(t, b, censorBody(b))
}

func TestParseIDList(t *testing.T) {
	got, err := parseIDList(" 1, 2,3")
	assert.Nil(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, got)

	got, err = parseIDList("")
	assert.Nil(t, err)
	assert.Nil(t, got)

	_, err = parseIDList("1,x")
	assert.NotNil(t, err)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2024-03-01")
	assert.Nil(t, err)
	assert.Equal(t, 2024, got.Year())

	got, err = parseDate("2024-03-01T10:30:00Z")
	assert.Nil(t, err)
	assert.Equal(t, 10, got.Hour())

	_, err = parseDate("03/01/2024")
	assert.NotNil(t, err)
}
