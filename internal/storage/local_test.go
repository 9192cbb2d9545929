package storage

import (
	"context"
	"io/ioutil"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeper-crm/keeper-back/internal/config"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()

	store, err := NewFileStore(&config.Config{
		StorageDir:    t.TempDir(),
		StorageSecret: "test-secret",
	})
	require.Nil(t, err)
	return store
}

func TestUploadAndServePath(t *testing.T) {
	store := newTestStore(t)

	obj, err := store.Upload(context.Background(), "report.pdf", "application/pdf", strings.NewReader("hello"))
	require.Nil(t, err)
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.True(t, strings.HasSuffix(obj.Key, ".pdf"))

	content, err := ioutil.ReadFile(store.Path(obj.Key))
	require.Nil(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestSignedURLVerify(t *testing.T) {
	store := newTestStore(t)

	obj, err := store.Upload(context.Background(), "a.txt", "text/plain", strings.NewReader("x"))
	require.Nil(t, err)

	signed, err := store.SignedURL(obj.Key, time.Minute)
	require.Nil(t, err)

	parsed, err := url.Parse(signed)
	require.Nil(t, err)
	assert.Equal(t, "/files/"+obj.Key, parsed.Path)

	exp, err := strconv.ParseInt(parsed.Query().Get("exp"), 10, 64)
	require.Nil(t, err)
	sig := parsed.Query().Get("sig")

	assert.True(t, store.Verify(obj.Key, exp, sig))
	assert.False(t, store.Verify(obj.Key, exp, "forged"))
	assert.False(t, store.Verify("other-key", exp, sig))

	// Expired timestamps fail even with a valid signature over them.
	past := time.Now().Add(-time.Minute).Unix()
	assert.False(t, store.Verify(obj.Key, past, store.sign(obj.Key, past)))
}

func TestRemove(t *testing.T) {
	store := newTestStore(t)

	obj, err := store.Upload(context.Background(), "a.txt", "text/plain", strings.NewReader("x"))
	require.Nil(t, err)

	require.Nil(t, store.Remove(obj.Key))
	assert.True(t, errors.Is(store.Remove(obj.Key), ErrObjectNotFound))
}

func TestKeySafety(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SignedURL("../../etc/passwd", time.Minute)
	assert.NotNil(t, err)

	assert.NotNil(t, store.Remove("../escape"))

	obj, err := store.Upload(context.Background(), "weird/../name.a-very-long-extension", "text/plain", strings.NewReader("x"))
	require.Nil(t, err)
	assert.False(t, strings.Contains(obj.Key, "/"))
}

func TestUploadCancelledContext(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Upload(ctx, "a.txt", "text/plain", strings.NewReader("x"))
	assert.NotNil(t, err)
}
