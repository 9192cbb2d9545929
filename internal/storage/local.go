package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/keeper-crm/keeper-back/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

type (
	Object struct {
		Key         string
		Size        int64
		ContentType string
		UploadedAt  time.Time
	}

	// Store mirrors the hosted object-storage contract: upload, signed
	// time-limited retrieval, best-effort removal.
	Store interface {
		Upload(ctx context.Context, name, contentType string, r io.Reader) (*Object, error)
		SignedURL(key string, ttl time.Duration) (string, error)
		Remove(key string) error
	}

	// FileStore keeps objects on the local filesystem and signs retrieval
	// URLs with an HMAC so /files requests can be verified statelessly.
	FileStore struct {
		root   string
		secret []byte
	}
)

func NewFileStore(cfg *config.Config) (*FileStore, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create storage dir")
	}
	return &FileStore{
		root:   cfg.StorageDir,
		secret: []byte(cfg.StorageSecret),
	}, nil
}

func (s *FileStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := uuid.New().String() + safeExt(name)
	f, err := os.Create(filepath.Join(s.root, key))
	if err != nil {
		return nil, errors.Wrap(err, "create object file")
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		_ = os.Remove(filepath.Join(s.root, key))
		return nil, errors.Wrap(err, "write object")
	}

	return &Object{
		Key:         key,
		Size:        n,
		ContentType: contentType,
		UploadedAt:  time.Now(),
	}, nil
}

func (s *FileStore) SignedURL(key string, ttl time.Duration) (string, error) {
	if strings.Contains(key, "/") || strings.Contains(key, "..") {
		return "", errors.New("invalid object key")
	}
	exp := time.Now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.sign(key, exp))
	return "/files/" + key + "?" + q.Encode(), nil
}

// Verify checks a signed URL's signature and expiry for the /files handler.
func (s *FileStore) Verify(key string, exp int64, sig string) bool {
	if time.Now().Unix() > exp {
		return false
	}
	want := s.sign(key, exp)
	return hmac.Equal([]byte(want), []byte(sig))
}

func (s *FileStore) Remove(key string) error {
	if strings.Contains(key, "/") || strings.Contains(key, "..") {
		return errors.New("invalid object key")
	}
	err := os.Remove(filepath.Join(s.root, key))
	if os.IsNotExist(err) {
		return ErrObjectNotFound
	}
	return errors.Wrap(err, "remove object")
}

// Path resolves a key to the on-disk location, for serving.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.root, filepath.Base(key))
}

func (s *FileStore) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%d", key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

func safeExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
