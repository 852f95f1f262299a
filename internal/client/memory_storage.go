package client

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStorage is an in-process StorageClient used when no bucket is
// configured and in tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]MemoryObject
	baseURL string
	secret  []byte
	now     func() time.Time
}

// MemoryObject is a stored blob
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// NewMemoryStorage creates an empty store. Signed URLs are built on baseURL
// and carry an HMAC keyed by a secret private to this instance; objects do not
// outlive it either.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(fmt.Sprintf("memory storage: generate signing secret: %v", err))
	}
	return &MemoryStorage{
		objects: make(map[string]MemoryObject),
		baseURL: baseURL,
		secret:  secret,
		now:     time.Now,
	}
}

func (m *MemoryStorage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress ProgressFunc) error {
	data, err := io.ReadAll(newProgressReader(body, size, onProgress))
	if err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.objects[key] = MemoryObject{Data: data, ContentType: contentType}
	m.mu.Unlock()

	return nil
}

func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	expires := m.now().Add(expiry).Unix()
	return fmt.Sprintf("%s/%s?expires=%d&signature=%s", m.baseURL, key, expires, m.sign(key, expires)), nil
}

// Verify reports whether signature was minted by GetSignedURL for key and
// expires. It does not look at the clock.
func (m *MemoryStorage) Verify(key string, expires int64, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(m.sign(key, expires))
	return hmac.Equal(got, want)
}

// Expired reports whether a signed URL expiry timestamp has passed.
func (m *MemoryStorage) Expired(expires int64) bool {
	return m.now().Unix() > expires
}

func (m *MemoryStorage) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, m.secret)
	fmt.Fprintf(mac, "%s|%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// Object returns the stored blob for key.
func (m *MemoryStorage) Object(key string) (MemoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj, ok
}
