package services

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/measurement-reporting/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeyStore struct {
	keys      []*models.AggregateEncryptionKey
	listErr   error
	saved     []*models.AggregateEncryptionKey
	deletions int
}

func (f *fakeKeyStore) ListUnexpired(_ context.Context, now time.Time) ([]*models.AggregateEncryptionKey, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.AggregateEncryptionKey
	for _, k := range f.keys {
		if k.Expiry.After(now) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeKeyStore) SaveBatch(_ context.Context, keys []*models.AggregateEncryptionKey) error {
	f.saved = append(f.saved, keys...)
	f.keys = append(f.keys, keys...)
	return nil
}

func (f *fakeKeyStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	f.deletions++
	return 0, nil
}

func newTestKeyManager(store AggregateEncryptionKeyStore, url string, now time.Time) *AggregateEncryptionKeyManagerImpl {
	m := NewAggregateEncryptionKeyManager(store, url, time.Second, time.Hour, log.New(io.Discard, "", 0)).(*AggregateEncryptionKeyManagerImpl)
	m.now = func() time.Time { return now }
	return m
}

func TestAggregateEncryptionKeyManager_UsesStoredKeys(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeKeyStore{keys: []*models.AggregateEncryptionKey{
		{KeyID: "k1", PublicKey: "pk1", Expiry: now.Add(time.Hour)},
		{KeyID: "k2", PublicKey: "pk2", Expiry: now.Add(time.Hour)},
	}}
	manager := newTestKeyManager(store, "", now)

	keys := manager.GetEncryptionKeys(context.Background(), 5)

	require.Len(t, keys, 5)
	for _, k := range keys {
		assert.Contains(t, []string{"k1", "k2"}, k.KeyID)
	}
	assert.Empty(t, store.saved)
}

func TestAggregateEncryptionKeyManager_FetchesWhenPoolEmpty(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=604800")
		_, _ = w.Write([]byte(`{"keys":[{"id":"coordinator-1","key":"cHVibGlj"}]}`))
	}))
	defer server.Close()

	store := &fakeKeyStore{}
	manager := newTestKeyManager(store, server.URL, now)

	keys := manager.GetEncryptionKeys(context.Background(), 2)

	require.Len(t, keys, 2)
	assert.Equal(t, "coordinator-1", keys[0].KeyID)
	require.Len(t, store.saved, 1)
	assert.Equal(t, now.Add(7*24*time.Hour), store.saved[0].Expiry)
	assert.Equal(t, 1, store.deletions)
}

func TestAggregateEncryptionKeyManager_DefaultTTLWithoutMaxAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[{"id":"coordinator-1","key":"cHVibGlj"}]}`))
	}))
	defer server.Close()

	store := &fakeKeyStore{}
	newTestKeyManager(store, server.URL, now).GetEncryptionKeys(context.Background(), 1)

	require.Len(t, store.saved, 1)
	assert.Equal(t, now.Add(time.Hour), store.saved[0].Expiry)
}

func TestAggregateEncryptionKeyManager_EmptyOnFailure(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	tests := []struct {
		name  string
		store *fakeKeyStore
		url   string
		num   int
	}{
		{"no coordinator configured", &fakeKeyStore{}, "", 3},
		{"coordinator unavailable", &fakeKeyStore{}, failing.URL, 3},
		{"store failure", &fakeKeyStore{listErr: errors.New("boom")}, failing.URL, 3},
		{"no keys requested", &fakeKeyStore{}, failing.URL, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := newTestKeyManager(tt.store, tt.url, now).GetEncryptionKeys(context.Background(), tt.num)
			assert.Empty(t, keys)
		})
	}
}

func TestAggregateEncryptionKeyManager_MaxAge(t *testing.T) {
	manager := newTestKeyManager(&fakeKeyStore{}, "", time.Now())

	assert.Equal(t, 60*time.Second, manager.maxAge("max-age=60"))
	assert.Equal(t, 60*time.Second, manager.maxAge("no-cache, MAX-AGE=\"60\""))
	assert.Equal(t, time.Hour, manager.maxAge("max-age=abc"))
	assert.Equal(t, time.Hour, manager.maxAge(""))
}
