package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/utils"
)

const defaultKeyFetchTimeout = 10 * time.Second

// AggregateEncryptionKeyStore persists coordinator keys
type AggregateEncryptionKeyStore interface {
	ListUnexpired(ctx context.Context, now time.Time) ([]*models.AggregateEncryptionKey, error)
	SaveBatch(ctx context.Context, keys []*models.AggregateEncryptionKey) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AggregateEncryptionKeyManager supplies aggregation coordinator public keys
type AggregateEncryptionKeyManager interface {
	// GetEncryptionKeys returns numKeys keys drawn from the unexpired pool, or none when no
	// key is available
	GetEncryptionKeys(ctx context.Context, numKeys int) []*models.AggregateEncryptionKey
}

// AggregateEncryptionKeyManagerImpl implements AggregateEncryptionKeyManager
type AggregateEncryptionKeyManagerImpl struct {
	store          AggregateEncryptionKeyStore
	coordinatorURL string
	defaultTTL     time.Duration
	client         *http.Client
	logger         *log.Logger
	now            func() time.Time
}

type coordinatorKeysResponse struct {
	Keys []struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	} `json:"keys"`
}

// NewAggregateEncryptionKeyManager creates a key manager. An empty coordinatorURL disables
// fetching; a nil logger uses log.Default().
func NewAggregateEncryptionKeyManager(store AggregateEncryptionKeyStore, coordinatorURL string, timeout, defaultTTL time.Duration, logger *log.Logger) AggregateEncryptionKeyManager {
	if timeout <= 0 {
		timeout = defaultKeyFetchTimeout
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AggregateEncryptionKeyManagerImpl{
		store:          store,
		coordinatorURL: coordinatorURL,
		defaultTTL:     defaultTTL,
		client:         &http.Client{Timeout: timeout},
		logger:         logger,
		now:            utils.UTCNow,
	}
}

func (m *AggregateEncryptionKeyManagerImpl) GetEncryptionKeys(ctx context.Context, numKeys int) []*models.AggregateEncryptionKey {
	if numKeys <= 0 {
		return nil
	}
	now := m.now()
	pool, err := m.store.ListUnexpired(ctx, now)
	if err != nil {
		m.logger.Printf("reporting: failed to read aggregate encryption keys: %v", err)
		return nil
	}

	if len(pool) == 0 {
		pool, err = m.refresh(ctx, now)
		if err != nil {
			m.logger.Printf("reporting: failed to refresh aggregate encryption keys: %v", err)
			return nil
		}
		if len(pool) == 0 {
			return nil
		}
	}

	keys := make([]*models.AggregateEncryptionKey, 0, numKeys)
	for i := 0; i < numKeys; i++ {
		keys = append(keys, pool[rand.IntN(len(pool))])
	}
	return keys
}

// refresh fetches the coordinator's keys, replaces expired rows and returns the new keys
func (m *AggregateEncryptionKeyManagerImpl) refresh(ctx context.Context, now time.Time) ([]*models.AggregateEncryptionKey, error) {
	if m.coordinatorURL == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.coordinatorURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("coordinator keys http status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	var parsed coordinatorKeysResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode coordinator keys: %w", err)
	}

	expiry := now.Add(m.maxAge(resp.Header.Get("Cache-Control")))
	keys := make([]*models.AggregateEncryptionKey, 0, len(parsed.Keys))
	for _, k := range parsed.Keys {
		if k.ID == "" || k.Key == "" {
			continue
		}
		keys = append(keys, &models.AggregateEncryptionKey{KeyID: k.ID, PublicKey: k.Key, Expiry: expiry})
	}

	if _, err := m.store.DeleteExpired(ctx, now); err != nil {
		m.logger.Printf("reporting: failed to delete expired aggregate encryption keys: %v", err)
	}
	if err := m.store.SaveBatch(ctx, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// maxAge reads max-age from a Cache-Control header, falling back to the default TTL
func (m *AggregateEncryptionKeyManagerImpl) maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.ParseInt(strings.Trim(value, `"`), 10, 64)
		if err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return m.defaultTTL
}
