// Package credstore holds the access/refresh token pair in durable storage.
// Backings differ by deployment (encrypted file on devices, plain file or
// redis elsewhere); callers only ever see the Store interface and never branch
// on the backing.
package credstore

import (
	"context"
	"sync"

	"marketclient/domain/entity"
)

// Logical key names. Callers never invent keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Store is durable key/value storage for credentials.
//
// Get treats every read failure as "absent": a missing token means "not
// authenticated", never an error the caller has to handle.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// SetMany writes several keys in one storage operation so the token pair
	// is never partially persisted.
	SetMany(ctx context.Context, kv map[string]string) error
}

// SaveCredentials persists the token pair as a unit.
func SaveCredentials(ctx context.Context, s Store, creds entity.Credentials) error {
	return s.SetMany(ctx, map[string]string{
		KeyAccessToken:  creds.AccessToken,
		KeyRefreshToken: creds.RefreshToken,
	})
}

// LoadCredentials reads the stored pair. ok is false when the access token is
// absent; a lone refresh token is useless and reported as absent too.
func LoadCredentials(ctx context.Context, s Store) (entity.Credentials, bool) {
	access, ok := s.Get(ctx, KeyAccessToken)
	if !ok || access == "" {
		return entity.Credentials{}, false
	}
	refresh, _ := s.Get(ctx, KeyRefreshToken)
	return entity.Credentials{AccessToken: access, RefreshToken: refresh}, true
}

// ClearCredentials removes both tokens. The first failure is returned but the
// second removal is still attempted.
func ClearCredentials(ctx context.Context, s Store) error {
	err := s.Remove(ctx, KeyAccessToken)
	if err2 := s.Remove(ctx, KeyRefreshToken); err == nil {
		err = err2
	}
	return err
}

// Memory is an in-process Store used by tests and short-lived tooling.
type Memory struct {
	mu sync.RWMutex
	kv map[string]string
}

func NewMemory() *Memory {
	return &Memory{kv: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.kv[key]
	return v, ok
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	return nil
}

func (m *Memory) SetMany(_ context.Context, kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range kv {
		m.kv[k] = v
	}
	return nil
}
