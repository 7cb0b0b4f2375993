package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketclient/domain/entity"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	dir := t.TempDir()

	fileStore, err := NewFile(filepath.Join(dir, "plain", "credentials"))
	require.NoError(t, err)

	encStore, err := NewEncrypted(filepath.Join(dir, "enc", "credentials"), "correct horse battery staple")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisStore := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test-session")

	return map[string]Store{
		"memory":    NewMemory(),
		"file":      fileStore,
		"encrypted": encStore,
		"redis":     redisStore,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			// Empty store reads as absent, not as an error.
			_, ok := store.Get(ctx, KeyAccessToken)
			assert.False(t, ok)

			creds := entity.Credentials{AccessToken: "acc-123", RefreshToken: "ref-456"}
			require.NoError(t, SaveCredentials(ctx, store, creds))

			got, ok := LoadCredentials(ctx, store)
			require.True(t, ok)
			assert.Equal(t, creds, got)

			require.NoError(t, ClearCredentials(ctx, store))
			_, ok = LoadCredentials(ctx, store)
			assert.False(t, ok)
			_, ok = store.Get(ctx, KeyRefreshToken)
			assert.False(t, ok)
		})
	}
}

func TestLoadCredentials_RefreshAloneIsAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, KeyRefreshToken, "ref-only"))

	_, ok := LoadCredentials(ctx, store)
	assert.False(t, ok, "a lone refresh token must not count as authenticated")
}

func TestFile_CorruptFileReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials")

	store, err := NewFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, ok := store.Get(ctx, KeyAccessToken)
	assert.False(t, ok)
}

func TestEncrypted_WrongPassphraseReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials")

	store, err := NewEncrypted(path, "right")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, KeyAccessToken, "acc"))

	reopened, err := NewEncrypted(path, "wrong")
	require.NoError(t, err)

	_, ok := reopened.Get(ctx, KeyAccessToken)
	assert.False(t, ok)
}

func TestEncrypted_OnDiskCiphertext(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials")

	store, err := NewEncrypted(path, "passphrase")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, KeyAccessToken, "super-secret-token"))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "super-secret-token")
	assert.Greater(t, len(blob), saltSize+nonceSize)
}

func TestEncrypted_RequiresPassphrase(t *testing.T) {
	_, err := NewEncrypted(filepath.Join(t.TempDir(), "credentials"), "")
	assert.Error(t, err)
}

func TestRedis_SessionNamespacing(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	a := NewRedisWithClient(client, "session-a")
	b := NewRedisWithClient(client, "session-b")

	require.NoError(t, a.Set(ctx, KeyAccessToken, "token-a"))

	_, ok := b.Get(ctx, KeyAccessToken)
	assert.False(t, ok, "stores for different sessions must not see each other's tokens")

	v, ok := a.Get(ctx, KeyAccessToken)
	require.True(t, ok)
	assert.Equal(t, "token-a", v)
}
