package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user@example.com",
		"exp": exp.Unix(),
	})
	signed, err := claims.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestInspector_ExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	i := NewInspector(0)

	got, err := i.ExpiresAt(mintToken(t, exp))
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))
}

func TestInspector_Expired(t *testing.T) {
	now := time.Now()
	i := NewInspector(30 * time.Second)

	tests := []struct {
		name    string
		exp     time.Time
		expired bool
	}{
		{"far future", now.Add(time.Hour), false},
		{"already past", now.Add(-time.Minute), true},
		{"inside leeway", now.Add(10 * time.Second), true},
		{"just outside leeway", now.Add(2 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, i.Expired(mintToken(t, tt.exp), now))
		})
	}
}

func TestInspector_MalformedTokenCountsAsExpired(t *testing.T) {
	i := NewInspector(0)
	assert.True(t, i.Expired("not-a-jwt", time.Now()))

	_, err := i.ExpiresAt("not-a-jwt")
	assert.Error(t, err)
}

func TestInspector_MissingExpClaim(t *testing.T) {
	claims := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	signed, err := claims.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	i := NewInspector(0)
	_, expErr := i.ExpiresAt(signed)
	assert.Error(t, expErr)
	assert.True(t, i.Expired(signed, time.Now()))
}
