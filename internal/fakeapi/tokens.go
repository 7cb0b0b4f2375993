package fakeapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tokenManager struct {
	secretKey      string
	accessTokenTTL time.Duration
}

func newTokenManager(secretKey string, ttl time.Duration) *tokenManager {
	return &tokenManager{secretKey: secretKey, accessTokenTTL: ttl}
}

// NewAccessToken generates a signed JWT access token for the given email.
func (m *tokenManager) NewAccessToken(email string) (string, error) {
	claims := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.MapClaims{
		"sub": email,
		"exp": time.Now().Add(m.accessTokenTTL).Unix(),
		"iat": time.Now().Unix(),
	})
	return claims.SignedString([]byte(m.secretKey))
}

// VerifyAccessToken verifies the token and returns the subject email.
func (m *tokenManager) VerifyAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", jwt.ErrTokenMalformed
	}
	return sub, nil
}
