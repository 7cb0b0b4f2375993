// Package fakeapi is an in-memory marketplace API implementing the auth,
// profile and address endpoints the client consumes. The SDK tests run
// against it in-process; cmd/devserver serves it standalone for manual runs.
// OTP codes are deterministic: every challenge accepts the configured code.
package fakeapi

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"marketclient/domain/entity"
)

// DefaultOTP is the code every challenge accepts unless overridden.
const DefaultOTP = "123456"

type account struct {
	user      entity.User
	addresses []entity.Address
}

// Server holds the in-memory state behind the handlers.
type Server struct {
	mu            sync.Mutex
	accounts      map[string]*account // keyed by email
	refreshTokens map[string]string   // refresh token -> email
	revoked       bool                // all bearer tokens rejected when set
	failResend    bool
	resendCount   int
	otpCode       string
	tokens        *tokenManager
}

func NewServer() *Server {
	return &Server{
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		otpCode:       DefaultOTP,
		tokens:        newTokenManager(uuid.NewString(), 15*time.Minute),
	}
}

// OTPCode returns the code the server currently accepts.
func (s *Server) OTPCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otpCode
}

// RevokeTokens makes every subsequent authorized request fail with 401, as if
// the server had expired all sessions.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = true
}

// FailResend toggles resend-otp failures.
func (s *Server) FailResend(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failResend = fail
}

// ResendCount returns how many resend requests were accepted.
func (s *Server) ResendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resendCount
}

// Seed creates a verified account with the given addresses, for tests that
// start from an existing user.
func (s *Server) Seed(email string, addresses []entity.Address) entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := &account{
		user: entity.User{
			ID:         uuid.New(),
			Email:      email,
			Role:       "customer",
			IsVerified: true,
			CreatedAt:  time.Now().UTC(),
		},
		addresses: addresses,
	}
	s.accounts[email] = acc
	return acc.user
}

func (s *Server) issueTokens(email string) (entity.AuthResponse, error) {
	access, err := s.tokens.NewAccessToken(email)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	refresh := uuid.NewString()
	s.refreshTokens[refresh] = email
	u := s.accounts[email].user
	return entity.AuthResponse{Token: access, RefreshToken: refresh, User: &u}, nil
}

// authenticate resolves a bearer token to the account it belongs to.
func (s *Server) authenticate(bearer string) (*account, bool) {
	if s.revoked {
		return nil, false
	}
	email, err := s.tokens.VerifyAccessToken(bearer)
	if err != nil {
		return nil, false
	}
	acc, ok := s.accounts[email]
	return acc, ok
}
