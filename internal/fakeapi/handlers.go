package fakeapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"marketclient/domain/entity"
)

// DTOs
type emailRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email          string `json:"email"`
	OTP            string `json:"otp"`
	IsRegistration bool   `json:"isRegistration"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[req.Email]; exists {
		return httpError(http.StatusBadRequest, "account_exists", "an account with this email already exists")
	}

	s.accounts[req.Email] = &account{
		user: entity.User{
			ID:        uuid.New(),
			Email:     req.Email,
			Role:      "customer",
			CreatedAt: time.Now().UTC(),
		},
	}

	resp, err := s.issueTokens(req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[req.Email]; !ok {
		return httpError(http.StatusNotFound, "account_not_found", "no account matches this email")
	}

	resp, err := s.issueTokens(req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVerifyOTP(c echo.Context) error {
	var req verifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[req.Email]
	if !ok {
		return httpError(http.StatusNotFound, "account_not_found", "no account matches this email")
	}
	if req.OTP != s.otpCode {
		return httpError(http.StatusBadRequest, "invalid_otp", "the verification code is wrong or expired")
	}

	acc.user.IsVerified = true

	resp, err := s.issueTokens(req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResendOTP(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failResend {
		return httpError(http.StatusServiceUnavailable, "", "could not deliver the code")
	}
	if _, ok := s.accounts[req.Email]; !ok {
		return httpError(http.StatusNotFound, "account_not_found", "no account matches this email")
	}
	s.resendCount++
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRefresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.refreshTokens[req.RefreshToken]
	if !ok || s.revoked {
		return httpError(http.StatusUnauthorized, "", "refresh token is not valid")
	}
	// Rotate: the old refresh token is spent.
	delete(s.refreshTokens, req.RefreshToken)

	resp, err := s.issueTokens(email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLogout(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMe(c echo.Context) error {
	acc := c.Get(accountContextKey).(*account)

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := entity.MeResponse{User: acc.user}
	resp.Addresses = append(resp.Addresses, acc.addresses...)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	acc := c.Get(accountContextKey).(*account)

	var patch entity.ProfilePatch
	if err := c.Bind(&patch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.FirstName != nil {
		acc.user.Profile.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		acc.user.Profile.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		acc.user.Profile.Phone = *patch.Phone
	}
	if patch.AvatarURL != nil {
		acc.user.Profile.AvatarURL = *patch.AvatarURL
	}

	return c.JSON(http.StatusOK, acc.user)
}

func (s *Server) handleAddAddress(c echo.Context) error {
	acc := c.Get(accountContextKey).(*account)

	var input entity.AddressInput
	if err := c.Bind(&input); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := addressFromInput(uuid.New(), input)
	if created.IsDefault {
		for i := range acc.addresses {
			acc.addresses[i].IsDefault = false
		}
	}
	acc.addresses = append(acc.addresses, created)

	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateAddress(c echo.Context) error {
	acc := c.Get(accountContextKey).(*account)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpError(http.StatusBadRequest, "", "malformed address id")
	}

	var input entity.AddressInput
	if err := c.Bind(&input); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range acc.addresses {
		if acc.addresses[i].ID == id {
			updated := addressFromInput(id, input)
			if updated.IsDefault {
				for j := range acc.addresses {
					acc.addresses[j].IsDefault = false
				}
			}
			acc.addresses[i] = updated
			return c.JSON(http.StatusOK, updated)
		}
	}
	return httpError(http.StatusNotFound, "address_not_found", "no such address")
}

func (s *Server) handleDeleteAddress(c echo.Context) error {
	acc := c.Get(accountContextKey).(*account)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpError(http.StatusBadRequest, "", "malformed address id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := acc.addresses[:0]
	for _, a := range acc.addresses {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	acc.addresses = kept
	return c.NoContent(http.StatusNoContent)
}

func addressFromInput(id uuid.UUID, input entity.AddressInput) entity.Address {
	return entity.Address{
		ID:        id,
		Type:      input.Type,
		Label:     input.Label,
		Street:    input.Street,
		City:      input.City,
		State:     input.State,
		Zip:       input.Zip,
		Country:   input.Country,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		IsDefault: input.IsDefault,
	}
}
