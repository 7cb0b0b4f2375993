package entity

import (
	"time"

	"github.com/google/uuid"
)

// User represents the authenticated account as returned by the marketplace API.
type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	Profile    Profile   `json:"profile"`
	CreatedAt  time.Time `json:"created_at"`
}

// Profile holds the editable part of an account.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AddressType is the semantic category of a saved address.
type AddressType string

const (
	AddressHome     AddressType = "home"
	AddressWork     AddressType = "work"
	AddressDoctor   AddressType = "doctor"
	AddressPharmacy AddressType = "pharmacy"
	AddressOther    AddressType = "other"
)

// Address is a saved location belonging to the user.
type Address struct {
	ID        uuid.UUID   `json:"id"`
	Type      AddressType `json:"type"`
	Label     string      `json:"label"`
	Street    string      `json:"street"`
	City      string      `json:"city"`
	State     string      `json:"state"`
	Zip       string      `json:"zip"`
	Country   string      `json:"country"`
	Latitude  *float64    `json:"latitude,omitempty"`
	Longitude *float64    `json:"longitude,omitempty"`
	IsDefault bool        `json:"is_default"`
}

// Credentials is the access/refresh token pair. The pair is always persisted
// as a unit, never one half without the other.
type Credentials struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is the body returned by register, login, verify-otp and refresh.
type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}

// Credentials extracts the token pair from an auth response.
func (r *AuthResponse) Credentials() Credentials {
	return Credentials{AccessToken: r.Token, RefreshToken: r.RefreshToken}
}

// MeResponse is the body of GET /auth/me: the user plus their saved addresses.
type MeResponse struct {
	User
	Addresses []Address `json:"addresses"`
}

// ProfilePatch is a partial profile update. Nil fields are left untouched
// server-side; the server's returned representation is authoritative.
type ProfilePatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// AddressInput is the payload for creating or updating an address.
type AddressInput struct {
	Type      AddressType `json:"type"`
	Label     string      `json:"label"`
	Street    string      `json:"street"`
	City      string      `json:"city"`
	State     string      `json:"state"`
	Zip       string      `json:"zip"`
	Country   string      `json:"country"`
	Latitude  *float64    `json:"latitude,omitempty"`
	Longitude *float64    `json:"longitude,omitempty"`
	IsDefault bool        `json:"is_default"`
}
