// Package session owns the in-memory authentication state and the operations
// that move it: register, login, OTP verification, resume, profile and
// address mutations, logout. It is the only writer of that state; screens
// read snapshots and call operations.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"marketclient/domain/entity"
	"marketclient/internal/credstore"
	"marketclient/internal/metrics"
	"marketclient/pkg/apierr"
)

// Operation names a session-mutating call. The in-flight guard is keyed by
// operation type: a second concurrent call of the same type is rejected
// instead of racing the first.
type Operation string

const (
	OpRegister      Operation = "register"
	OpLogin         Operation = "login"
	OpVerifyOTP     Operation = "verify_otp"
	OpResume        Operation = "resume"
	OpUpdateProfile Operation = "update_profile"
	OpLogout        Operation = "logout"
	OpAddress       Operation = "address"
)

// APIClient is the slice of the transport the session manager needs.
type APIClient interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
	OnInvalidate(fn func())
}

type Manager struct {
	client  APIClient
	store   credstore.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu            sync.Mutex
	user          *entity.User
	authenticated bool
	addresses     []entity.Address
	selectedID    uuid.UUID
	inFlight      map[Operation]bool
}

// New builds a Manager and registers it as the transport's invalidation hook,
// so a 401 anywhere resets this session synchronously with the token wipe.
func New(client APIClient, store credstore.Store, m *metrics.Metrics, logger *slog.Logger) *Manager {
	mgr := &Manager{
		client:   client,
		store:    store,
		metrics:  m,
		logger:   logger,
		inFlight: make(map[Operation]bool),
	}
	client.OnInvalidate(mgr.handleInvalidation)
	return mgr
}

// Close tears the session down in memory. Stored credentials are untouched;
// use Logout to end the account session.
func (m *Manager) Close() {
	m.clearState()
}

// --- snapshots ---

// User returns a copy of the current user, or nil when anonymous.
func (m *Manager) User() *entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// IsLoading reports whether an operation of the given type is in flight.
// UI uses it to disable duplicate submissions.
func (m *Manager) IsLoading(op Operation) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight[op]
}

// Addresses returns a copy of the loaded address collection.
func (m *Manager) Addresses() []entity.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Address, len(m.addresses))
	copy(out, m.addresses)
	return out
}

// SelectedAddress returns a copy of the currently selected address, or nil.
func (m *Manager) SelectedAddress() *entity.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.addresses {
		if a.ID == m.selectedID {
			cp := a
			return &cp
		}
	}
	return nil
}

// --- operation guard ---

// begin claims the in-flight slot for op. The returned func releases it and
// must run in a defer so a failed operation never leaves the UI stuck loading.
func (m *Manager) begin(op Operation) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[op] {
		return nil, apierr.ErrOperationInFlight
	}
	m.inFlight[op] = true
	return func() {
		m.mu.Lock()
		delete(m.inFlight, op)
		m.mu.Unlock()
	}, nil
}

// --- request DTOs ---

type registerRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email          string `json:"email"`
	OTP            string `json:"otp"`
	IsRegistration bool   `json:"isRegistration"`
}

type resendOTPRequest struct {
	Email string `json:"email"`
}

// --- operations ---

// Register creates an account for the email. On success the returned token
// pair is persisted and the session becomes authenticated. Addresses are not
// loaded: registration precedes profile completion. A conflict surfaces as
// apierr.ErrAccountExists so the UI can offer sign-in instead of a retry.
func (m *Manager) Register(ctx context.Context, email string) (err error) {
	done, err := m.begin(OpRegister)
	if err != nil {
		return err
	}
	defer done()
	defer func() { m.metrics.ObserveAuth(string(OpRegister), err) }()

	var resp entity.AuthResponse
	if err = m.client.Post(ctx, "/auth/register", registerRequest{Email: email}, &resp); err != nil {
		return err
	}
	if err = credstore.SaveCredentials(ctx, m.store, resp.Credentials()); err != nil {
		return err
	}
	m.setAuthenticated(resp.User)
	return nil
}

// Login authenticates an existing account. On success the token pair is
// persisted, the session becomes authenticated, and the address collection is
// loaded to derive the selected address. An unknown email surfaces as
// apierr.ErrAccountNotFound so the UI can offer registration instead.
func (m *Manager) Login(ctx context.Context, email string) (err error) {
	done, err := m.begin(OpLogin)
	if err != nil {
		return err
	}
	defer done()
	defer func() { m.metrics.ObserveAuth(string(OpLogin), err) }()

	var resp entity.AuthResponse
	if err = m.client.Post(ctx, "/auth/login", loginRequest{Email: email}, &resp); err != nil {
		return err
	}
	if err = credstore.SaveCredentials(ctx, m.store, resp.Credentials()); err != nil {
		return err
	}
	m.setAuthenticated(resp.User)
	m.loadAddresses(ctx)
	return nil
}

// VerifyOTP completes the email-verification challenge. On failure the
// session state does not move; the OTP controller owns retry policy. On
// success the pair is persisted and, outside registration, addresses load.
func (m *Manager) VerifyOTP(ctx context.Context, email, code string, isRegistration bool) (err error) {
	done, err := m.begin(OpVerifyOTP)
	if err != nil {
		return err
	}
	defer done()
	defer func() { m.metrics.ObserveAuth(string(OpVerifyOTP), err) }()

	var resp entity.AuthResponse
	if err = m.client.Post(ctx, "/auth/verify-otp", verifyOTPRequest{
		Email:          email,
		OTP:            code,
		IsRegistration: isRegistration,
	}, &resp); err != nil {
		return err
	}
	if err = credstore.SaveCredentials(ctx, m.store, resp.Credentials()); err != nil {
		return err
	}
	m.setAuthenticated(resp.User)
	if !isRegistration {
		m.loadAddresses(ctx)
	}
	return nil
}

// ResendOTP asks the server to send a fresh code to the email.
func (m *Manager) ResendOTP(ctx context.Context, email string) error {
	return m.client.Post(ctx, "/auth/resend-otp", resendOTPRequest{Email: email}, nil)
}

// Resume rebuilds the session from the server using whatever credential is
// stored. Failure of any kind resolves to an anonymous session without
// touching stored credentials: this layer does not know why the read failed,
// and an expired token is the transport's concern. No error escapes; Resume
// backs silent startup.
func (m *Manager) Resume(ctx context.Context) {
	done, err := m.begin(OpResume)
	if err != nil {
		return
	}
	defer done()

	var me entity.MeResponse
	if err := m.client.Get(ctx, "/auth/me", &me); err != nil {
		m.logger.Debug("session resume failed", slog.Any("error", err))
		m.clearState()
		return
	}

	m.mu.Lock()
	u := me.User
	m.user = &u
	m.authenticated = true
	m.addresses = me.Addresses
	m.selectedID = selectedIDOf(me.Addresses)
	m.mu.Unlock()
}

// UpdateProfile sends a partial profile update and replaces the local user
// with the server's returned representation. No local merge: the server is
// the source of truth.
func (m *Manager) UpdateProfile(ctx context.Context, patch entity.ProfilePatch) (err error) {
	done, err := m.begin(OpUpdateProfile)
	if err != nil {
		return err
	}
	defer done()

	var updated entity.User
	if err = m.client.Put(ctx, "/users/me", patch, &updated); err != nil {
		return err
	}

	m.mu.Lock()
	m.user = &updated
	m.mu.Unlock()
	return nil
}

// Logout notifies the server best-effort, then unconditionally clears stored
// credentials and resets the session. It always succeeds locally.
func (m *Manager) Logout(ctx context.Context) {
	done, err := m.begin(OpLogout)
	if err != nil {
		return
	}
	defer done()

	if err := m.client.Post(ctx, "/auth/logout", nil, nil); err != nil {
		m.logger.Debug("logout notification failed", slog.Any("error", err))
	}
	if err := credstore.ClearCredentials(ctx, m.store); err != nil {
		m.logger.Error("failed to clear credentials on logout", slog.Any("error", err))
	}
	m.clearState()
}

// --- internals ---

func (m *Manager) setAuthenticated(user *entity.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
	m.authenticated = true
}

func (m *Manager) clearState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	m.authenticated = false
	m.addresses = nil
	m.selectedID = uuid.Nil
}

// handleInvalidation is the transport's 401 hook. The store is already wiped
// by the time it fires; this keeps the in-memory session in step.
func (m *Manager) handleInvalidation() {
	m.logger.Warn("session ended by server, resetting to anonymous")
	m.clearState()
}

// loadAddresses refreshes the address collection after an auth operation.
// Best-effort: a failure leaves the session authenticated with no addresses.
func (m *Manager) loadAddresses(ctx context.Context) {
	var me entity.MeResponse
	if err := m.client.Get(ctx, "/auth/me", &me); err != nil {
		m.logger.Debug("address load failed", slog.Any("error", err))
		return
	}
	m.mu.Lock()
	m.addresses = me.Addresses
	m.selectedID = selectedIDOf(me.Addresses)
	m.mu.Unlock()
}
