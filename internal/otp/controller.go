// Package otp drives the email-verification challenge: a fixed-length
// digit buffer with auto-submit, and a resend countdown. The controller never
// touches session state itself; it only calls the session manager's verify
// and resend operations.
package otp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"marketclient/pkg/apierr"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

// Verifier is the slice of the session manager the controller calls into.
type Verifier interface {
	VerifyOTP(ctx context.Context, email, code string, isRegistration bool) error
	ResendOTP(ctx context.Context, email string) error
}

type Config struct {
	CountdownFrom int
	TickInterval  time.Duration
}

// Controller manages one outstanding challenge. Create one when a flow
// requires verification and Stop it when the screen is abandoned, or the
// countdown ticker leaks.
type Controller struct {
	verifier       Verifier
	email          string
	isRegistration bool
	logger         *slog.Logger

	mu        sync.Mutex
	digits    [CodeLength]rune
	filled    [CodeLength]bool
	submitted bool
	remaining int
	lastErr   error

	countdownFrom int
	stopOnce      sync.Once
	stopCh        chan struct{}
	stopped       chan struct{}
}

func NewController(verifier Verifier, email string, isRegistration bool, cfg Config, logger *slog.Logger) *Controller {
	if cfg.CountdownFrom <= 0 {
		cfg.CountdownFrom = 59
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	c := &Controller{
		verifier:       verifier,
		email:          email,
		isRegistration: isRegistration,
		logger:         logger,
		remaining:      cfg.CountdownFrom,
		countdownFrom:  cfg.CountdownFrom,
		stopCh:         make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	go c.run(cfg.TickInterval)
	return c
}

// Stop cancels the countdown ticker. Safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.stopped
}

func (c *Controller) run(interval time.Duration) {
	defer close(c.stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick decrements the countdown, flooring at zero.
func (c *Controller) tick() {
	c.mu.Lock()
	if c.remaining > 0 {
		c.remaining--
	}
	c.mu.Unlock()
}

// Remaining returns the countdown seconds left before resend unlocks.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// CanResend reports whether the countdown has reached zero.
func (c *Controller) CanResend() bool {
	return c.Remaining() == 0
}

// Code returns the buffer contents in order, empty positions omitted.
func (c *Controller) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codeLocked()
}

func (c *Controller) codeLocked() string {
	out := make([]rune, 0, CodeLength)
	for i, ok := range c.filled {
		if ok {
			out = append(out, c.digits[i])
		}
	}
	return string(out)
}

// Err returns the last verification error, if any. Always the generic
// invalid-code error: the controller does not leak server-side detail about
// which part of the code was wrong.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// EnterDigit writes ch into position pos. Non-digit input is a no-op on the
// buffer. Filling the last open position submits the code automatically,
// exactly once per complete fill; a failed verification clears the whole
// buffer and arms auto-submit again for the next fill.
// The returned bool reports whether a submission was triggered.
func (c *Controller) EnterDigit(ctx context.Context, pos int, ch rune) (bool, error) {
	c.mu.Lock()
	if pos < 0 || pos >= CodeLength || ch < '0' || ch > '9' {
		c.mu.Unlock()
		return false, nil
	}
	c.digits[pos] = ch
	c.filled[pos] = true

	full := true
	for _, ok := range c.filled {
		if !ok {
			full = false
			break
		}
	}
	if !full || c.submitted {
		c.mu.Unlock()
		return false, nil
	}
	c.submitted = true
	code := c.codeLocked()
	c.mu.Unlock()

	return true, c.submit(ctx, code)
}

func (c *Controller) submit(ctx context.Context, code string) error {
	err := c.verifier.VerifyOTP(ctx, c.email, code, c.isRegistration)
	if err == nil {
		c.mu.Lock()
		c.lastErr = nil
		c.mu.Unlock()
		return nil
	}

	c.logger.Debug("otp verification failed", slog.Any("error", err))

	c.mu.Lock()
	c.digits = [CodeLength]rune{}
	c.filled = [CodeLength]bool{}
	c.submitted = false
	c.lastErr = apierr.ErrInvalidOTP
	c.mu.Unlock()
	return apierr.ErrInvalidOTP
}

// Backspace clears the digit at pos. On an already-empty position the focus
// moves back instead; the returned value is the position the caret should
// occupy next.
func (c *Controller) Backspace(pos int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pos < 0 || pos >= CodeLength {
		return 0
	}
	if c.filled[pos] {
		c.filled[pos] = false
		c.digits[pos] = 0
		return pos
	}
	if pos > 0 {
		return pos - 1
	}
	return 0
}

// Resend requests a fresh code. Available only once the countdown reaches
// zero; a successful request restarts the countdown, a failed one leaves it
// at zero so the user can retry immediately.
func (c *Controller) Resend(ctx context.Context) error {
	c.mu.Lock()
	if c.remaining > 0 {
		c.mu.Unlock()
		return apierr.ErrResendUnavailable
	}
	c.mu.Unlock()

	if err := c.verifier.ResendOTP(ctx, c.email); err != nil {
		return err
	}

	c.mu.Lock()
	c.remaining = c.countdownFrom
	c.lastErr = nil
	c.mu.Unlock()
	return nil
}
