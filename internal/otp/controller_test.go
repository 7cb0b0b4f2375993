package otp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketclient/pkg/apierr"
)

type fakeVerifier struct {
	VerifyFunc  func(ctx context.Context, email, code string, isRegistration bool) error
	ResendFunc  func(ctx context.Context, email string) error
	verifyCalls int
	resendCalls int
	lastCode    string
}

func (f *fakeVerifier) VerifyOTP(ctx context.Context, email, code string, isRegistration bool) error {
	f.verifyCalls++
	f.lastCode = code
	if f.VerifyFunc != nil {
		return f.VerifyFunc(ctx, email, code, isRegistration)
	}
	return nil
}

func (f *fakeVerifier) ResendOTP(ctx context.Context, email string) error {
	f.resendCalls++
	if f.ResendFunc != nil {
		return f.ResendFunc(ctx, email)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newStoppedController returns a controller whose ticker is effectively
// frozen, for tests that only exercise the buffer.
func newStoppedController(t *testing.T, v Verifier) *Controller {
	t.Helper()
	c := NewController(v, "user@example.com", false, Config{
		CountdownFrom: 59,
		TickInterval:  time.Hour,
	}, testLogger())
	t.Cleanup(c.Stop)
	return c
}

func TestController_NonDigitInputIsNoOp(t *testing.T) {
	v := &fakeVerifier{}
	c := newStoppedController(t, v)

	for _, ch := range []rune{'a', ' ', '-', '\n', '!'} {
		submitted, err := c.EnterDigit(context.Background(), 0, ch)
		require.NoError(t, err)
		assert.False(t, submitted)
	}
	assert.Empty(t, c.Code())
	assert.Zero(t, v.verifyCalls)
}

func TestController_OutOfRangePositionIsNoOp(t *testing.T) {
	v := &fakeVerifier{}
	c := newStoppedController(t, v)

	for _, pos := range []int{-1, CodeLength, 100} {
		submitted, err := c.EnterDigit(context.Background(), pos, '1')
		require.NoError(t, err)
		assert.False(t, submitted)
	}
	assert.Empty(t, c.Code())
}

func TestController_AutoSubmitsExactlyOnceOnFill(t *testing.T) {
	v := &fakeVerifier{}
	c := newStoppedController(t, v)

	code := "123456"
	for i, ch := range code {
		submitted, err := c.EnterDigit(context.Background(), i, ch)
		require.NoError(t, err)
		assert.Equal(t, i == CodeLength-1, submitted, "only the final digit submits")
	}

	assert.Equal(t, 1, v.verifyCalls)
	assert.Equal(t, code, v.lastCode)

	// Re-entering a digit into the already-full, already-submitted buffer
	// must not submit again.
	submitted, err := c.EnterDigit(context.Background(), 2, '9')
	require.NoError(t, err)
	assert.False(t, submitted)
	assert.Equal(t, 1, v.verifyCalls)
}

func TestController_FailedVerifyClearsBufferAndReArms(t *testing.T) {
	attempts := 0
	v := &fakeVerifier{
		VerifyFunc: func(ctx context.Context, email, code string, isRegistration bool) error {
			attempts++
			if attempts == 1 {
				return errors.New("server says wrong code with revealing detail")
			}
			return nil
		},
	}
	c := newStoppedController(t, v)

	for i, ch := range "111111" {
		_, err := c.EnterDigit(context.Background(), i, ch)
		if i == CodeLength-1 {
			require.Error(t, err)
			// Only the generic error surfaces, never the server detail.
			assert.ErrorIs(t, err, apierr.ErrInvalidOTP)
		} else {
			require.NoError(t, err)
		}
	}
	assert.Empty(t, c.Code(), "failed verify clears the whole buffer")
	assert.ErrorIs(t, c.Err(), apierr.ErrInvalidOTP)

	// A fresh fill triggers a second submission.
	for i, ch := range "222222" {
		_, err := c.EnterDigit(context.Background(), i, ch)
		if i == CodeLength-1 {
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 2, v.verifyCalls)
	assert.NoError(t, c.Err())
}

func TestController_BackspaceFocus(t *testing.T) {
	v := &fakeVerifier{}
	c := newStoppedController(t, v)

	_, err := c.EnterDigit(context.Background(), 2, '7')
	require.NoError(t, err)

	// Clearing a filled position keeps focus there.
	assert.Equal(t, 2, c.Backspace(2))
	assert.Empty(t, c.Code())

	// Backspacing an empty position moves focus back.
	assert.Equal(t, 1, c.Backspace(2))
	assert.Equal(t, 0, c.Backspace(0))
}

func TestController_CountdownFloorsAtZero(t *testing.T) {
	v := &fakeVerifier{}
	c := NewController(v, "user@example.com", true, Config{
		CountdownFrom: 3,
		TickInterval:  time.Millisecond,
	}, testLogger())
	defer c.Stop()

	assert.Eventually(t, func() bool { return c.Remaining() == 0 }, time.Second, time.Millisecond)

	// Stays at zero, never goes negative.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, c.Remaining())
	assert.True(t, c.CanResend())
}

func TestController_ResendUnavailableBeforeZero(t *testing.T) {
	v := &fakeVerifier{}
	c := newStoppedController(t, v)

	assert.False(t, c.CanResend())
	err := c.Resend(context.Background())
	assert.ErrorIs(t, err, apierr.ErrResendUnavailable)
	assert.Zero(t, v.resendCalls)
}

func TestController_ResendResetsCountdownOnSuccess(t *testing.T) {
	v := &fakeVerifier{}
	c := NewController(v, "user@example.com", false, Config{
		CountdownFrom: 2,
		TickInterval:  time.Millisecond,
	}, testLogger())
	defer c.Stop()

	require.Eventually(t, func() bool { return c.CanResend() }, time.Second, time.Millisecond)

	require.NoError(t, c.Resend(context.Background()))
	assert.Equal(t, 1, v.resendCalls)
	// Countdown restarted and drains to zero again.
	require.Eventually(t, func() bool { return c.CanResend() }, time.Second, time.Millisecond)
}

func TestController_FailedResendLeavesCountdownAtZero(t *testing.T) {
	v := &fakeVerifier{
		ResendFunc: func(ctx context.Context, email string) error {
			return errors.New("smtp down")
		},
	}
	c := NewController(v, "user@example.com", false, Config{
		CountdownFrom: 1,
		TickInterval:  time.Millisecond,
	}, testLogger())
	defer c.Stop()

	require.Eventually(t, func() bool { return c.CanResend() }, time.Second, time.Millisecond)

	err := c.Resend(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, c.Remaining(), "failed resend keeps resend available")
	assert.True(t, c.CanResend())
}

func TestController_StopIsIdempotent(t *testing.T) {
	v := &fakeVerifier{}
	c := NewController(v, "user@example.com", false, Config{}, testLogger())
	c.Stop()
	c.Stop()
}
