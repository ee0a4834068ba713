package client

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRemindTooSoon is returned while the local cooldown is active.
var ErrRemindTooSoon = errors.New("리마인드는 잠시 후에 다시 보낼 수 있습니다")

// DefaultRemindCooldown matches the server's production throttle.
const DefaultRemindCooldown = 40 * time.Minute

// DefaultConfirmWindow is how long the confirmation indicator stays up
// after a successful reminder, independent of the cooldown.
const DefaultConfirmWindow = 3 * time.Second

// RemindThrottle gates reminder triggers for one settlement. State
// lives in memory only and is lost when the throttle is discarded; the
// server enforces the cooldown authoritatively.
type RemindThrottle struct {
	client        *Client
	settlementID  int64
	cooldown      time.Duration
	confirmWindow time.Duration
	now           func() time.Time

	mu           sync.Mutex
	nextAllowed  time.Time
	confirmUntil time.Time
}

func NewRemindThrottle(client *Client, settlementID int64) *RemindThrottle {
	return &RemindThrottle{
		client:        client,
		settlementID:  settlementID,
		cooldown:      DefaultRemindCooldown,
		confirmWindow: DefaultConfirmWindow,
		now:           time.Now,
	}
}

// WithCooldown overrides the local cooldown window.
func (t *RemindThrottle) WithCooldown(cooldown time.Duration) *RemindThrottle {
	t.cooldown = cooldown
	return t
}

// Trigger sends one reminder. While the cooldown is active it fails
// fast without a network call. A failed remote call does not start the
// cooldown, so the user may try again immediately.
func (t *RemindThrottle) Trigger(ctx context.Context) error {
	t.mu.Lock()
	if t.now().Before(t.nextAllowed) {
		t.mu.Unlock()
		return ErrRemindTooSoon
	}
	t.mu.Unlock()

	if _, err := t.client.Remind(ctx, t.settlementID); err != nil {
		return err
	}

	t.mu.Lock()
	now := t.now()
	t.nextAllowed = now.Add(t.cooldown)
	t.confirmUntil = now.Add(t.confirmWindow)
	t.mu.Unlock()

	return nil
}

// Allowed reports whether a trigger would pass the local cooldown.
func (t *RemindThrottle) Allowed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.now().Before(t.nextAllowed)
}

// Confirming reports whether the confirmation indicator is still up.
func (t *RemindThrottle) Confirming() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Before(t.confirmUntil)
}

// Remaining returns how long until the next trigger is allowed.
func (t *RemindThrottle) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	remaining := t.nextAllowed.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
