package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forest6511/muxpass/pkg/crypto"
)

// DefaultTimeout is the inactivity period before the session locks.
const DefaultTimeout = 60 * time.Second

// PINLength is the required number of decimal digits in a PIN.
const PINLength = 4

// Notifier receives state notifications. It is called with Locked when the
// session locks and again whenever Guard rejects an action, and with
// Unlocked when the session unlocks. It runs without the Lock's mutex held.
type Notifier func(State)

// Lock is the session lock. The zero value is not usable; use New.
type Lock struct {
	mu sync.Mutex

	state     State
	pinDigest []byte
	pinSalt   []byte

	timeout  time.Duration
	deadline time.Time
	timer    *time.Timer
	useTimer bool
	closed   bool

	backoff       Backoff
	failures      int
	cooldownUntil time.Time

	now       func() time.Time
	notify    Notifier
	logger    *zap.Logger
	sessionID string
}

// Option configures a Lock.
type Option func(*Lock)

// WithTimeout sets the inactivity timeout. Zero or negative disables
// automatic locking; LockNow still works.
func WithTimeout(d time.Duration) Option {
	return func(l *Lock) { l.timeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Lock) { l.now = now }
}

// WithNotifier registers the notification callback.
func WithNotifier(n Notifier) Option {
	return func(l *Lock) { l.notify = n }
}

// WithBackoff enables cooldowns after repeated wrong PINs.
func WithBackoff(b Backoff) Option {
	return func(l *Lock) { l.backoff = b }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Lock) { l.logger = logger }
}

// WithoutTimer disables the internal timer. The host event loop must call
// Tick to let the inactivity timeout fire.
func WithoutTimer() Option {
	return func(l *Lock) { l.useTimer = false }
}

// New returns an unlocked session with no PIN configured.
func New(opts ...Option) *Lock {
	l := &Lock{
		state:     Unlocked,
		timeout:   DefaultTimeout,
		useTimer:  true,
		now:       time.Now,
		notify:    func(State) {},
		logger:    zap.NewNop(),
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.mu.Lock()
	l.restartTimerLocked()
	l.mu.Unlock()
	return l
}

// State returns the current state.
func (l *Lock) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// IsLocked reports whether guarded actions are currently rejected.
func (l *Lock) IsLocked() bool {
	return l.State() == Locked
}

// HasPIN reports whether the PIN feature is enabled.
func (l *Lock) HasPIN() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pinDigest != nil
}

// Timeout returns the configured inactivity timeout.
func (l *Lock) Timeout() time.Duration {
	return l.timeout
}

// Guard permits action while unlocked. While locked it rejects the action
// with ErrLocked and re-emits the Locked notification; it neither re-locks
// nor extends the inactivity deadline.
func (l *Lock) Guard(action string) error {
	l.mu.Lock()
	state := l.state
	l.mu.Unlock()

	if state != Locked {
		return nil
	}

	l.logger.Debug("action rejected while locked", zap.String("action", action))
	l.notify(Locked)
	return fmt.Errorf("%w: %s", ErrLocked, action)
}

// ConfigurePIN sets the PIN. It must be exactly 4 ASCII digits; otherwise
// ErrInvalidPINFormat is returned and any previous PIN is kept.
func (l *Lock) ConfigurePIN(pin string) error {
	if !validPIN(pin) {
		return ErrInvalidPINFormat
	}

	salt, err := crypto.NewPINSalt()
	if err != nil {
		return err
	}
	digest := crypto.DerivePINDigest([]byte(pin), salt)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pinDigest != nil {
		crypto.SecureWipe(l.pinDigest)
	}
	l.pinDigest = digest
	l.pinSalt = salt
	l.failures = 0
	l.cooldownUntil = time.Time{}
	l.restartTimerLocked()

	l.logger.Info("PIN configured", zap.String("session", l.sessionID))
	return nil
}

// ClearPIN disables the PIN feature. A locked session becomes unlocked
// immediately.
func (l *Lock) ClearPIN() {
	l.mu.Lock()
	if l.pinDigest != nil {
		crypto.SecureWipe(l.pinDigest)
	}
	l.pinDigest = nil
	l.pinSalt = nil
	l.failures = 0
	l.cooldownUntil = time.Time{}
	changed := l.applyLocked(EventPINCleared)
	l.restartTimerLocked()
	l.mu.Unlock()

	l.logger.Info("PIN cleared")
	if changed {
		l.notify(Unlocked)
	}
}

// SubmitPIN unlocks the session when candidate matches the configured PIN
// and restarts the inactivity timer. A mismatch returns ErrPINMismatch and
// leaves the state unchanged.
func (l *Lock) SubmitPIN(candidate string) error {
	l.mu.Lock()

	if l.pinDigest == nil {
		l.mu.Unlock()
		return ErrNoPIN
	}

	now := l.now()
	if len(l.backoff) > 0 && now.Before(l.cooldownUntil) {
		remaining := l.cooldownUntil.Sub(now)
		l.mu.Unlock()
		return fmt.Errorf("%w: please wait %v", ErrCooldownActive, remaining.Round(time.Second))
	}

	got := crypto.DerivePINDigest([]byte(candidate), l.pinSalt)
	defer crypto.SecureWipe(got)

	if !crypto.EqualDigest(got, l.pinDigest) {
		l.failures++
		var cooldown time.Duration
		if len(l.backoff) > 0 {
			cooldown = l.backoff.cooldownFor(l.failures)
			if cooldown > 0 {
				l.cooldownUntil = now.Add(cooldown)
			}
		}
		failures := l.failures
		l.mu.Unlock()

		l.logger.Warn("invalid PIN submitted", zap.Int("failures", failures))
		if cooldown > 0 {
			return fmt.Errorf("%w: cooldown activated for %v", ErrTooManyAttempts, cooldown)
		}
		return ErrPINMismatch
	}

	l.failures = 0
	l.cooldownUntil = time.Time{}
	changed := l.applyLocked(EventPINAccepted)
	if changed {
		l.sessionID = uuid.NewString()
	}
	l.restartTimerLocked()
	sessionID := l.sessionID
	l.mu.Unlock()

	if changed {
		l.logger.Info("session unlocked", zap.String("session", sessionID))
		l.notify(Unlocked)
	}
	return nil
}

// LockNow locks the session immediately. Without a PIN it does nothing.
func (l *Lock) LockNow() {
	l.transition(EventLockNow)
}

// NotifyActivity pushes the inactivity deadline back by the timeout. It has
// no effect while locked.
func (l *Lock) NotifyActivity() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Unlocked && l.timeout > 0 {
		l.deadline = l.now().Add(l.timeout)
	}
}

// Tick fires the inactivity timeout if the deadline has passed. The internal
// timer calls it; hosts using WithoutTimer call it from their event loop.
// It reports whether the timeout fired.
func (l *Lock) Tick() bool {
	l.mu.Lock()
	if l.closed || l.timeout <= 0 || l.state != Unlocked {
		l.mu.Unlock()
		return false
	}
	if now := l.now(); now.Before(l.deadline) {
		l.armLocked(l.deadline.Sub(now))
		l.mu.Unlock()
		return false
	}
	l.mu.Unlock()

	return l.transition(EventTimeout)
}

// Close stops the timer and wipes the PIN digest.
func (l *Lock) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.pinDigest != nil {
		crypto.SecureWipe(l.pinDigest)
	}
}

// transition applies a lock-type event and notifies on change.
func (l *Lock) transition(ev Event) bool {
	l.mu.Lock()
	changed := l.applyLocked(ev)
	if l.state == Locked {
		l.stopTimerLocked()
	} else {
		// Inert without a PIN: start a new inactivity period.
		l.restartTimerLocked()
	}
	sessionID := l.sessionID
	l.mu.Unlock()

	if changed {
		l.logger.Info("session locked", zap.String("session", sessionID), zap.Stringer("trigger", ev))
		l.notify(Locked)
	}
	return changed
}

// applyLocked runs Transition and reports whether the state changed.
// Callers hold l.mu.
func (l *Lock) applyLocked(ev Event) bool {
	next := Transition(l.state, l.pinDigest != nil, ev)
	changed := next != l.state
	l.state = next
	return changed
}

// restartTimerLocked starts a fresh inactivity period. Callers hold l.mu.
func (l *Lock) restartTimerLocked() {
	if l.timeout <= 0 || l.closed {
		return
	}
	l.deadline = l.now().Add(l.timeout)
	l.armLocked(l.timeout)
}

func (l *Lock) armLocked(d time.Duration) {
	if !l.useTimer || l.closed {
		return
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(d, func() { l.Tick() })
}

func (l *Lock) stopTimerLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func validPIN(pin string) bool {
	if len(pin) != PINLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
