package session

import (
	"errors"
	"fmt"

	"github.com/forest6511/muxpass/pkg/vault"
)

var (
	// ErrLocked is returned by Guard while the session is locked.
	ErrLocked = errors.New("session: locked, enter PIN to unlock")

	// ErrInvalidPINFormat rejects a PIN that is not exactly 4 decimal digits.
	ErrInvalidPINFormat = fmt.Errorf("%w: PIN must be exactly 4 digits", vault.ErrValidation)

	// ErrPINMismatch is returned for a wrong PIN. The caller may retry.
	ErrPINMismatch = errors.New("session: invalid PIN")

	// ErrNoPIN is returned by SubmitPIN when no PIN is configured.
	ErrNoPIN = errors.New("session: no PIN configured")

	// ErrCooldownActive is returned while failed-attempt backoff is in effect.
	ErrCooldownActive = errors.New("session: cooldown period active")

	// ErrTooManyAttempts is returned by the attempt that starts a cooldown.
	ErrTooManyAttempts = errors.New("session: too many failed PIN attempts")
)
