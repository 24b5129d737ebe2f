package service

import (
	"errors"
	"fmt"

	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
	"github.com/zenGate-Global/agencydesk/platform/go/persistence"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the login input is incomplete. No database is touched.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// ErrInvalidCredentials is the single outcome for unknown email, wrong password and inactive
// account alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// IsUnavailable reports whether err means the auth subsystem itself cannot work (main database
// down or signing secret missing), as opposed to bad credentials.
func IsUnavailable(err error) bool {
	return errors.Is(err, persistence.ErrMainDatabase) || errors.Is(err, platformauth.ErrSigningSecretMissing)
}

// tenantUnavailableError wraps a failure local to one tenant database. It never leaves the
// locator; the scan logs it and moves on.
type tenantUnavailableError struct {
	database string
	op       string
	err      error
}

func (e *tenantUnavailableError) Error() string {
	return fmt.Sprintf("tenant database %q: %s: %v", e.database, e.op, e.err)
}

func (e *tenantUnavailableError) Unwrap() error {
	return e.err
}
