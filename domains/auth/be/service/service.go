package service

import (
	"context"
	"fmt"
	"time"

	platformauth "github.com/zenGate-Global/agencydesk/platform/go/auth"
)

// Session is the outcome of a successful login.
type Session struct {
	Token     string
	Claims    platformauth.Claims
	ExpiresAt time.Time
	Match     Match
}

// TokenIssuer signs session tokens. Implemented by auth.Issuer.
type TokenIssuer interface {
	Issue(subject platformauth.Subject) (string, platformauth.Claims, error)
}

// Service defines the business operations for the auth domain.
type Service interface {
	Authenticate(ctx context.Context, email, password string) (Session, error)
}

type service struct {
	locator *Locator
	issuer  TokenIssuer
}

// New constructs the auth Service. A nil issuer makes every login fail with
// auth.ErrSigningSecretMissing.
func New(locator *Locator, issuer TokenIssuer) Service {
	if locator == nil {
		panic("auth locator is required")
	}
	return &service{locator: locator, issuer: issuer}
}

func (s *service) Authenticate(ctx context.Context, email, password string) (Session, error) {
	if s.issuer == nil {
		return Session{}, platformauth.ErrSigningSecretMissing
	}

	match, err := s.locator.Locate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}

	token, claims, err := s.issuer.Issue(subjectFor(match))
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}

	session := Session{Token: token, Claims: claims, Match: match}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func subjectFor(m Match) platformauth.Subject {
	subject := platformauth.Subject{UserID: m.UserID, Email: m.Email}
	if m.Tenant != nil {
		tenantID := m.Tenant.ID
		database := m.Tenant.DatabaseIdentifier
		subject.TenantID = &tenantID
		subject.DatabaseIdentifier = &database
	}
	return subject
}
