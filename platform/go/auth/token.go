package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultIssuer   = "agencydesk"
	DefaultAudience = "agencydesk-app"
	DefaultTokenTTL = 24 * time.Hour
)

// ErrSigningSecretMissing is a configuration error: no token can be issued or checked.
var ErrSigningSecretMissing = errors.New("token signing secret is not configured")

// ErrInconsistentClaims is returned for tokens whose super-admin flag disagrees with the tenant database.
var ErrInconsistentClaims = errors.New("is_super_admin must be set exactly when tenant_database_identifier is null")

// Claims is the contract between the login flow and every later request. A super admin carries
// null tenant fields; everyone else carries the tenant that authenticated them.
type Claims struct {
	UserID                   string  `json:"user_id"`
	Email                    string  `json:"email"`
	TenantID                 *string `json:"tenant_id"`
	TenantDatabaseIdentifier *string `json:"tenant_database_identifier"`
	IsSuperAdmin             bool    `json:"is_super_admin"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the registered claims checks.
func (c Claims) Validate() error {
	if c.UserID == "" {
		return errors.New("user_id claim is required")
	}
	if c.IsSuperAdmin != (c.TenantDatabaseIdentifier == nil) {
		return ErrInconsistentClaims
	}
	return nil
}

// Subject is the identity a token is issued for. DatabaseIdentifier is nil for super admins.
type Subject struct {
	UserID             uuid.UUID
	Email              string
	TenantID           *uuid.UUID
	DatabaseIdentifier *string
}

type IssuerConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	// Now overrides the clock; tests only.
	Now func() time.Time
}

// Issuer signs and parses HS256 session tokens.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrSigningSecretMissing
	}

	iss := &Issuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}
	if iss.issuer == "" {
		iss.issuer = DefaultIssuer
	}
	if iss.audience == "" {
		iss.audience = DefaultAudience
	}
	if iss.ttl <= 0 {
		iss.ttl = DefaultTokenTTL
	}
	if iss.now == nil {
		iss.now = time.Now
	}

	return iss, nil
}

// Issue signs a token for subject. IsSuperAdmin is derived from the absence of a tenant database.
func (i *Issuer) Issue(subject Subject) (string, Claims, error) {
	if subject.UserID == uuid.Nil {
		return "", Claims{}, errors.New("subject user id is required")
	}

	now := i.now().UTC().Truncate(time.Second)
	claims := Claims{
		UserID:                   subject.UserID.String(),
		Email:                    subject.Email,
		TenantDatabaseIdentifier: subject.DatabaseIdentifier,
		IsSuperAdmin:             subject.DatabaseIdentifier == nil,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject.UserID.String(),
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	if subject.TenantID != nil && subject.DatabaseIdentifier != nil {
		tenantID := subject.TenantID.String()
		claims.TenantID = &tenantID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, claims, nil
}

// Parse verifies signature, issuer, audience, expiry and claim consistency.
func (i *Issuer) Parse(token string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)

	var claims Claims
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}); err != nil {
		return Claims{}, err
	}

	return claims, nil
}

// TTL reports the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}
