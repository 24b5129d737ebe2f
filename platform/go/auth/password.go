package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-crypt/crypt"
	"github.com/go-crypt/crypt/algorithm/shacrypt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	platformlogging "github.com/zenGate-Global/agencydesk/platform/go/logging"
)

// Strategy checks plaintext against one stored hash. A non-nil error means the strategy could
// not decide (unknown format, database failure), not that the password is wrong.
type Strategy func(ctx context.Context, plaintext, storedHash string) (bool, error)

// Verifier tries its strategies in order and reports the first match.
type Verifier struct {
	strategies []Strategy
}

// NewVerifier builds a verifier; nil strategies are ignored.
func NewVerifier(strategies ...Strategy) *Verifier {
	v := &Verifier{strategies: make([]Strategy, 0, len(strategies))}
	for _, s := range strategies {
		if s != nil {
			v.strategies = append(v.strategies, s)
		}
	}
	return v
}

// Verify returns true when any strategy matches. A nil or empty hash never matches and no
// strategy runs. Strategy errors count as a mismatch and are logged at debug.
func (v *Verifier) Verify(ctx context.Context, plaintext string, storedHash *string) bool {
	if storedHash == nil || *storedHash == "" {
		return false
	}

	for i, check := range v.strategies {
		ok, err := check(ctx, plaintext, *storedHash)
		if err != nil {
			if logger, found := platformlogging.FromContext(ctx); found {
				logger.Debug("password strategy failed", zap.Int("strategy", i), zap.Error(err))
			}
			continue
		}
		if ok {
			return true
		}
	}

	return false
}

var cryptDecoder = sync.OnceValues(crypt.NewDefaultDecoder)

// CryptStrategy recomputes a self-describing crypt hash ($6$, $5$, $2a$, argon2, ...) in process.
func CryptStrategy(_ context.Context, plaintext, storedHash string) (bool, error) {
	decoder, err := cryptDecoder()
	if err != nil {
		return false, fmt.Errorf("crypt decoder: %w", err)
	}

	digest, err := decoder.Decode(storedHash)
	if err != nil {
		return false, fmt.Errorf("decode crypt hash: %w", err)
	}

	return digest.MatchAdvanced(plaintext)
}

// BcryptStrategy compares plaintext with a bcrypt hash.
func BcryptStrategy(_ context.Context, plaintext, storedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// Hash schemes accepted by HashPassword.
const (
	SchemeBcrypt      = "bcrypt"
	SchemeSHA512Crypt = "sha512crypt"
)

// BcryptCost is the work factor used by HashPassword.
var BcryptCost = bcrypt.DefaultCost

// HashPassword produces a stored hash that the default strategies can verify.
func HashPassword(scheme, plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password is required")
	}

	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), BcryptCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return string(hash), nil
	case SchemeSHA512Crypt:
		hasher, err := shacrypt.New(shacrypt.WithVariant(shacrypt.VariantSHA512))
		if err != nil {
			return "", fmt.Errorf("sha512crypt: %w", err)
		}
		digest, err := hasher.Hash(plaintext)
		if err != nil {
			return "", fmt.Errorf("sha512crypt: %w", err)
		}
		return digest.Encode(), nil
	default:
		return "", fmt.Errorf("unsupported hash scheme %q", scheme)
	}
}
