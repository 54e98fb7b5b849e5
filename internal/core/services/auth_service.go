package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidServiceSecret = errors.New("invalid service secret")

// SecretVerifier checks the shared secret presented by trusted callers (the
// chat transport and the platform scheduler) against a bcrypt hash.
type SecretVerifier struct {
	hash []byte
}

func NewSecretVerifier(hash string) *SecretVerifier {
	return &SecretVerifier{hash: []byte(hash)}
}

// Verify reports whether secret matches. An unconfigured verifier rejects everything.
func (v *SecretVerifier) Verify(secret string) bool {
	if len(v.hash) == 0 || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(secret)) == nil
}

// HashSecret produces a value suitable for CRON_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth service: failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// AuthService issues API tokens to chat users on behalf of the transport.
type AuthService struct {
	verifier *SecretVerifier
	settings *SettingsService
	tokens   *TokenService
}

func NewAuthService(verifier *SecretVerifier, settings *SettingsService, tokens *TokenService) *AuthService {
	return &AuthService{
		verifier: verifier,
		settings: settings,
		tokens:   tokens,
	}
}

// IssueToken registers the user on first contact and returns a signed token.
func (s *AuthService) IssueToken(ctx context.Context, secret string, userID int64) (string, error) {
	if !s.verifier.Verify(secret) {
		return "", ErrInvalidServiceSecret
	}

	if _, err := s.settings.EnsureUserSettings(ctx, userID); err != nil {
		return "", err
	}

	return s.tokens.GenerateToken(userID)
}
