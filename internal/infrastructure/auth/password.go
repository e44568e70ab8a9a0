package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/garyjia/icsr-workflow/internal/application/port"
)

// DefaultCost is the bcrypt work factor for new password hashes
const DefaultCost = 12

// HashPassword hashes a password for storage in users.password_hash
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// PasswordVerifier re-authenticates users against their stored bcrypt hash
type PasswordVerifier struct {
	users  port.UserRepository
	logger *zap.Logger
}

// NewPasswordVerifier creates a verifier backed by the user store
func NewPasswordVerifier(users port.UserRepository, logger *zap.Logger) *PasswordVerifier {
	return &PasswordVerifier{users: users, logger: logger}
}

// Verify returns port.ErrInvalidCredential for unknown, inactive or mismatched users
func (v *PasswordVerifier) Verify(ctx context.Context, userID, secret string) error {
	user, err := v.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !user.IsActive || user.PasswordHash == "" || secret == "" {
		v.logger.Warn("Signature re-authentication rejected", zap.String("user_id", userID))
		return port.ErrInvalidCredential
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		v.logger.Warn("Signature re-authentication rejected", zap.String("user_id", userID))
		return port.ErrInvalidCredential
	}
	if err != nil {
		return fmt.Errorf("failed to compare password: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.CredentialVerifier = (*PasswordVerifier)(nil)
