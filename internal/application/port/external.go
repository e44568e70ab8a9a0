package port

import "context"

// CredentialVerifier re-authenticates a user independently of their session
type CredentialVerifier interface {
	// Verify returns ErrInvalidCredential when the secret does not match
	Verify(ctx context.Context, userID, secret string) error
}

// MessageSender delivers a plain text message to an external chat account
type MessageSender interface {
	SendText(ctx context.Context, openID, text string) error
}
