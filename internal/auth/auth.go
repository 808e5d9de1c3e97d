// Package auth issues and verifies the opaque player tokens used by the
// HTTP API. A token is "<playerID>.<secret>"; only a bcrypt hash of the
// secret is stored, so a leaked database cannot mint valid tokens.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"troupe/internal/game"
)

type CredentialStore interface {
	PutCredential(ctx context.Context, playerID, secretHash string) error
	GetCredential(ctx context.Context, playerID string) (string, error)
}

type Manager struct {
	store CredentialStore
}

func NewManager(store CredentialStore) *Manager {
	return &Manager{store: store}
}

// Issue mints a fresh token for the player and stores its hash,
// replacing any previous credential. The plain token is returned exactly
// once.
func (m *Manager) Issue(ctx context.Context, playerID string) (string, error) {
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if err := m.store.PutCredential(ctx, playerID, string(hash)); err != nil {
		return "", err
	}
	return playerID + "." + secret, nil
}

// Verify checks a presented token and returns the player id it belongs
// to. Any malformed, unknown, or non-matching token yields
// game.ErrUnauthorized.
func (m *Manager) Verify(ctx context.Context, token string) (string, error) {
	i := strings.LastIndex(token, ".")
	if i <= 0 || i == len(token)-1 {
		return "", game.ErrUnauthorized
	}
	playerID, secret := token[:i], token[i+1:]
	hash, err := m.store.GetCredential(ctx, playerID)
	if err != nil {
		if errors.Is(err, game.ErrProfileNotFound) {
			return "", game.ErrUnauthorized
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return "", game.ErrUnauthorized
	}
	return playerID, nil
}
