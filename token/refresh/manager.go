package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/admin-session/internal/errors"
)

const tokenLength = 64

// Manager handles refresh token creation, rotation and revocation
type Manager struct {
	repo    Repo
	expiry  time.Duration
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo: repo,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.expiry == 0 {
		m.expiry = 7 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Create generates a new refresh token for userID and stores it
func (m *Manager) Create(userID string) (*StoredRefreshToken, error) {
	tokenBytes := make([]byte, tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, errors.Wrap(err, "[Manager.Create] rand.Read")
	}

	now := m.nowFunc()
	rt := &StoredRefreshToken{
		Token:     hex.EncodeToString(tokenBytes),
		UserID:    userID,
		Iat:       now,
		ExpiresAt: now.Add(m.expiry),
	}
	if err := m.repo.Upsert(rt); err != nil {
		return nil, errors.Wrap(err, "[Manager.Create] Upsert")
	}
	return rt, nil
}

// Rotate exchanges a valid refresh token for a new one. The old token is always revoked.
func (m *Manager) Rotate(token string) (*StoredRefreshToken, error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrRefreshFailed, "[Manager.Rotate] unknown token")
	}
	if err := m.repo.Delete(token); err != nil {
		return nil, errors.Wrap(err, "[Manager.Rotate] Delete")
	}
	if m.IsExpired(rt) {
		return nil, errors.Wrap(apperrors.ErrRefreshFailed, "[Manager.Rotate] token expired")
	}
	return m.Create(rt.UserID)
}

// Revoke removes token. Unknown tokens are ignored so logout stays idempotent.
func (m *Manager) Revoke(token string) error {
	if err := m.repo.Delete(token); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return errors.Wrap(err, "[Manager.Revoke] Delete")
	}
	return nil
}

// RevokeUser removes every token issued to userID.
func (m *Manager) RevokeUser(userID string) error {
	return errors.Wrap(m.repo.DeleteByUserID(userID), "[Manager.RevokeUser] DeleteByUserID")
}

// IsExpired checks if a refresh token has passed its absolute expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return !m.nowFunc().Before(rt.ExpiresAt)
}
