package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/admin-session/users"
)

// Manager mints and verifies the access tokens served by the auth API.
type Manager struct {
	signer            Signer
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

func WithAccessTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer: signer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 15 * time.Minute
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// CreateAccessToken signs a token for user and returns it with its lifetime.
func (m *Manager) CreateAccessToken(user *users.User) (string, time.Duration, error) {
	if user == nil {
		return "", 0, errors.New("[Manager.CreateAccessToken] user is required")
	}

	now := m.nowFunc()
	claims := &Claims{
		UserID: user.ID,
		Scopes: user.Scopes(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Subject:   user.ID,
			ID:        uuid.New().String(),
		},
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", 0, errors.Wrap(err, "[Manager.CreateAccessToken] Sign")
	}
	return signed, m.accessTokenExpiry, nil
}

// Verify validates signature, issuer and expiry of rawToken.
func (m *Manager) Verify(rawToken string) (*Claims, error) {
	return m.signer.Verify(rawToken)
}
