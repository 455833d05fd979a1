package auth

import (
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/admin-session/internal/errors"
	"github.com/jrsteele09/admin-session/token"
	"github.com/jrsteele09/admin-session/token/refresh"
	"github.com/jrsteele09/admin-session/users"
)

// Tokens is the result of a login or refresh. The refresh token travels only as a cookie.
type Tokens struct {
	AccessToken  string
	ExpiresIn    time.Duration
	RefreshToken *refresh.StoredRefreshToken
	User         *users.User
}

// Service authenticates admin panel users and keeps their refresh tokens.
type Service struct {
	users         users.UserRepo
	accessTokens  *token.Manager
	refreshTokens *refresh.Manager
}

func NewService(userRepo users.UserRepo, accessTokens *token.Manager, refreshTokens *refresh.Manager) (*Service, error) {
	if userRepo == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if accessTokens == nil {
		return nil, errors.New("[NewService] access token manager is required")
	}
	if refreshTokens == nil {
		return nil, errors.New("[NewService] refresh token manager is required")
	}
	return &Service{
		users:         userRepo,
		accessTokens:  accessTokens,
		refreshTokens: refreshTokens,
	}, nil
}

// Login checks the password and issues a token pair.
// Unknown users, wrong passwords and blocked users are all ErrBadCredentials.
func (s *Service) Login(email, password string) (*Tokens, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrBadCredentials, "[Service.Login] unknown user")
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, errors.Wrap(apperrors.ErrBadCredentials, "[Service.Login] password mismatch")
	}
	if user.Blocked {
		return nil, errors.Wrap(apperrors.ErrBadCredentials, UserBlockedErr.Error())
	}
	if !user.Verified {
		return nil, errors.Wrap(apperrors.ErrEmailUnverified, "[Service.Login]")
	}

	if err := s.users.SetLastLogin(user.Email); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] SetLastLogin")
	}

	rt, err := s.refreshTokens.Create(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login]")
	}
	return s.issue(user, rt)
}

// Refresh rotates the refresh token and issues a new access token.
func (s *Service) Refresh(refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, errors.Wrap(apperrors.ErrRefreshFailed, "[Service.Refresh] missing refresh token")
	}

	rt, err := s.refreshTokens.Rotate(refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh]")
	}

	user, err := s.users.GetByID(rt.UserID)
	if err != nil || user.Blocked {
		_ = s.refreshTokens.Revoke(rt.Token)
		return nil, errors.Wrap(apperrors.ErrRefreshFailed, "[Service.Refresh] user unavailable")
	}
	return s.issue(user, rt)
}

// Logout revokes the refresh token. It succeeds for unknown or empty tokens.
func (s *Service) Logout(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return errors.Wrap(s.refreshTokens.Revoke(refreshToken), "[Service.Logout]")
}

// Authenticate verifies an access token presented on an API request.
func (s *Service) Authenticate(rawToken string) (*token.Claims, error) {
	claims, err := s.accessTokens.Verify(rawToken)
	if err != nil {
		return nil, errors.Wrap(InvalidAccessTokenErr, err.Error())
	}
	return claims, nil
}

// RevokeUser ends every session of userID. Their access tokens stay valid until they expire.
func (s *Service) RevokeUser(userID string) error {
	return errors.Wrap(s.refreshTokens.RevokeUser(userID), "[Service.RevokeUser]")
}

func (s *Service) issue(user *users.User, rt *refresh.StoredRefreshToken) (*Tokens, error) {
	accessToken, expiresIn, err := s.accessTokens.CreateAccessToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issue]")
	}
	return &Tokens{
		AccessToken:  accessToken,
		ExpiresIn:    expiresIn,
		RefreshToken: rt,
		User:         user,
	}, nil
}
