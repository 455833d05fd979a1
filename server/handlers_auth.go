package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/admin-session/internal/errors"
	"github.com/jrsteele09/admin-session/sessionapi"
)

// LoginHandler exchanges {email,password} for an access token and sets the refresh cookie.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds sessionapi.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" || creds.Password == "" {
			s.metrics.observe("login", "invalid_request")
			writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
			return
		}

		tokens, err := s.auth.Login(creds.Email, creds.Password)
		switch {
		case apperrors.Is(err, apperrors.ErrBadCredentials):
			s.metrics.observe("login", "bad_credentials")
			s.logger.Info().Str("email", creds.Email).Err(err).Msg("login rejected")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		case apperrors.Is(err, apperrors.ErrEmailUnverified):
			s.metrics.observe("login", "email_unverified")
			writeError(w, http.StatusForbidden, "email_not_verified", "email address has not been verified")
			return
		case err != nil:
			s.metrics.observe("login", "error")
			s.logger.Error().Err(err).Msg("login failed")
			writeError(w, http.StatusInternalServerError, "server_error", "login failed")
			return
		}

		s.metrics.observe("login", "success")
		s.setRefreshCookie(w, r, tokens.RefreshToken.Token, tokens.RefreshToken.ExpiresAt)
		writeJSON(w, http.StatusOK, sessionapi.TokenResponse{
			AccessToken: tokens.AccessToken,
			ExpiresIn:   int(tokens.ExpiresIn.Seconds()),
		})
	}
}

// RefreshHandler rotates the refresh cookie and returns a new access token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokens, err := s.auth.Refresh(refreshCookie(r))
		if err != nil {
			s.metrics.observe("refresh", "failure")
			s.logger.Debug().Err(err).Msg("refresh rejected")
			s.clearRefreshCookie(w, r)
			writeError(w, http.StatusUnauthorized, "invalid_grant", "refresh token missing, expired or revoked")
			return
		}

		s.metrics.observe("refresh", "success")
		s.setRefreshCookie(w, r, tokens.RefreshToken.Token, tokens.RefreshToken.ExpiresAt)
		writeJSON(w, http.StatusOK, sessionapi.TokenResponse{
			AccessToken: tokens.AccessToken,
			ExpiresIn:   int(tokens.ExpiresIn.Seconds()),
		})
	}
}

// LogoutHandler revokes the refresh cookie. It always succeeds for the client.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Logout(refreshCookie(r)); err != nil {
			s.metrics.observe("logout", "error")
			s.logger.Warn().Err(err).Msg("revoking refresh token failed")
		} else {
			s.metrics.observe("logout", "success")
		}
		s.clearRefreshCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}
