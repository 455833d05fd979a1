package server

import (
	"github.com/pkg/errors"

	"github.com/jrsteele09/admin-session/users"
)

// InitialiseSystem makes sure the configured admin account exists. An existing account is
// left untouched so a changed password survives restarts.
func (s *Server) InitialiseSystem() error {
	email := s.config.GetAdminEmail()
	if _, err := s.users.GetByEmail(email); err == nil {
		return nil
	}

	password := s.config.GetAdminPassword()
	if err := users.ValidatePasswordStrength(password); err != nil {
		return errors.Wrap(err, "[Server InitialiseSystem] admin password")
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[Server InitialiseSystem] HashPassword")
	}

	admin := &users.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		Verified:     true,
		IsAdmin:      true,
	}
	if err := s.users.Upsert(admin); err != nil {
		return errors.Wrap(err, "[Server InitialiseSystem] Upsert")
	}

	event := s.logger.Info().Str("email", email).Str("user_id", admin.ID)
	if s.env == "DEV" {
		event = event.Str("password", password)
	}
	event.Msg("admin account created")
	return nil
}
