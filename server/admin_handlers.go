package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/admin-session/adminapi"
	apperrors "github.com/jrsteele09/admin-session/internal/errors"
	"github.com/jrsteele09/admin-session/internal/utils"
	"github.com/jrsteele09/admin-session/users"
)

// pageSize is the number of records per admin list page
const pageSize = 20

// pageParam reads the 1-based ?page= parameter.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func toAdminUser(u *users.User) adminapi.User {
	return adminapi.User{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		DateJoined: u.DateJoined,
		LastLogin:  u.LastLogin,
		Verified:   u.Verified,
		Blocked:    u.Blocked,
		IsAdmin:    u.IsAdmin,
	}
}

// AdminUsersListHandler lists users a page at a time
func (s *Server) AdminUsersListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := pageParam(r)

		all, err := s.users.List(0, 0)
		if err != nil {
			s.logger.Error().Err(err).Msg("listing users failed")
			writeError(w, http.StatusInternalServerError, "server_error", "listing users failed")
			return
		}
		list, err := s.users.List((page-1)*pageSize, pageSize)
		if err != nil {
			s.logger.Error().Err(err).Msg("listing users failed")
			writeError(w, http.StatusInternalServerError, "server_error", "listing users failed")
			return
		}

		items := make([]adminapi.User, 0, len(list))
		for _, u := range list {
			items = append(items, toAdminUser(u))
		}
		writeJSON(w, http.StatusOK, adminapi.Page[adminapi.User]{Items: items, Page: page, Total: len(all)})
	}
}

// validateNewUser reports form problems as ErrInvalidInput.
func validateNewUser(req adminapi.NewUser) error {
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "email %q", req.Email)
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	return nil
}

// AdminUserCreateHandler registers a user with a password
func (s *Server) AdminUserCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminapi.NewUser
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
			return
		}
		if err := validateNewUser(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if _, err := s.users.GetByEmail(req.Email); err == nil {
			writeError(w, http.StatusConflict, "conflict", "email already registered")
			return
		}

		hash, err := users.HashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", "hashing password failed")
			return
		}
		user := &users.User{
			Email:        req.Email,
			PasswordHash: hash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Verified:     req.Verified,
			IsAdmin:      req.IsAdmin,
		}
		if err := s.users.Upsert(user); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", "saving user failed")
			return
		}
		writeJSON(w, http.StatusCreated, toAdminUser(user))
	}
}

// AdminUserUpdateHandler applies the fields present in the patch
func (s *Server) AdminUserUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.users.GetByID(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}

		var patch adminapi.UserPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed body")
			return
		}

		updated := *user
		utils.Assign(&updated.FirstName, patch.FirstName)
		utils.Assign(&updated.LastName, patch.LastName)
		utils.Assign(&updated.Verified, patch.Verified)
		utils.Assign(&updated.Blocked, patch.Blocked)
		utils.Assign(&updated.IsAdmin, patch.IsAdmin)
		if err := s.users.Upsert(&updated); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", "saving user failed")
			return
		}
		if updated.Blocked && !user.Blocked {
			s.revokeSessions(updated.ID)
		}
		writeJSON(w, http.StatusOK, toAdminUser(&updated))
	}
}

// AdminUserDeleteHandler removes a user
func (s *Server) AdminUserDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.users.GetByID(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		if signedIn, _ := r.Context().Value(ContextKeyUserID).(string); user.ID == signedIn {
			writeError(w, http.StatusConflict, "conflict", "cannot delete the signed-in user")
			return
		}
		if err := s.users.Delete(user.Email); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "server_error", "deleting user failed")
			return
		}
		s.revokeSessions(user.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) revokeSessions(userID string) {
	if err := s.auth.RevokeUser(userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("revoking refresh tokens failed")
	}
}
