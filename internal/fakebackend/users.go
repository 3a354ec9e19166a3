// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package fakebackend

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/moimo/internal/models"
	"github.com/tomtom215/moimo/internal/validation"
)

const maxUploadBytes = 5 << 20

// createAccount must be called with s.mu held.
func (s *Server) createAccount(email, password, nickname string) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	s.nextUserID++
	acct := &account{
		user: models.User{
			ID:        s.nextUserID,
			Email:     email,
			Nickname:  nickname,
			CreatedAt: s.now().UTC(),
		},
		hash: hash,
	}
	s.accounts[acct.user.ID] = acct
	s.byEmail[strings.ToLower(email)] = acct.user.ID
	return acct, nil
}

// nicknameTaken must be called with s.mu held.
func (s *Server) nicknameTaken(nickname string, except int64) bool {
	for id, a := range s.accounts {
		if id != except && strings.EqualFold(a.user.Nickname, nickname) {
			return true
		}
	}
	return false
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[s.byEmail[strings.ToLower(req.Email)]]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	s.issueSession(w, acct.user, false)
}

// handleLoginGoogle accepts any authorization code. Codes starting with
// "invalid" are rejected. The account email is derived from the code so the
// same code always logs in the same user.
func (s *Server) handleLoginGoogle(w http.ResponseWriter, r *http.Request) {
	var req models.GoogleLoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Code == "" || strings.HasPrefix(req.Code, "invalid") {
		writeError(w, http.StatusUnauthorized, "invalid authorization code")
		return
	}

	handle := sanitizeHandle(req.Code)
	email := "google_" + handle + "@gmail.com"

	s.mu.Lock()
	acct, exists := s.accounts[s.byEmail[email]]
	if !exists {
		nickname := "g_" + handle
		for n := 2; s.nicknameTaken(nickname, 0); n++ {
			nickname = fmt.Sprintf("g_%s%d", handle, n)
		}
		var err error
		acct, err = s.createAccount(email, randomToken(), nickname)
		if err != nil {
			s.mu.Unlock()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	user := acct.user
	s.mu.Unlock()

	s.issueSession(w, user, !exists)
}

// sanitizeHandle keeps letters and digits and caps the length so the
// derived nickname passes nickname validation.
func sanitizeHandle(code string) string {
	var b strings.Builder
	for _, r := range code {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() == 12 {
			break
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	if _, ok := s.byEmail[strings.ToLower(req.Email)]; ok {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if s.nicknameTaken(req.Nickname, 0) {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "nickname already taken")
		return
	}
	acct, err := s.createAccount(req.Email, req.Password, req.Nickname)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.issueSession(w, acct.user, true)
}

func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var req models.CheckEmailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	_, taken := s.byEmail[strings.ToLower(req.Email)]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.AvailabilityResponse{Available: !taken})
}

func (s *Server) handleCheckNickname(w http.ResponseWriter, r *http.Request) {
	var req models.CheckNicknameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	taken := s.nicknameTaken(req.Nickname, 0)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.AvailabilityResponse{Available: !taken})
}

// handleResetRequest always answers 200 so the endpoint does not reveal
// which addresses are registered.
func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(req.Email)
	s.mu.Lock()
	if _, ok := s.byEmail[email]; ok {
		s.resetCodes[email] = ResetCode
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "reset code sent"})
}

func (s *Server) handleResetVerify(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetVerifyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(req.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.resetCodes[email]
	if !ok || code != req.Code {
		writeError(w, http.StatusBadRequest, "invalid reset code")
		return
	}
	delete(s.resetCodes, email)
	token := uuid.NewString()
	s.resetTokens[token] = email
	writeJSON(w, http.StatusOK, models.PasswordResetVerifyResponse{ResetToken: token})
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetConfirmRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.resetTokens[req.ResetToken]
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid reset token")
		return
	}
	delete(s.resetTokens, req.ResetToken)
	s.accounts[s.byEmail[email]].hash = hash
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "password updated"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := s.refreshUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "refresh token missing or revoked")
		return
	}
	s.mu.Lock()
	user := s.accounts[id].user
	s.mu.Unlock()

	access, err := s.signAccess(user, s.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.RefreshResponse{AccessToken: access})
}

// handleVerify reports the session state. A valid access token wins. Failing
// that, a valid refresh cookie authenticates the session and the response
// carries a new access token.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if id, err := s.authenticate(r); err == nil {
		s.mu.Lock()
		user := s.accounts[id].user
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, models.SessionSnapshot{Authenticated: true, User: &user})
		return
	}

	id, ok := s.refreshUser(r)
	if !ok {
		writeJSON(w, http.StatusOK, models.SessionSnapshot{Authenticated: false})
		return
	}
	s.mu.Lock()
	user := s.accounts[id].user
	s.mu.Unlock()

	access, err := s.signAccess(user, s.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.SessionSnapshot{Authenticated: true, User: &user, AccessToken: access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(RefreshCookie); err == nil {
		s.mu.Lock()
		delete(s.refresh, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/api/users",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "logged out"})
}

// handleGetUser returns a profile. The email is only included for the caller.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	s.mu.Lock()
	acct, ok := s.accounts[id]
	var user models.User
	if ok {
		user = acct.user
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if id != userIDFrom(r) {
		user.Email = ""
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}
	update := models.UserUpdate{
		Nickname: r.FormValue("nickname"),
		Bio:      r.FormValue("bio"),
	}
	if err := validation.Validate(update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var image string
	if _, header, err := r.FormFile("profileImage"); err == nil {
		image = path.Base(header.Filename)
	}

	id := userIDFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if update.Nickname != "" && s.nicknameTaken(update.Nickname, id) {
		writeError(w, http.StatusConflict, "nickname already taken")
		return
	}
	acct := s.accounts[id]
	if update.Nickname != "" {
		acct.user.Nickname = update.Nickname
	}
	if update.Bio != "" {
		acct.user.Bio = update.Bio
	}
	if image != "" {
		acct.user.ProfileImage = fmt.Sprintf("/images/users/%d/%s", id, image)
	}
	writeJSON(w, http.StatusOK, acct.user)
}
