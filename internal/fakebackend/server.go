// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package fakebackend

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/models"
)

// Seeded account.
const (
	SeedEmail    = "moimo@email.com"
	SeedPassword = "12345678"
	SeedNickname = "moimo"
	SeedUserID   = int64(1)

	// ResetCode is the password reset code every reset request issues.
	ResetCode = "123456"

	// RefreshCookie names the HTTP-only refresh cookie.
	RefreshCookie = "refreshToken"
)

type account struct {
	user models.User
	hash []byte
}

// Server is the fake backend.
type Server struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time

	allowedOrigins []string
	authLimit      int
	authWindow     time.Duration

	mu             sync.Mutex
	accounts       map[int64]*account
	byEmail        map[string]int64
	refresh        map[string]int64
	resetCodes     map[string]string
	resetTokens    map[string]string
	meetings       map[int64]*models.Meeting
	participations map[int64]map[int64]string
	rooms          map[int64]*models.ChatRoom
	messages       map[int64][]models.ChatMessage
	nextUserID     int64
	nextMessageID  int64
	hits           map[string]int

	hub      *hub
	upgrader websocket.Upgrader
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithAccessTTL sets the access token lifetime. Default 15 minutes.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

// WithClock replaces time.Now for token issue and validation.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithSecret sets the HS256 signing key. Default is random per server.
func WithSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

// WithBcryptCost sets the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.bcryptCost = cost }
}

// WithAllowedOrigins sets the CORS origins. Default http://localhost:3000.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithAuthRateLimit caps credential endpoints at n requests per window per
// client IP. n <= 0 disables the limit. Default 60 per minute.
func WithAuthRateLimit(n int, window time.Duration) Option {
	return func(s *Server) {
		s.authLimit = n
		s.authWindow = window
	}
}

// New creates a seeded fake backend.
func New(opts ...Option) *Server {
	s := &Server{
		accessTTL:      15 * time.Minute,
		refreshTTL:     14 * 24 * time.Hour,
		bcryptCost:     bcrypt.DefaultCost,
		now:            time.Now,
		allowedOrigins: []string{"http://localhost:3000"},
		authLimit:      60,
		authWindow:     time.Minute,
		accounts:       make(map[int64]*account),
		byEmail:        make(map[string]int64),
		refresh:        make(map[string]int64),
		resetCodes:     make(map[string]string),
		resetTokens:    make(map[string]string),
		meetings:       make(map[int64]*models.Meeting),
		participations: make(map[int64]map[int64]string),
		rooms:          make(map[int64]*models.ChatRoom),
		messages:       make(map[int64][]models.ChatMessage),
		hits:           make(map[string]int),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secret) == 0 {
		s.secret = []byte(randomToken())
	}
	s.hub = newHub()
	s.seed()
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving /api and /ws.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("fake backend shutdown: %w", err)
		}
		return nil
	}
}

// Close disconnects every realtime client.
func (s *Server) Close() {
	s.hub.closeAll()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(correlate)
	r.Use(s.countHits)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.corsPolicy())

		r.Group(func(r chi.Router) {
			r.Use(s.limitCredentials())
			r.Post("/users/login", s.handleLogin)
			r.Post("/users/login/google", s.handleLoginGoogle)
			r.Post("/users/register", s.handleRegister)
			r.Post("/users/password-reset/request", s.handleResetRequest)
			r.Post("/users/password-reset/verify", s.handleResetVerify)
			r.Put("/users/password-reset/confirm", s.handleResetConfirm)
		})

		r.Post("/users/check-email", s.handleCheckEmail)
		r.Post("/users/check-nickname", s.handleCheckNickname)
		r.Post("/users/refresh", s.handleRefresh)
		r.Get("/users/verify", s.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/users/logout", s.handleLogout)
			r.Get("/users/{id}", s.handleGetUser)
			r.Put("/users/user-update", s.handleUpdateUser)
			r.Get("/meetings", s.handleListMeetings)
			r.Get("/meetings/me", s.handleMyMeetings)
			r.Get("/meetings/{id}", s.handleGetMeeting)
			r.Put("/meetings/{id}/participations", s.handleParticipations)
			r.Get("/chats/rooms", s.handleChatRooms)
		})
	})

	r.Get("/ws", s.handleSocket)
	return r
}

// Hits returns how many requests matched pattern, e.g. "POST /api/users/refresh".
func (s *Server) Hits(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[pattern]
}

// RoomJoins returns how many times any socket has joined the room.
func (s *Server) RoomJoins(meetingID int64) int {
	return s.hub.joinCount(meetingID)
}

// ============================================================================
// Tokens
// ============================================================================

type ctxKey struct{}

// TokenFor mints an access token for userID that expires after ttl. A
// negative ttl yields an already expired token.
func (s *Server) TokenFor(userID int64, ttl time.Duration) (string, error) {
	s.mu.Lock()
	acct, ok := s.accounts[userID]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("fake backend: no user %d", userID)
	}
	return s.signAccess(acct.user, ttl)
}

func (s *Server) signAccess(user models.User, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(user.ID, 10),
		"userId":   user.ID,
		"nickname": user.Nickname,
		"iat":      now.Add(-time.Second).Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// authenticate resolves the bearer token of r to an account id.
func (s *Server) authenticate(r *http.Request) (int64, error) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return 0, errors.New("missing access token")
	}

	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad subject: %w", err)
	}

	s.mu.Lock()
	_, ok := s.accounts[id]
	s.mu.Unlock()
	if !ok {
		return 0, errors.New("unknown user")
	}
	return id, nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired access token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func userIDFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxKey{}).(int64)
	return id
}

// issueSession writes a login response with a fresh access token and sets
// the refresh cookie.
func (s *Server) issueSession(w http.ResponseWriter, user models.User, isNew bool) {
	access, err := s.signAccess(user, s.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token signing failed")
		return
	}

	refresh := randomToken()
	s.mu.Lock()
	s.refresh[refresh] = user.ID
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    refresh,
		Path:     "/api/users",
		Expires:  s.now().Add(s.refreshTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, models.LoginResponse{AccessToken: access, IsNewUser: isNew, User: &user})
}

// refreshUser returns the account id bound to the request's refresh cookie.
func (s *Server) refreshUser(r *http.Request) (int64, bool) {
	c, err := r.Cookie(RefreshCookie)
	if err != nil || c.Value == "" {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refresh[c.Value]
	return id, ok
}

// ============================================================================
// Helpers
// ============================================================================

func randomToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("[fakebackend] write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.MessageResponse{Message: msg})
}

func decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
