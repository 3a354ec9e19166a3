// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/moimo/internal/credential"
	"github.com/tomtom215/moimo/internal/gateway"
	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/models"
	"github.com/tomtom215/moimo/internal/validation"
)

// ErrNoCredential is returned when a login-type call succeeds without
// issuing an access token.
var ErrNoCredential = errors.New("server issued no access token")

// Client is the typed REST client.
type Client struct {
	gw    *gateway.Gateway
	store credential.Store
}

// New creates a client sending through gw and storing credentials in store.
func New(gw *gateway.Gateway, store credential.Store) *Client {
	return &Client{gw: gw, store: store}
}

// Gateway returns the underlying gateway.
func (c *Client) Gateway() *gateway.Gateway {
	return c.gw
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if body != nil {
		if err := validation.Validate(body); err != nil {
			return err
		}
	}
	return c.gw.Do(ctx, &gateway.Request{Method: method, Path: path, Body: body}, result)
}

func idPath(template string, id int64) string {
	return strings.Replace(template, ":id", strconv.FormatInt(id, 10), 1)
}

// Login exchanges an email and password for a credential.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, gateway.PathLogin, req, &resp); err != nil {
		return nil, err
	}
	if err := c.adopt(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoginGoogle exchanges an OAuth authorization code for a credential.
func (c *Client) LoginGoogle(ctx context.Context, req models.GoogleLoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, gateway.PathLoginGoogle, req, &resp); err != nil {
		return nil, err
	}
	if err := c.adopt(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account. The server issues a credential for it.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, gateway.PathRegister, req, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		resp.User = &models.User{Email: req.Email, Nickname: req.Nickname}
	}
	if err := c.adopt(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// adopt stores the credential carried by a login-type response.
func (c *Client) adopt(resp *models.LoginResponse) error {
	if resp.AccessToken == "" {
		return ErrNoCredential
	}
	var (
		nickname string
		userID   *int64
	)
	if resp.User != nil {
		nickname = resp.User.Nickname
		if resp.User.ID != 0 {
			id := resp.User.ID
			userID = &id
		}
	}
	c.store.Login(nickname, resp.AccessToken, userID)
	return nil
}

// CheckEmail reports whether email is free to register.
func (c *Client) CheckEmail(ctx context.Context, email string) (bool, error) {
	var resp models.AvailabilityResponse
	err := c.do(ctx, http.MethodPost, gateway.PathCheckEmail, models.CheckEmailRequest{Email: email}, &resp)
	return resp.Available, err
}

// CheckNickname reports whether nickname is free to register.
func (c *Client) CheckNickname(ctx context.Context, nickname string) (bool, error) {
	var resp models.AvailabilityResponse
	err := c.do(ctx, http.MethodPost, gateway.PathCheckNickname, models.CheckNicknameRequest{Nickname: nickname}, &resp)
	return resp.Available, err
}

// RequestPasswordReset asks the server to send a reset code to email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, gateway.PathPasswordResetRequest, models.PasswordResetRequest{Email: email}, nil)
}

// VerifyPasswordReset exchanges a reset code for a reset token.
func (c *Client) VerifyPasswordReset(ctx context.Context, email, code string) (string, error) {
	var resp models.PasswordResetVerifyResponse
	req := models.PasswordResetVerifyRequest{Email: email, Code: code}
	if err := c.do(ctx, http.MethodPost, gateway.PathPasswordResetVerify, req, &resp); err != nil {
		return "", err
	}
	return resp.ResetToken, nil
}

// ConfirmPasswordReset sets a new password using a reset token.
func (c *Client) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	req := models.PasswordResetConfirmRequest{ResetToken: resetToken, NewPassword: newPassword}
	return c.do(ctx, http.MethodPut, gateway.PathPasswordResetConfirm, req, nil)
}

// Logout invalidates the server session. The local credential is cleared
// whatever the outcome.
func (c *Client) Logout(ctx context.Context) error {
	defer c.store.Logout()
	if err := c.do(ctx, http.MethodPost, gateway.PathLogout, nil, nil); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("server logout failed, clearing local credential")
		return err
	}
	return nil
}

// Refresh obtains and stores a new access credential.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.gw.Refresh(ctx)
}

// Verify fetches the session snapshot. It has no side effects on the store;
// see the session package for the cached, store-updating variant.
func (c *Client) Verify(ctx context.Context) (*models.SessionSnapshot, error) {
	var snap models.SessionSnapshot
	if err := c.do(ctx, http.MethodGet, gateway.PathVerify, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetUser fetches a user profile.
func (c *Client) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, idPath(gateway.PathUser, id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser updates the caller's profile. The request is always sent as
// multipart/form-data; image may be nil.
func (c *Client) UpdateUser(ctx context.Context, update models.UserUpdate, image *gateway.File) (*models.User, error) {
	if err := validation.Validate(update); err != nil {
		return nil, err
	}

	body := &gateway.Multipart{Fields: map[string]string{}}
	if update.Nickname != "" {
		body.Fields["nickname"] = update.Nickname
	}
	if update.Bio != "" {
		body.Fields["bio"] = update.Bio
	}
	if image != nil {
		f := *image
		if f.Field == "" {
			f.Field = "profileImage"
		}
		body.Files = append(body.Files, f)
	}

	var user models.User
	req := &gateway.Request{Method: http.MethodPut, Path: gateway.PathUserUpdate, Body: body}
	if err := c.gw.Do(ctx, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListMeetings fetches one page of meetings.
func (c *Client) ListMeetings(ctx context.Context, q models.MeetingQuery) (*models.MeetingPage, error) {
	if err := validation.Validate(q); err != nil {
		return nil, err
	}

	query := url.Values{}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		query.Set("size", strconv.Itoa(q.Size))
	}
	if q.Category != "" {
		query.Set("category", q.Category)
	}
	if q.Keyword != "" {
		query.Set("keyword", q.Keyword)
	}

	var page models.MeetingPage
	req := &gateway.Request{Method: http.MethodGet, Path: gateway.PathMeetings, Query: query}
	if err := c.gw.Do(ctx, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetMeeting fetches one meeting.
func (c *Client) GetMeeting(ctx context.Context, id int64) (*models.Meeting, error) {
	var m models.Meeting
	if err := c.do(ctx, http.MethodGet, idPath(gateway.PathMeeting, id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MyMeetings fetches the meetings the caller hosts or joined.
func (c *Client) MyMeetings(ctx context.Context) (*models.MyMeetings, error) {
	var mine models.MyMeetings
	if err := c.do(ctx, http.MethodGet, gateway.PathMyMeetings, nil, &mine); err != nil {
		return nil, err
	}
	return &mine, nil
}

// UpdateParticipations sets the participation status of several members of
// a meeting in one call.
func (c *Client) UpdateParticipations(ctx context.Context, meetingID int64, updates []models.ParticipationUpdate) error {
	req := models.ParticipationsRequest{Participations: updates}
	if err := c.do(ctx, http.MethodPut, idPath(gateway.PathParticipations, meetingID), req, nil); err != nil {
		return fmt.Errorf("update participations for meeting %d: %w", meetingID, err)
	}
	return nil
}

// ChatRooms fetches the caller's chat rooms, most recent first.
func (c *Client) ChatRooms(ctx context.Context) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	if err := c.do(ctx, http.MethodGet, gateway.PathChatRooms, nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}
