// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/moimo/internal/models"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

func TestValidate_LoginRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   models.LoginRequest
		wantErr bool
		field   string
	}{
		{"seeded account", models.LoginRequest{Email: "moimo@email.com", Password: "12345678"}, false, ""},
		{"missing email", models.LoginRequest{Password: "12345678"}, true, "email"},
		{"malformed email", models.LoginRequest{Email: "moimo", Password: "12345678"}, true, "email"},
		{"missing password", models.LoginRequest{Email: "moimo@email.com"}, true, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if _, ok := err.Fields()[tt.field]; !ok {
				t.Errorf("expected failing field %q, got %v", tt.field, err.Fields())
			}
		})
	}
}

func TestValidate_ReturnsUntypedNil(t *testing.T) {
	err := Validate(&models.CheckEmailRequest{Email: "a@b.io"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestValidate_Messages(t *testing.T) {
	err := ValidateStruct(&models.RegisterRequest{Email: "a@b.io", Password: "short", Nickname: "ok"})
	if err == nil {
		t.Fatal("expected error for short password")
	}
	if !strings.Contains(err.Error(), "password must be at least 8 characters") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestValidate_ParticipationsDive(t *testing.T) {
	req := models.ParticipationsRequest{
		Participations: []models.ParticipationUpdate{{UserID: 1, Status: "maybe"}},
	}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected error for unknown status")
	}
	if err.Errors()[0].Tag() != "oneof" {
		t.Errorf("expected oneof failure, got %s", err.Errors()[0].Tag())
	}

	if err := ValidateStruct(&models.ParticipationsRequest{}); err == nil {
		t.Error("expected error for empty participation list")
	}
}

type nicknameForm struct {
	Nickname string `json:"nickname" validate:"nickname"`
}

func TestValidate_NicknameRule(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"moimo", true},
		{"모이모", true},
		{"moi_mo2", true},
		{"m", false},
		{"has space", false},
		{strings.Repeat("a", 21), false},
	}
	for _, tt := range tests {
		err := ValidateStruct(&nicknameForm{Nickname: tt.in})
		if (err == nil) != tt.want {
			t.Errorf("nickname %q: valid=%v, want %v", tt.in, err == nil, tt.want)
		}
	}
}
