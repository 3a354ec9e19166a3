// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package gateway

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestEncodeBody(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		r, ct, err := encodeBody(nil)
		if err != nil || ct != "" || r != http.NoBody {
			t.Errorf("encodeBody(nil) = %v, %q, %v", r, ct, err)
		}
	})

	t.Run("json", func(t *testing.T) {
		r, ct, err := encodeBody(map[string]int{"meetingId": 3})
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(r)
		if ct != "application/json" || string(data) != `{"meetingId":3}` {
			t.Errorf("got %q %s", ct, data)
		}
	})

	t.Run("raw bytes", func(t *testing.T) {
		r, _, err := encodeBody([]byte(`{"a":1}`))
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(r)
		if string(data) != `{"a":1}` {
			t.Errorf("raw body altered: %s", data)
		}
	})

	t.Run("multipart by value", func(t *testing.T) {
		_, ct, err := encodeBody(Multipart{Fields: map[string]string{"bio": "hi"}})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(ct, "multipart/form-data; boundary=") {
			t.Errorf("content type = %q", ct)
		}
	})

	t.Run("unencodable", func(t *testing.T) {
		if _, _, err := encodeBody(make(chan int)); err == nil {
			t.Error("expected error for channel body")
		}
	})
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Method: "GET", Path: "/meetings/me", StatusCode: 401}
	if got := err.Error(); got != "GET /meetings/me: status 401: Unauthorized" {
		t.Errorf("Error() = %q", got)
	}
	if !IsUnauthorized(err) {
		t.Error("IsUnauthorized should be true")
	}
	if StatusCode(nil) != 0 {
		t.Error("StatusCode(nil) should be 0")
	}
}

func TestReadBodyForErrorTruncates(t *testing.T) {
	body := readBodyForError(strings.NewReader(strings.Repeat("x", maxErrorBodySize+10)))
	if !strings.HasSuffix(string(body), "(truncated)") {
		t.Error("expected truncation marker")
	}
}
