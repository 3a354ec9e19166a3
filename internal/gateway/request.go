// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package gateway

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/goccy/go-json"
)

// CorrelationHeader carries the logging correlation id. The original
// attempt, the refresh and the retry of one logical request share it.
const CorrelationHeader = "X-Correlation-ID"

// Request describes one logical REST call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	// Body is JSON-encoded unless it is a *Multipart or []byte.
	Body interface{}
}

// Multipart is a multipart/form-data body. It is rebuilt for every attempt,
// so files are held in memory rather than as streams.
type Multipart struct {
	Fields map[string]string
	Files  []File
}

// File is one file part of a Multipart body.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// encodeBody returns the payload and the Content-Type it must be sent with.
// An empty content type means none.
func encodeBody(body interface{}) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return http.NoBody, "", nil
	case *Multipart:
		return encodeMultipart(b)
	case Multipart:
		return encodeMultipart(&b)
	case []byte:
		return bytes.NewReader(b), "application/json", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func encodeMultipart(m *Multipart) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range m.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	for _, f := range m.Files {
		var (
			part io.Writer
			err  error
		)
		if f.ContentType != "" {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
			h.Set("Content-Type", f.ContentType)
			part, err = w.CreatePart(h)
		} else {
			part, err = w.CreateFormFile(f.Field, f.Filename)
		}
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func isMultipart(body interface{}) bool {
	switch body.(type) {
	case *Multipart, Multipart:
		return true
	default:
		return false
	}
}
