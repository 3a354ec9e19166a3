// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/moimo/internal/credential"
	"github.com/tomtom215/moimo/internal/logging"
	"github.com/tomtom215/moimo/internal/metrics"
	"github.com/tomtom215/moimo/internal/models"
)

// Config configures a Gateway.
type Config struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// MaxRetries is how many times one logical request may be re-issued
	// after a refresh. Zero disables refresh-and-retry.
	MaxRetries int

	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int

	BreakerFailures int
	BreakerTimeout  time.Duration

	// HTTPClient overrides the default client. Its Jar must be set for the
	// refresh cookie to be sent back, and Timeout is not applied to it.
	HTTPClient *http.Client
}

// DefaultConfig returns gateway defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		Timeout:         30 * time.Second,
		MaxRetries:      1,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Gateway sends REST requests with credential injection and refresh-and-retry.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	store      credential.Store
	maxRetries int
	timeout    time.Duration
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[*response]
	refreshes  singleflight.Group
	sessionLog *logging.SessionLogger
}

// response is a fully read HTTP response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// New creates a gateway reading and writing credentials through store.
func New(cfg Config, store credential.Store) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway: base URL is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("gateway: max retries must be >= 0, got %d", cfg.MaxRetries)
	}
	if cfg.BreakerFailures < 1 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("gateway: create cookie jar: %w", err)
		}
		client = &http.Client{Jar: jar, Timeout: cfg.Timeout}
	}

	g := &Gateway{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: client,
		store:      store,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		cb:         newBreaker(cfg.BreakerFailures, cfg.BreakerTimeout),
		sessionLog: logging.NewSessionLogger(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return g, nil
}

// BaseURL returns the REST base URL without a trailing slash.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Do sends req and decodes a successful JSON response into result (which
// may be nil). See the package documentation for the recovery rules.
func (g *Gateway) Do(ctx context.Context, req *Request, result interface{}) error {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	route, _ := MatchRoute(req.Method, req.Path)

	retries := 0
	for {
		resp, usedToken, err := g.send(ctx, req, route)
		if err == nil {
			return decodeResult(resp, result)
		}

		if !g.shouldRecover(ctx, route, retries, err) {
			return err
		}
		retries++

		if !g.tokenReplaced(usedToken) {
			if _, rerr := g.refresh(ctx); rerr != nil {
				// The store was cleared by refresh; the caller sees the original 401.
				return err
			}
		}

		metrics.RecordRetry(route.Key())
		logging.Ctx(ctx).Info().
			Str("route", route.Key()).
			Int("retry", retries).
			Msg("retrying request with refreshed credential")
	}
}

// shouldRecover applies the 401 recovery rules in order.
func (g *Gateway) shouldRecover(ctx context.Context, route Route, retries int, err error) bool {
	if !IsUnauthorized(err) {
		return false
	}
	log := logging.Ctx(ctx).Debug().Str("route", route.Key())
	switch {
	case route.Public:
		log.Msg("401 on public route, not refreshing")
		return false
	case retries >= g.maxRetries:
		log.Int("retries", retries).Msg("401 after retry limit, surfacing error")
		return false
	case route.NoRetry:
		log.Msg("401 on no-retry route, surfacing error")
		return false
	}
	return true
}

// tokenReplaced reports whether the credential changed since usedToken was
// sent, meaning another request already refreshed it.
func (g *Gateway) tokenReplaced(usedToken string) bool {
	cur := g.store.Get()
	return usedToken != "" && cur.HasToken() && cur.Token != usedToken
}

// Refresh obtains a new credential from the refresh endpoint and stores it.
// Concurrent callers share one in-flight refresh.
func (g *Gateway) Refresh(ctx context.Context) (string, error) {
	return g.refresh(ctx)
}

func (g *Gateway) refresh(ctx context.Context) (string, error) {
	// A caller giving up must not cancel the refresh other callers are waiting on.
	rctx := context.WithoutCancel(ctx)

	// Do runs the closure on the leader's goroutine, and reports shared to
	// the leader as well once others have joined.
	ran := false
	v, err, shared := g.refreshes.Do("refresh", func() (interface{}, error) {
		ran = true
		token, err := g.doRefresh(rctx)
		metrics.RecordRefresh(err == nil, false)
		if err != nil {
			g.sessionLog.LogTokenRefresh(PathRefresh, false, err.Error())
			g.store.Logout()
			g.sessionLog.LogLogout("refresh_failed")
			return "", err
		}
		g.sessionLog.LogTokenRefresh(PathRefresh, true, "")
		return token, nil
	})
	if shared && !ran {
		metrics.RecordRefresh(err == nil, true)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Gateway) doRefresh(ctx context.Context) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	route, _ := MatchRoute(http.MethodPost, PathRefresh)
	resp, _, err := g.send(ctx, &Request{Method: http.MethodPost, Path: PathRefresh}, route)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	var out models.RefreshResponse
	if err := decodeResult(resp, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token in response", ErrRefreshFailed)
	}

	cur := g.store.Get()
	var userID *int64
	if cur.UserID != 0 {
		id := cur.UserID
		userID = &id
	}
	g.store.Login(cur.Nickname, out.AccessToken, userID)

	return out.AccessToken, nil
}

// send performs one HTTP attempt. It returns the token that was attached so
// the caller can tell whether a 401 was caused by a token already replaced.
func (g *Gateway) send(ctx context.Context, req *Request, route Route) (*response, string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, "", fmt.Errorf("%s %s: rate limiter: %w", req.Method, req.Path, err)
		}
	}

	hreq, token, err := g.buildRequest(ctx, req, route)
	if err != nil {
		return nil, "", err
	}

	metrics.TrackActiveRequest(true)
	defer metrics.TrackActiveRequest(false)
	start := time.Now()

	resp, err := g.execute(func() (*response, error) {
		return g.roundTrip(hreq, req)
	})

	status := "error"
	if code := StatusCode(err); code != 0 {
		status = strconv.Itoa(code)
	} else if resp != nil {
		status = strconv.Itoa(resp.status)
	}
	metrics.RecordGatewayRequest(req.Method, route.Template, status, time.Since(start))

	if err != nil && StatusCode(err) == 0 && !errors.Is(err, ErrCircuitOpen) {
		logging.Ctx(ctx).Warn().Err(err).Str("route", route.Key()).Msg("request failed")
	}

	return resp, token, err
}

func (g *Gateway) buildRequest(ctx context.Context, req *Request, route Route) (*http.Request, string, error) {
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, "", err
	}

	reqURL := g.baseURL + req.Path
	hreq, err := http.NewRequestWithContext(ctx, req.Method, reqURL, body)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	if len(req.Query) > 0 {
		hreq.URL.RawQuery = req.Query.Encode()
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("Accept", "application/json")
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		hreq.Header.Set(CorrelationHeader, id)
	}

	if isMultipart(req.Body) {
		hreq.Header.Del("Content-Type")
	}
	if contentType != "" {
		hreq.Header.Set("Content-Type", contentType)
	}

	var token string
	if route.Public {
		hreq.Header.Del("Authorization")
	} else if cred := g.store.Get(); cred.HasToken() {
		token = cred.Token
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	return hreq, token, nil
}

func (g *Gateway) roundTrip(hreq *http.Request, req *Request) (*response, error) {
	resp, err := g.httpClient.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Body:       readBodyForError(resp.Body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, req.Path, err)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

func decodeResult(resp *response, result interface{}) error {
	if result == nil || resp == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
