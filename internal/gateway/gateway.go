package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/chat-client/pkg/log"
)

// HeaderToken carries the anti-forgery token in both directions.
const HeaderToken = "X-CSRF-Token"

const maxBodySize = 8 << 20

// Persistence keeps the token and the session cookies across restarts.
type Persistence interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	SetCookies(ctx context.Context, cookies []*http.Cookie) error
}

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Request describes one call. An empty Method means GET; a nil Body sends no body.
type Request struct {
	Method string
	Body   any
}

// Gateway performs credentialed calls against the chat API. It attaches the
// last observed anti-forgery token to every request and records the token the
// server returns, on failures as well as on successes.
type Gateway struct {
	base    *url.URL
	client  *http.Client
	jar     http.CookieJar
	persist Persistence
	logger  zerolog.Logger

	mu          sync.Mutex
	token       string
	cookiePrint string
}

// New creates a Gateway seeded with the persisted token and cookies.
func New(ctx context.Context, cfg Config, persist Persistence, logger zerolog.Logger) (*Gateway, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	logger = logger.With().Str(log.FieldComponent, "gateway").Logger()
	g := &Gateway{
		base: base,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: log.Transport(cfg.Transport, logger),
			Jar:       jar,
		},
		jar:     jar,
		persist: persist,
		logger:  logger,
	}

	token, err := persist.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	g.token = token

	cookies, err := persist.Cookies(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring unreadable session cookies")
	} else if len(cookies) > 0 {
		jar.SetCookies(base, cookies)
		g.cookiePrint = fingerprint(jar.Cookies(base))
	}

	return g, nil
}

// Token returns the last observed anti-forgery token.
func (g *Gateway) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// Send calls path relative to the base URL. A 2xx response yields its body
// (nil when empty); anything else yields *HTTPError or *TransportError.
func (g *Gateway) Send(ctx context.Context, path string, req Request) (json.RawMessage, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	path = strings.TrimPrefix(path, "/")

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, g.base.JoinPath(path).String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	if token := g.Token(); token != "" {
		httpReq.Header.Set(HeaderToken, token)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	// Token and cookies are recorded before the status is inspected.
	persistCtx := context.WithoutCancel(ctx)
	g.rotate(persistCtx, resp.Header.Get(HeaderToken))
	g.saveCookies(persistCtx)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	data = bytes.TrimSpace(data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Body:    data,
			Details: parseDetails(data),
		}
	}

	if len(data) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

func (g *Gateway) rotate(ctx context.Context, token string) {
	if token == "" {
		return
	}

	g.mu.Lock()
	if token == g.token {
		g.mu.Unlock()
		return
	}
	g.token = token
	g.mu.Unlock()

	if err := g.persist.SetToken(ctx, token); err != nil {
		l := log.CtxOr(ctx, g.logger)
		l.Warn().Err(err).Msg("failed to persist rotated token")
	}
}

func (g *Gateway) saveCookies(ctx context.Context) {
	cookies := g.jar.Cookies(g.base)
	fp := fingerprint(cookies)

	g.mu.Lock()
	if fp == g.cookiePrint {
		g.mu.Unlock()
		return
	}
	g.cookiePrint = fp
	g.mu.Unlock()

	// The jar only reports name and value; scope them to the whole host.
	for _, c := range cookies {
		c.Path = "/"
	}
	if err := g.persist.SetCookies(ctx, cookies); err != nil {
		l := log.CtxOr(ctx, g.logger)
		l.Warn().Err(err).Msg("failed to persist session cookies")
	}
}

func fingerprint(cookies []*http.Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ";")
}
