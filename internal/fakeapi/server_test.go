package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
	token  string
}

func newBrowser(t *testing.T) (*browser, *Server) {
	t.Helper()
	srv, err := New(Config{TokenSecret: "test", TokenTTL: time.Minute, BcryptCost: bcrypt.MinCost}, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: ts.URL + "/api/", client: &http.Client{Jar: jar}}, srv
}

func (b *browser) do(method, path, body string) (int, string) {
	b.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, b.base+path, r)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("X-CSRF-Token", b.token)
	}

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	if token := resp.Header.Get("X-CSRF-Token"); token != "" {
		b.token = token
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp.StatusCode, string(data)
}

func TestServer_RequiresAntiForgeryToken(t *testing.T) {
	b, _ := newBrowser(t)

	status, body := b.do(http.MethodPost, "users/login", `{"user":{"username":"garfield","password":"123456"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.JSONEq(t, `["Invalid authenticity token"]`, body)
	require.NotEmpty(t, b.token, "token rotates even on rejection")

	status, _ = b.do(http.MethodPost, "users/login", `{"user":{"username":"garfield","password":"123456"}}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_TokenRotatesEveryResponse(t *testing.T) {
	b, _ := newBrowser(t)

	b.do(http.MethodGet, "users/restore_user", "")
	first := b.token
	b.do(http.MethodGet, "rooms", "")
	assert.NotEqual(t, first, b.token)
}

func TestServer_SeededSession(t *testing.T) {
	b, _ := newBrowser(t)
	b.do(http.MethodGet, "users/restore_user", "")

	status, body := b.do(http.MethodPost, "users/login", `{"user":{"username":"garfield","password":"wrong"}}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"errors":["The provided credentials were invalid."]}`, body)

	status, body = b.do(http.MethodPost, "users/login", `{"user":{"username":"garfield","password":"123456"}}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"user":{"id":1,"username":"garfield"}}`, body)

	status, body = b.do(http.MethodGet, "users/restore_user", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"user":{"id":1,"username":"garfield"}}`, body)

	status, body = b.do(http.MethodGet, "rooms", "")
	require.Equal(t, http.StatusOK, status)
	var rooms struct {
		Rooms map[string]struct {
			Name    string `json:"name"`
			OwnerID int64  `json:"ownerId"`
		} `json:"rooms"`
		Users map[string]json.RawMessage `json:"users"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &rooms))
	assert.Equal(t, "Garfield's First Room", rooms.Rooms["1"].Name)
	assert.Equal(t, "Sennacy's First Room", rooms.Rooms["2"].Name)
	assert.Len(t, rooms.Users, 2)

	status, _ = b.do(http.MethodDelete, "users/logout", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = b.do(http.MethodDelete, "users/logout", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = b.do(http.MethodGet, "users/restore_user", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)
}

func TestServer_MessageCreatesMentions(t *testing.T) {
	b, _ := newBrowser(t)
	b.do(http.MethodGet, "users/restore_user", "")
	b.do(http.MethodPost, "users/login", `{"user":{"username":"sennacy","password":"123456"}}`)

	status, body := b.do(http.MethodPost, "messages", `{"message":{"roomId":1,"body":"hi @garfield and @garfield and @nobody"}}`)
	require.Equal(t, http.StatusOK, status, body)

	status, body = b.do(http.MethodPost, "messages", `{"message":{"roomId":1,"body":""}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.JSONEq(t, `["Body can't be blank"]`, body)

	b.do(http.MethodDelete, "users/logout", "")
	b.do(http.MethodPost, "users/login", `{"user":{"username":"garfield","password":"123456"}}`)

	status, body = b.do(http.MethodGet, "mentions", "")
	require.Equal(t, http.StatusOK, status)
	var payload struct {
		Mentions map[string]struct {
			UserID    int64 `json:"userId"`
			MessageID int64 `json:"messageId"`
			Read      bool  `json:"read"`
		} `json:"mentions"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.Len(t, payload.Mentions, 1)
	for id, m := range payload.Mentions {
		assert.Equal(t, int64(1), m.UserID)
		assert.False(t, m.Read)

		status, _ = b.do(http.MethodPatch, "mentions/"+id+"/read", "")
		assert.Equal(t, http.StatusOK, status)
		status, _ = b.do(http.MethodPatch, "mentions/"+id+"/read", "")
		assert.Equal(t, http.StatusOK, status, "marking read twice is harmless")
	}
}

func TestServer_ReseedDropsSessions(t *testing.T) {
	b, srv := newBrowser(t)
	b.do(http.MethodGet, "users/restore_user", "")
	b.do(http.MethodPost, "users/login", `{"user":{"username":"garfield","password":"123456"}}`)

	require.NoError(t, srv.Reseed())

	status, _ := b.do(http.MethodGet, "mentions", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = b.do(http.MethodDelete, "users/logout", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_Signup(t *testing.T) {
	b, _ := newBrowser(t)
	b.do(http.MethodGet, "users/restore_user", "")

	status, body := b.do(http.MethodPost, "users", `{"user":{"username":"garfield","password":"123"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.JSONEq(t, `["Username has already been taken","Password is too short (minimum is 6 characters)"]`, body)

	status, body = b.do(http.MethodPost, "users", `{"user":{"username":"odie","password":"123456"}}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"user":{"id":3,"username":"odie"}}`, body)
}
