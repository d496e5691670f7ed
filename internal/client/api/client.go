// Package api is the client-side transport: a thin HTTP client for the
// hibi server that implements the provider/collection interfaces consumed
// by the session and store packages.
//
// TOKEN HANDLING:
// The server issues a JWT at login. Browsers keep it in a cookie; this
// client keeps it in memory and (optionally) in a mode-0600 token file so a
// restart doesn't mean signing in again. Every authenticated request sends
// it as "Authorization: Bearer <token>".
//
// SESSION FEED:
// The identity provider contract is a session-change feed. Over plain HTTP
// there is no such push channel, so the client synthesizes one: subscribers
// are notified with the resolved identity at startup (from the stored
// token, if any), after every successful sign-in, and with nil after
// sign-out. From the session package's point of view this is
// indistinguishable from a real provider feed.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mshiraki/hibi/internal/client/session"
	"github.com/mshiraki/hibi/internal/model"
)

var (
	// ErrServerRejected wraps any non-2xx response. The message carries
	// the server's machine-readable kind and human message.
	ErrServerRejected = errors.New("api: server rejected request")

	// ErrNotAuthenticated is the typed form of HTTP 401: the token is
	// missing, expired or revoked. It wraps ErrServerRejected, so callers
	// matching the broad sentinel still catch it, while the session and
	// store can tell an auth failure apart from any other rejection.
	ErrNotAuthenticated = fmt.Errorf("%w: not authenticated", ErrServerRejected)
)

// Client talks to one hibi server on behalf of one user.
type Client struct {
	baseURL   string
	http      *http.Client
	logger    *slog.Logger
	tokenFile string // empty = in-memory token only

	mu       sync.Mutex
	token    string
	identity *session.Identity
	subs     map[int]func(*session.Identity)
	nextSub  int
	resolve  sync.Once
}

// New creates a Client for the server at baseURL. tokenFile, when
// non-empty, names a file to persist the session token across runs.
func New(baseURL, tokenFile string, logger *slog.Logger) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
		tokenFile: tokenFile,
		subs:      make(map[int]func(*session.Identity)),
	}
	c.token = c.loadToken()
	return c
}

// =========================================================================
// session.Provider
// =========================================================================

// SubscribeSession registers a session-change callback. The first
// registration kicks off the initial resolution: if a stored token exists
// and still validates against /api/me, subscribers get that identity;
// otherwise they get nil. Either way, resolution ends.
func (c *Client) SubscribeSession(fn func(*session.Identity)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	c.resolve.Do(func() {
		go c.resolveStoredSession()
	})

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// SignIn exchanges credentials for a token and notifies the session feed.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}

	var res struct {
		User  model.User `json:"user"`
		Token string     `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &res); err != nil {
		return err
	}

	c.mu.Lock()
	c.token = res.Token
	c.mu.Unlock()
	c.saveToken(res.Token)

	c.emitSession(identityFromUser(&res.User))
	return nil
}

// SignUp registers a fresh email+password account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) error {
	body := map[string]string{
		"email":       email,
		"password":    password,
		"displayName": displayName,
	}

	var res struct {
		User  model.User `json:"user"`
		Token string     `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &res); err != nil {
		return err
	}

	c.mu.Lock()
	c.token = res.Token
	c.mu.Unlock()
	c.saveToken(res.Token)

	c.emitSession(identityFromUser(&res.User))
	return nil
}

// SignOut discards the token and notifies the feed. The server call is
// best-effort: a JWT can't be revoked server-side anyway, so a network
// failure here must not keep the user signed in locally.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		c.logger.Warn("logout request failed, discarding token anyway",
			slog.String("error", err.Error()))
	}

	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	c.clearToken()

	c.emitSession(nil)
	return nil
}

// UpdateDisplayName changes the profile name and returns the identity as
// the server confirmed it.
func (c *Client) UpdateDisplayName(ctx context.Context, name string) (*session.Identity, error) {
	var user model.User
	err := c.do(ctx, http.MethodPatch, "/api/me", map[string]string{"displayName": name}, &user)
	if err != nil {
		return nil, err
	}
	return identityFromUser(&user), nil
}

// resolveStoredSession turns the stored token (if any) into the initial
// feed notification.
func (c *Client) resolveStoredSession() {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		c.emitSession(nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var user model.User
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &user); err != nil {
		// Expired or revoked token: resolve to signed-out, drop the file.
		c.logger.Info("stored session no longer valid", slog.String("error", err.Error()))
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		c.clearToken()
		c.emitSession(nil)
		return
	}

	c.emitSession(identityFromUser(&user))
}

// emitSession records the identity and fans it out to all subscribers.
func (c *Client) emitSession(id *session.Identity) {
	c.mu.Lock()
	c.identity = id
	fns := make([]func(*session.Identity), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

func identityFromUser(u *model.User) *session.Identity {
	return &session.Identity{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// =========================================================================
// store.Collection (mutations; the subscription lives in stream.go)
// =========================================================================

// SaveEntry upserts the entry document at its id.
func (c *Client) SaveEntry(ctx context.Context, entry *model.Entry) error {
	return c.do(ctx, http.MethodPut, "/api/entries/"+entry.ID, entry, nil)
}

// DeleteEntry removes the entry document. The server treats delete as
// idempotent, so an already-gone id still succeeds.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/entries/"+id, nil, nil)
}

// =========================================================================
// plumbing
// =========================================================================

// do performs one JSON request/response round-trip. body and out may be
// nil. Non-2xx responses become ErrServerRejected (ErrNotAuthenticated for
// 401) with the server's error kind and message attached.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("api: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeServerError(res)
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("api: decoding response: %w", err)
		}
	}
	return nil
}

// authorize attaches the bearer token, when one is held.
func (c *Client) authorize(req *http.Request) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// decodeServerError turns the server's standard {"error","message"} body
// into a wrapped sentinel: ErrNotAuthenticated for 401, ErrServerRejected
// for everything else.
func decodeServerError(res *http.Response) error {
	kind := ErrServerRejected
	if res.StatusCode == http.StatusUnauthorized {
		kind = ErrNotAuthenticated
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil || body.Message == "" {
		return fmt.Errorf("%w: HTTP %d", kind, res.StatusCode)
	}
	return fmt.Errorf("%w: %s (%s)", kind, body.Message, body.Error)
}

// loadToken reads the persisted token, if a token file is configured.
func (c *Client) loadToken() string {
	if c.tokenFile == "" {
		return ""
	}
	data, err := os.ReadFile(c.tokenFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// saveToken persists the token with owner-only permissions.
func (c *Client) saveToken(token string) {
	if c.tokenFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenFile), 0700); err != nil {
		c.logger.Warn("failed to create token directory", slog.String("error", err.Error()))
		return
	}
	if err := os.WriteFile(c.tokenFile, []byte(token), 0600); err != nil {
		c.logger.Warn("failed to persist session token", slog.String("error", err.Error()))
	}
}

func (c *Client) clearToken() {
	if c.tokenFile == "" {
		return
	}
	if err := os.Remove(c.tokenFile); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove token file", slog.String("error", err.Error()))
	}
}
