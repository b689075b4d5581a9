package buddyline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/buddyline/buddyline-go/store"
)

// Status is the externally observable authentication state. The refreshing
// sub-state is internal to the single-flight critical section and never
// visible here.
type Status uint8

const (
	// StatusAnonymous means no access token is held.
	StatusAnonymous Status = iota
	// StatusAuthenticated means a non-empty access token is held.
	StatusAuthenticated
)

// Persisted credential keys: three independent string entries, no other
// on-disk format.
const (
	credKeyAccessToken  = "access-token"  // #nosec G101 -- key name, not a credential
	credKeyRefreshToken = "refresh-token" // #nosec G101
	credKeyProfile      = "user-profile"
)

// Session is an immutable snapshot of the authentication state, safe to hand
// to UI layers.
type Session struct {
	Status       Status
	AccessToken  string
	RefreshToken string
	Identity     *UserProfile
}

// doer abstracts the HTTP transport so tests can substitute one without a
// listener.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SessionManager owns the credential lifecycle: login, logout, and
// refresh-on-demand with single-flight coordination. It exclusively owns the
// in-memory session value; the credential store is a write-through cache.
//
// All methods are safe for concurrent use.
type SessionManager struct {
	cfg     Config
	http    doer
	store   store.Store
	log     zerolog.Logger
	metrics *Metrics

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	identity     *UserProfile

	refreshGroup singleflight.Group
}

func newSessionManager(cfg Config, transport doer, st store.Store, log zerolog.Logger, metrics *Metrics) *SessionManager {
	m := &SessionManager{
		cfg:     cfg,
		http:    transport,
		store:   st,
		log:     log,
		metrics: metrics,
	}
	m.restore(context.Background())
	return m
}

// restore loads persisted credentials at construction. Read failures are
// treated identically to absence; a corrupt persisted profile is treated as
// credential corruption and wipes all three keys.
func (m *SessionManager) restore(ctx context.Context) {
	accessToken := m.readKey(ctx, credKeyAccessToken)
	if accessToken == "" {
		return
	}
	refreshToken := m.readKey(ctx, credKeyRefreshToken)

	var identity *UserProfile
	if blob := m.readKey(ctx, credKeyProfile); blob != "" {
		var p UserProfile
		if err := json.Unmarshal([]byte(blob), &p); err != nil {
			m.log.Warn().Err(err).Msg("persisted profile corrupt; clearing credentials")
			m.wipeStore(ctx)
			return
		}
		identity = &p
	}

	m.mu.Lock()
	m.accessToken = accessToken
	m.refreshToken = refreshToken
	m.identity = identity
	m.mu.Unlock()
	m.log.Debug().Bool("refresh_token", refreshToken != "").Msg("session restored from credential store")
}

func (m *SessionManager) readKey(ctx context.Context, key string) string {
	v, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.metrics.Inc(MetricStorageFailure)
			m.log.Warn().Err(err).Str("key", key).Msg("credential read failed; treating as absent")
		}
		return ""
	}
	return v
}

type loginResponse struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	User         json.RawMessage `json:"user"`
}

// Login exchanges credentials at the backend token endpoint and, on success,
// persists the issued tokens and identity before transitioning to
// Authenticated. A 401 maps to ErrInvalidCredentials, a 429 to
// ErrTooManyAttempts; every other classified error passes through unchanged.
// A credential store write failure aborts the login with a *StorageError and
// leaves the prior in-memory session intact.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		m.metrics.Inc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeouts.Login)
	defer cancel()

	status, raw, err := m.postJSON(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		return nil, classifyTransport("login", err)
	}
	if cerr := classifyStatus(status, raw); cerr != nil {
		m.metrics.Inc(MetricLoginFailure)
		switch {
		case errors.Is(cerr, ErrUnauthorized):
			return nil, ErrInvalidCredentials
		case errors.Is(cerr, ErrRateLimited):
			return nil, ErrTooManyAttempts
		}
		return nil, cerr
	}

	var payload loginResponse
	if len(raw) == 0 || json.Unmarshal(raw, &payload) != nil || payload.Token == "" {
		m.metrics.Inc(MetricLoginFailure)
		return nil, ErrMalformedResponse
	}

	var identity *UserProfile
	if len(payload.User) > 0 && !bytes.Equal(payload.User, []byte("null")) {
		var p UserProfile
		if err := json.Unmarshal(payload.User, &p); err != nil {
			m.metrics.Inc(MetricLoginFailure)
			return nil, ErrMalformedResponse
		}
		identity = &p
	}

	if err := m.persistLogin(ctx, payload.Token, payload.RefreshToken, identity); err != nil {
		m.metrics.Inc(MetricLoginFailure)
		return nil, err
	}

	m.mu.Lock()
	m.accessToken = payload.Token
	m.refreshToken = payload.RefreshToken
	m.identity = identity
	m.mu.Unlock()

	m.metrics.Inc(MetricLoginSuccess)
	m.log.Info().Bool("refresh_token", payload.RefreshToken != "").Msg("login succeeded")
	return m.Snapshot(), nil
}

// persistLogin writes the issued credentials through to the store. Each key
// is an independent write; on the first failure the keys already written in
// this attempt are best-effort removed and a *StorageError is returned.
func (m *SessionManager) persistLogin(ctx context.Context, accessToken, refreshToken string, identity *UserProfile) error {
	var written []string
	rollback := func() {
		for _, key := range written {
			if derr := m.store.Delete(ctx, key); derr != nil {
				m.log.Warn().Err(derr).Str("key", key).Msg("login rollback delete failed")
			}
		}
	}
	write := func(key, value string) error {
		if err := m.store.Set(ctx, key, value); err != nil {
			m.metrics.Inc(MetricStorageFailure)
			rollback()
			return &StorageError{Op: "set", Key: key, Err: err}
		}
		written = append(written, key)
		return nil
	}
	remove := func(key string) error {
		if err := m.store.Delete(ctx, key); err != nil {
			m.metrics.Inc(MetricStorageFailure)
			rollback()
			return &StorageError{Op: "delete", Key: key, Err: err}
		}
		return nil
	}

	if err := write(credKeyAccessToken, accessToken); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := write(credKeyRefreshToken, refreshToken); err != nil {
			return err
		}
	} else if err := remove(credKeyRefreshToken); err != nil {
		// A stale refresh token from a previous account must not survive.
		return err
	}
	if identity != nil {
		blob, err := json.Marshal(identity)
		if err != nil {
			rollback()
			return &StorageError{Op: "encode", Key: credKeyProfile, Err: err}
		}
		if err := write(credKeyProfile, string(blob)); err != nil {
			return err
		}
	} else if err := remove(credKeyProfile); err != nil {
		return err
	}
	return nil
}

// Logout best-effort notifies the backend, then unconditionally clears the
// in-memory session and the credential store. It never fails from the
// caller's point of view: remote and storage failures are logged and
// swallowed.
func (m *SessionManager) Logout(ctx context.Context) error {
	token := m.CurrentToken()
	if token != "" {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Timeouts.Logout)
		if _, _, err := m.postJSON(nctx, "/auth/logout", nil, token); err != nil {
			m.log.Warn().Err(err).Msg("logout notification failed; clearing locally anyway")
		}
		cancel()
	}

	m.clearSession(ctx)
	m.metrics.Inc(MetricLogout)
	m.log.Info().Msg("logged out")
	return nil
}

// clearSession wipes in-memory state first, then the store, so no caller can
// observe a token the store still holds longer than the reverse would allow.
func (m *SessionManager) clearSession(ctx context.Context) {
	m.mu.Lock()
	m.accessToken = ""
	m.refreshToken = ""
	m.identity = nil
	m.mu.Unlock()
	m.wipeStore(ctx)
}

func (m *SessionManager) wipeStore(ctx context.Context) {
	for _, key := range []string{credKeyAccessToken, credKeyRefreshToken, credKeyProfile} {
		if err := m.store.Delete(ctx, key); err != nil {
			m.metrics.Inc(MetricStorageFailure)
			m.log.Warn().Err(err).Str("key", key).Msg("credential delete failed")
		}
	}
}

// Refresh mints a new access token from the stored refresh token. Refresh is
// single-flight: when one is already in flight, additional callers suspend on
// its outcome and every waiter receives the same token or the same error,
// with session state updated before any waiter resumes.
//
// A 401 from the refresh endpoint (or a missing refresh token) ends the
// session: both tokens are cleared and ErrSessionExpired is returned. Any
// other classified error leaves the existing tokens untouched.
func (m *SessionManager) Refresh(ctx context.Context) (string, error) {
	v, err, shared := m.refreshGroup.Do("refresh", func() (any, error) {
		// Detached from the winning caller's cancellation so one impatient
		// caller cannot poison the shared outcome.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Timeouts.Refresh)
		defer cancel()
		return m.doRefresh(rctx)
	})
	if shared {
		m.metrics.Inc(MetricRefreshShared)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

func (m *SessionManager) doRefresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	refreshToken := m.refreshToken
	m.mu.RUnlock()

	if refreshToken == "" {
		m.clearSession(ctx)
		m.metrics.Inc(MetricRefreshExpired)
		return "", ErrSessionExpired
	}

	status, raw, err := m.postJSON(ctx, "/auth/refresh", map[string]string{
		"refreshToken": refreshToken,
	}, "")
	if err != nil {
		m.metrics.Inc(MetricRefreshFailure)
		return "", classifyTransport("refresh", err)
	}
	if cerr := classifyStatus(status, raw); cerr != nil {
		if errors.Is(cerr, ErrUnauthorized) {
			m.clearSession(ctx)
			m.metrics.Inc(MetricRefreshExpired)
			m.log.Info().Msg("refresh token rejected; session ended")
			return "", ErrSessionExpired
		}
		m.metrics.Inc(MetricRefreshFailure)
		return "", cerr
	}

	var payload refreshResponse
	if len(raw) == 0 || json.Unmarshal(raw, &payload) != nil || payload.Token == "" {
		m.metrics.Inc(MetricRefreshFailure)
		return "", ErrMalformedResponse
	}

	m.mu.Lock()
	m.accessToken = payload.Token
	if payload.RefreshToken != "" {
		// Rotated by the backend; the old one is dead.
		m.refreshToken = payload.RefreshToken
	}
	m.mu.Unlock()

	if err := m.store.Set(ctx, credKeyAccessToken, payload.Token); err != nil {
		m.metrics.Inc(MetricStorageFailure)
		m.log.Warn().Err(err).Msg("refreshed token not persisted; in-memory token remains valid")
	}
	if payload.RefreshToken != "" {
		if err := m.store.Set(ctx, credKeyRefreshToken, payload.RefreshToken); err != nil {
			m.metrics.Inc(MetricStorageFailure)
			m.log.Warn().Err(err).Msg("rotated refresh token not persisted; next restart may need re-login")
		}
	}

	m.metrics.Inc(MetricRefreshSuccess)
	m.log.Debug().Msg("access token refreshed")
	return payload.Token, nil
}

// CurrentToken returns the in-memory access token without I/O, or "" when
// anonymous.
func (m *SessionManager) CurrentToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// IsAuthenticated reports whether a non-empty access token is held. An
// in-flight refresh does not change the answer.
func (m *SessionManager) IsAuthenticated() bool {
	return m.CurrentToken() != ""
}

// Identity returns a copy of the cached user profile, or nil when none was
// issued.
func (m *SessionManager) Identity() *UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return nil
	}
	cp := *m.identity
	return &cp
}

// Snapshot returns the current session as an immutable value.
func (m *SessionManager) Snapshot() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &Session{
		AccessToken:  m.accessToken,
		RefreshToken: m.refreshToken,
	}
	if m.accessToken != "" {
		s.Status = StatusAuthenticated
	}
	if m.identity != nil {
		cp := *m.identity
		s.Identity = &cp
	}
	return s
}

// canRefresh reports whether a refresh token is held.
func (m *SessionManager) canRefresh() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshToken != ""
}

// tokenExpiresWithin reports whether the current access token is a JWT whose
// expiry falls within leeway of now. Opaque tokens report false; the reactive
// 401 path covers them.
func (m *SessionManager) tokenExpiresWithin(leeway time.Duration) bool {
	token := m.CurrentToken()
	if token == "" {
		return false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return time.Until(claims.ExpiresAt.Time) < leeway
}

// postJSON issues a POST with an optional JSON body and optional bearer
// token, returning the status code and fully read body. Transport-level
// failures come back as the raw error for the caller to classify.
func (m *SessionManager) postJSON(ctx context.Context, path string, body any, bearer string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(m.cfg.BaseURL, path), reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if m.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", m.cfg.UserAgent)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func joinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
