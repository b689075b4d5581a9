package buddyline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Gateway executes authenticated HTTP calls against the backend. It attaches
// the current access token, classifies every outcome into the closed error
// taxonomy, and resolves a 401 locally with exactly one refresh-and-retry per
// logical call. Every other error surfaces unchanged.
//
// All methods are safe for concurrent use.
type Gateway struct {
	cfg      Config
	http     doer
	sessions *SessionManager
	log      zerolog.Logger
	metrics  *Metrics
}

func newGateway(cfg Config, transport doer, sessions *SessionManager, log zerolog.Logger, metrics *Metrics) *Gateway {
	return &Gateway{
		cfg:      cfg,
		http:     transport,
		sessions: sessions,
		log:      log,
		metrics:  metrics,
	}
}

// Get issues an authenticated GET.
func (g *Gateway) Get(ctx context.Context, path string, headers http.Header) (json.RawMessage, error) {
	return g.Do(ctx, http.MethodGet, path, nil, headers)
}

// Post issues an authenticated POST with an optional JSON body.
func (g *Gateway) Post(ctx context.Context, path string, body any, headers http.Header) (json.RawMessage, error) {
	return g.Do(ctx, http.MethodPost, path, body, headers)
}

// Put issues an authenticated PUT with an optional JSON body.
func (g *Gateway) Put(ctx context.Context, path string, body any, headers http.Header) (json.RawMessage, error) {
	return g.Do(ctx, http.MethodPut, path, body, headers)
}

// Delete issues an authenticated DELETE.
func (g *Gateway) Delete(ctx context.Context, path string, headers http.Header) (json.RawMessage, error) {
	return g.Do(ctx, http.MethodDelete, path, nil, headers)
}

// Do executes one logical call. The request is rebuilt from scratch for the
// retry so the retried attempt carries the refreshed token; a second 401
// after a successful refresh comes back as ErrUnauthorized rather than
// looping.
func (g *Gateway) Do(ctx context.Context, method, path string, body any, headers http.Header) (json.RawMessage, error) {
	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeouts.Request)
	defer cancel()

	if g.cfg.Refresh.Proactive && g.sessions.canRefresh() && g.sessions.tokenExpiresWithin(g.cfg.Refresh.ExpiryLeeway) {
		if _, err := g.sessions.Refresh(ctx); err != nil {
			// The reactive 401 path remains authoritative.
			g.log.Debug().Err(err).Msg("proactive refresh failed; proceeding with current token")
		}
	}

	requestID := uuid.NewString()
	retried := false
	for {
		status, raw, err := g.dispatch(ctx, method, path, encoded, headers, requestID)
		if err != nil {
			g.metrics.Inc(MetricRequestFailure)
			return nil, classifyTransport(method+" "+path, err)
		}

		cerr := classifyStatus(status, raw)
		if cerr == nil {
			if len(raw) == 0 {
				g.metrics.Inc(MetricRequestSuccess)
				return json.RawMessage("{}"), nil
			}
			if verr := classifyBody(raw); verr != nil {
				g.metrics.Inc(MetricRequestFailure)
				return nil, verr
			}
			g.metrics.Inc(MetricRequestSuccess)
			g.log.Debug().Str("method", method).Str("path", path).Int("status", status).Bool("retried", retried).Msg("request completed")
			return json.RawMessage(raw), nil
		}

		if errors.Is(cerr, ErrUnauthorized) && !retried {
			retried = true
			g.metrics.Inc(MetricUnauthorizedRetry)
			g.log.Debug().Str("method", method).Str("path", path).Msg("unauthorized; refreshing and retrying once")
			if _, rerr := g.sessions.Refresh(ctx); rerr != nil {
				// The refresh's error, not the original 401.
				g.metrics.Inc(MetricRequestFailure)
				return nil, rerr
			}
			continue
		}

		g.metrics.Inc(MetricRequestFailure)
		g.log.Debug().Str("method", method).Str("path", path).Int("status", status).Msg("request failed")
		return nil, cerr
	}
}

// dispatch builds and sends a single attempt. The token is read fresh per
// attempt so a retry after refresh carries the replacement.
func (g *Gateway) dispatch(ctx context.Context, method, path string, body []byte, headers http.Header, requestID string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, joinURL(g.cfg.BaseURL, path), reader)
	if err != nil {
		return 0, nil, err
	}

	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := g.sessions.CurrentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := g.http.Do(req)
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
