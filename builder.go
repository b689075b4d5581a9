package buddyline

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/buddyline/buddyline-go/store"
)

// Client bundles the session manager and gateway built over one shared
// configuration. It is the application-root-scope handle: construct one per
// logical device session and pass it (or its parts) to consumers explicitly;
// there is no hidden process-wide instance.
type Client struct {
	sessions *SessionManager
	gateway  *Gateway
	metrics  *Metrics
}

// Sessions returns the session manager.
func (c *Client) Sessions() *SessionManager { return c.sessions }

// Gateway returns the authenticated request gateway.
func (c *Client) Gateway() *Gateway { return c.gateway }

// MetricsSnapshot copies the SDK counters. Safe on a nil or metrics-disabled
// client; it then reports empty counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return c.metrics.Snapshot()
}

// Builder assembles a Client. Construction is allocation-only except for the
// single credential store read that restores a persisted session.
type Builder struct {
	config     Config
	store      store.Store
	httpClient *http.Client
	logger     *zerolog.Logger

	built bool
}

// New returns a Builder seeded with the package defaults.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets the backend root without replacing the rest of the config.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(st store.Store) *Builder {
	b.store = st
	return b
}

// WithHTTPClient overrides the transport. Defaults to a plain *http.Client;
// per-call deadlines come from Config.Timeouts, not from the client.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithMetricsEnabled toggles the atomic counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithProactiveRefresh enables the pre-dispatch expiry probe.
func (b *Builder) WithProactiveRefresh(enabled bool) *Builder {
	b.config.Refresh.Proactive = enabled
	return b
}

// Build validates the configuration, wires the parts, and restores any
// persisted session. A Builder is single-use.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	transport := b.httpClient
	if transport == nil {
		transport = &http.Client{}
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	var metrics *Metrics
	if b.config.Metrics.Enabled {
		metrics = NewMetrics()
	}

	sessions := newSessionManager(b.config, transport, b.store, logger, metrics)
	gateway := newGateway(b.config, transport, sessions, logger, metrics)

	return &Client{
		sessions: sessions,
		gateway:  gateway,
		metrics:  metrics,
	}, nil
}
