package buddyline

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config defines the tunable surface of a [Client]. Zero values are filled
// from defaultConfig by [Builder], so callers only set what they care about.
type Config struct {
	// BaseURL is the root of the Buddyline REST backend, e.g.
	// "https://api.buddyline.app". Required.
	BaseURL string `validate:"required,http_url"`

	// UserAgent is sent on every request when non-empty.
	UserAgent string

	Timeouts TimeoutConfig
	Refresh  RefreshConfig
	Metrics  MetricsConfig
}

/*
====================================
TIMEOUT CONFIG
====================================
*/

// TimeoutConfig bounds each category of backend call. A call that exceeds its
// bound is abandoned and classified as a *NetworkError; no partial session
// state survives a timeout.
type TimeoutConfig struct {
	Login   time.Duration
	Refresh time.Duration
	Logout  time.Duration
	Request time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls proactive token refresh. Reactive 401 handling in the
// gateway is always on; the proactive probe only front-runs it when the access
// token is a JWT whose expiry is known.
type RefreshConfig struct {
	Proactive    bool
	ExpiryLeeway time.Duration
}

// MetricsConfig mirrors the engine-side metrics toggle: counters are atomic
// and cheap, but fully compiled out of the hot path when disabled.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Timeouts: TimeoutConfig{
			Login:   30 * time.Second,
			Refresh: 10 * time.Second,
			Logout:  10 * time.Second,
			Request: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			Proactive:    false,
			ExpiryLeeway: 30 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for structural problems. Builder calls it
// before wiring anything; callers constructing a Config by hand can call it
// directly for earlier feedback.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"login", c.Timeouts.Login},
		{"refresh", c.Timeouts.Refresh},
		{"logout", c.Timeouts.Logout},
		{"request", c.Timeouts.Request},
	} {
		if t.d <= 0 {
			return fmt.Errorf("invalid config: %s timeout must be positive", t.name)
		}
	}
	if c.Refresh.Proactive && c.Refresh.ExpiryLeeway <= 0 {
		return fmt.Errorf("invalid config: proactive refresh requires a positive expiry leeway")
	}
	return nil
}

type envConfig struct {
	BaseURL          string        `env:"BUDDYLINE_BASE_URL"`
	UserAgent        string        `env:"BUDDYLINE_USER_AGENT"`
	LoginTimeout     time.Duration `env:"BUDDYLINE_LOGIN_TIMEOUT"`
	RefreshTimeout   time.Duration `env:"BUDDYLINE_REFRESH_TIMEOUT"`
	LogoutTimeout    time.Duration `env:"BUDDYLINE_LOGOUT_TIMEOUT"`
	RequestTimeout   time.Duration `env:"BUDDYLINE_REQUEST_TIMEOUT"`
	ProactiveRefresh bool          `env:"BUDDYLINE_PROACTIVE_REFRESH"`
	MetricsEnabled   bool          `env:"BUDDYLINE_METRICS" envDefault:"true"`
}

// ConfigFromEnv builds a Config from BUDDYLINE_* environment variables on top
// of the package defaults. Unset variables keep their defaults; the result is
// not validated here because the Builder validates before use.
func ConfigFromEnv() (Config, error) {
	ec, err := env.ParseAs[envConfig]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := defaultConfig()
	cfg.BaseURL = ec.BaseURL
	cfg.UserAgent = ec.UserAgent
	if ec.LoginTimeout > 0 {
		cfg.Timeouts.Login = ec.LoginTimeout
	}
	if ec.RefreshTimeout > 0 {
		cfg.Timeouts.Refresh = ec.RefreshTimeout
	}
	if ec.LogoutTimeout > 0 {
		cfg.Timeouts.Logout = ec.LogoutTimeout
	}
	if ec.RequestTimeout > 0 {
		cfg.Timeouts.Request = ec.RequestTimeout
	}
	cfg.Refresh.Proactive = ec.ProactiveRefresh
	cfg.Metrics.Enabled = ec.MetricsEnabled
	return cfg, nil
}
