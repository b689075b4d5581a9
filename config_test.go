package buddyline

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with base url", func(c *Config) { c.BaseURL = "https://api.example.com" }, false},
		{"missing base url", func(c *Config) {}, true},
		{"non-http base url", func(c *Config) { c.BaseURL = "ftp://api.example.com" }, true},
		{"zero login timeout", func(c *Config) {
			c.BaseURL = "https://api.example.com"
			c.Timeouts.Login = 0
		}, true},
		{"negative refresh timeout", func(c *Config) {
			c.BaseURL = "https://api.example.com"
			c.Timeouts.Refresh = -time.Second
		}, true},
		{"proactive without leeway", func(c *Config) {
			c.BaseURL = "https://api.example.com"
			c.Refresh.Proactive = true
			c.Refresh.ExpiryLeeway = 0
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestDefaultTimeouts(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Timeouts.Login != 30*time.Second {
		t.Fatalf("login timeout = %v, want 30s", cfg.Timeouts.Login)
	}
	if cfg.Timeouts.Refresh != 10*time.Second {
		t.Fatalf("refresh timeout = %v, want 10s", cfg.Timeouts.Refresh)
	}
	if cfg.Timeouts.Logout != 10*time.Second {
		t.Fatalf("logout timeout = %v, want 10s", cfg.Timeouts.Logout)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("BUDDYLINE_BASE_URL", "https://api.example.com")
	t.Setenv("BUDDYLINE_USER_AGENT", "buddyline-test/1.0")
	t.Setenv("BUDDYLINE_LOGIN_TIMEOUT", "5s")
	t.Setenv("BUDDYLINE_PROACTIVE_REFRESH", "true")
	t.Setenv("BUDDYLINE_METRICS", "false")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if cfg.BaseURL != "https://api.example.com" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.UserAgent != "buddyline-test/1.0" {
		t.Fatalf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.Timeouts.Login != 5*time.Second {
		t.Fatalf("login timeout = %v, want override", cfg.Timeouts.Login)
	}
	if cfg.Timeouts.Refresh != 10*time.Second {
		t.Fatalf("refresh timeout = %v, want default kept", cfg.Timeouts.Refresh)
	}
	if !cfg.Refresh.Proactive {
		t.Fatal("proactive refresh should be enabled")
	}
	if cfg.Metrics.Enabled {
		t.Fatal("metrics should be disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("env config should validate: %v", err)
	}
}

func TestBuilderRequiresStore(t *testing.T) {
	if _, err := New().WithBaseURL("https://api.example.com").Build(); err == nil {
		t.Fatal("expected build to fail without a store")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().WithBaseURL("https://api.example.com")
	// First build fails on the missing store but still consumes the builder.
	_, _ = b.Build()
	if _, err := b.Build(); err == nil || err.Error() != "builder already used" {
		t.Fatalf("second build error = %v", err)
	}
}
