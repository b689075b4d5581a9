package buddyline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buddyline/buddyline-go/store"
)

func testConfig(baseURL string) Config {
	cfg := defaultConfig()
	cfg.BaseURL = baseURL
	cfg.Timeouts = TimeoutConfig{
		Login:   2 * time.Second,
		Refresh: 2 * time.Second,
		Logout:  2 * time.Second,
		Request: 2 * time.Second,
	}
	return cfg
}

func newTestClient(t *testing.T, handler http.Handler, st store.Store) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	if st == nil {
		st = store.NewMemory()
	}
	client, err := New().WithConfig(testConfig(srv.URL)).WithStore(st).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return client
}

func newTestClientDisabledMetrics(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New().
		WithConfig(testConfig(srv.URL)).
		WithStore(store.NewMemory()).
		WithMetricsEnabled(false).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return client
}

// failingStore wraps a real store and fails selected operations, for
// persistence failure paths.
type failingStore struct {
	store.Store
	failSet    map[string]bool
	failDelete map[string]bool
	failGet    map[string]bool
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	if f.failSet[key] {
		return errDiskFull
	}
	return f.Store.Set(ctx, key, value)
}

func (f *failingStore) Delete(ctx context.Context, key string) error {
	if f.failDelete[key] {
		return errDiskFull
	}
	return f.Store.Delete(ctx, key)
}

func (f *failingStore) Get(ctx context.Context, key string) (string, error) {
	if f.failGet[key] {
		return "", errDiskFull
	}
	return f.Store.Get(ctx, key)
}

func mustGet(t *testing.T, st store.Store, key string) string {
	t.Helper()
	v, err := st.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %q failed: %v", key, err)
	}
	return v
}

func mustAbsent(t *testing.T, st store.Store, key string) {
	t.Helper()
	if _, err := st.Get(context.Background(), key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected %q to be absent, got err=%v", key, err)
	}
}
