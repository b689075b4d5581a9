package buddyline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/buddyline/buddyline-go/store"
)

func TestRefreshSingleFlight(t *testing.T) {
	var refreshCalls atomic.Int64
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_, _ = w.Write([]byte(`{"token":"T1","refreshToken":"R1"}`))
		case "/auth/refresh":
			refreshCalls.Add(1)
			<-release
			_, _ = w.Write([]byte(`{"token":"T2"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := New().WithConfig(testConfig(srv.URL)).WithStore(store.NewMemory()).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := client.Sessions().Login(context.Background(), "a@x.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	type outcome struct {
		token string
		err   error
	}
	results := make(chan outcome, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			token, err := client.Sessions().Refresh(context.Background())
			results <- outcome{token: token, err: err}
		}()
	}

	// Let every caller reach the single-flight gate while the one backend
	// call is parked, then release it.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			t.Fatalf("unexpected refresh error: %v", res.err)
		}
		if res.token != "T2" {
			t.Fatalf("refresh token = %q, want shared T2", res.token)
		}
	}

	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("backend refresh calls = %d, want exactly 1", got)
	}
	if got := client.Sessions().CurrentToken(); got != "T2" {
		t.Fatalf("CurrentToken = %q, want T2 after shared refresh", got)
	}
}

func TestRefreshSharedFailureFansOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_, _ = w.Write([]byte(`{"token":"T1","refreshToken":"R1"}`))
		case "/auth/refresh":
			<-release
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "down"})
		}
	}))
	t.Cleanup(srv.Close)

	client, err := New().WithConfig(testConfig(srv.URL)).WithStore(store.NewMemory()).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := client.Sessions().Login(context.Background(), "a@x.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := client.Sessions().Refresh(context.Background())
			errs <- err
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		if err == nil {
			t.Fatal("expected every shared waiter to receive the failure")
		}
		if first == nil {
			first = err
		}
	}
	// Tokens untouched after a non-401 refresh failure.
	if got := client.Sessions().CurrentToken(); got != "T1" {
		t.Fatalf("CurrentToken = %q, want untouched T1", got)
	}
}

func TestRefreshSurvivesWinnerCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_, _ = w.Write([]byte(`{"token":"T1","refreshToken":"R1"}`))
		case "/auth/refresh":
			<-release
			_, _ = w.Write([]byte(`{"token":"T2"}`))
		}
	}))
	t.Cleanup(srv.Close)

	client, err := New().WithConfig(testConfig(srv.URL)).WithStore(store.NewMemory()).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := client.Sessions().Login(context.Background(), "a@x.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	winnerCtx, cancelWinner := context.WithCancel(context.Background())
	winnerDone := make(chan struct{})
	go func() {
		defer close(winnerDone)
		_, _ = client.Sessions().Refresh(winnerCtx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancelWinner()
	time.Sleep(50 * time.Millisecond)
	close(release)
	<-winnerDone

	// The in-flight refresh was detached from the winner's context, so the
	// session still converges on the new token.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if client.Sessions().CurrentToken() == "T2" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("CurrentToken = %q, want T2 despite winner cancellation", client.Sessions().CurrentToken())
}
