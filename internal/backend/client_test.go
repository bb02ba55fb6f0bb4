package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify-jwt" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization: got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing request id")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"userTelegramId": 4242, "userId": "u1", "userName": "alice", "userNick": "Al"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, testLogger())
	id, err := c.Verify(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.TelegramID != "4242" || id.UserID != "u1" || id.UserName != "alice" || id.UserNick != "Al" {
		t.Fatalf("identity: %+v", id)
	}
	if id.JWT != "" {
		t.Fatalf("unexpected rotated token %q", id.JWT)
	}
}

func TestVerifyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger())
	_, err := c.Verify(context.Background(), "tok")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		t.Fatalf("expected StatusError 401, got %v", err)
	}
}

func TestVerifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMultipleChoices)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger())
	_, err := c.Verify(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error for 300")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatal("300 should not be reported as unauthorized")
	}
}

func TestVerifyTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, testLogger())
	if _, err := c.Verify(context.Background(), "tok"); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestVerifySharesInFlightRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		io.WriteString(w, `{"userId": "u1"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, testLogger())

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Verify(context.Background(), "tok"); err != nil {
				t.Errorf("Verify: %v", err)
			}
		}()
	}
	// Let the goroutines join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := hits.Load(); n != 1 {
		t.Fatalf("expected 1 backend hit, got %d", n)
	}
}

func TestListGroups(t *testing.T) {
	bodies := map[string]string{
		"array":   `[{"groupId": "g1", "groupName": "Team X", "groupLimits": "-1"}]`,
		"wrapped": `{"groups": [{"groupId": "g1", "groupName": "Team X", "groupLimits": "-1"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/groups" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				io.WriteString(w, body)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, time.Second, testLogger())
			groups, err := c.ListGroups(context.Background(), "tok")
			if err != nil {
				t.Fatalf("ListGroups: %v", err)
			}
			if len(groups) != 1 || groups[0].GroupID != "g1" || !groups[0].GroupLimits.Unlimited() {
				t.Fatalf("groups: %+v", groups)
			}
		})
	}
}

func TestGetGroupEscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/groups/a%2Fb" {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		io.WriteString(w, `{"groupId": "a/b", "groupName": "Slash"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger())
	g, err := c.GetGroup(context.Background(), "tok", "a/b")
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if g.GroupName != "Slash" {
		t.Fatalf("group: %+v", g)
	}
}

func TestHealthChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h := NewHealthChecker(srv.URL, "health", time.Hour, testLogger())
	h.check(context.Background())
	if !h.Healthy() {
		t.Fatal("any HTTP response should count as healthy")
	}

	srv.Close()
	h.check(context.Background())
	if h.Healthy() {
		t.Fatal("closed server should be unhealthy")
	}
}
