package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func TestCookieStorageLoad(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	if got, _ := NewCookieStorage(req, CookieOptions{}).Load(); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "  tok  "})
	got, err := NewCookieStorage(req, CookieOptions{}).Load()
	if err != nil {
		t.Fatal(err)
	}
	if got != "tok" {
		t.Fatalf("got %q, want tok", got)
	}
}

func TestCookieStorageApplyNothing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	rr := httptest.NewRecorder()
	NewCookieStorage(req, CookieOptions{}).Apply(rr)
	if h := rr.Header().Get("Set-Cookie"); h != "" {
		t.Fatalf("unexpected Set-Cookie: %q", h)
	}
}

func TestCookieStorageSave(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, exp)

	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	c := NewCookieStorage(req, CookieOptions{Secure: true})
	if err := c.Save(token); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Load(); got != token {
		t.Fatalf("Load after Save: got %q", got)
	}

	rr := httptest.NewRecorder()
	c.Apply(rr)
	cookie, err := http.ParseSetCookie(rr.Header().Get("Set-Cookie"))
	if err != nil {
		t.Fatalf("ParseSetCookie: %v", err)
	}
	if cookie.Name != CookieName || cookie.Value != token {
		t.Fatalf("cookie: %s=%s", cookie.Name, cookie.Value)
	}
	if !cookie.Secure || !cookie.HttpOnly {
		t.Fatalf("expected secure http-only cookie")
	}
	if !cookie.Expires.Equal(exp) {
		t.Fatalf("expires: got %v, want %v", cookie.Expires, exp)
	}
}

func TestCookieStorageRemove(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok"})
	c := NewCookieStorage(req, CookieOptions{})
	if err := c.Remove(); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Load(); got != "" {
		t.Fatalf("Load after Remove: got %q", got)
	}

	rr := httptest.NewRecorder()
	c.Apply(rr)
	cookie, err := http.ParseSetCookie(rr.Header().Get("Set-Cookie"))
	if err != nil {
		t.Fatalf("ParseSetCookie: %v", err)
	}
	if cookie.MaxAge >= 0 {
		t.Fatalf("max-age = %d, want < 0", cookie.MaxAge)
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	if !ok || !got.Equal(exp) {
		t.Fatalf("got %v/%v, want %v", got, ok, exp)
	}
	if _, ok := TokenExpiry("not-a-jwt"); ok {
		t.Fatal("expected no expiry for opaque token")
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("") != "" {
		t.Fatal("empty token should have empty fingerprint")
	}
	a, b := Fingerprint("tok-a"), Fingerprint("tok-b")
	if a == b || len(a) != 12 {
		t.Fatalf("fingerprints: %q %q", a, b)
	}
	if a != Fingerprint("tok-a") {
		t.Fatal("fingerprint not stable")
	}
}
