package store

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := Open(path, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestToggleFavourite(t *testing.T) {
	s := testStore(t)

	fav, err := s.ToggleFavourite("u1", "g1")
	if err != nil {
		t.Fatal(err)
	}
	if !fav {
		t.Fatal("first toggle should mark favourite")
	}
	if ok, _ := s.IsFavourite("u1", "g1"); !ok {
		t.Fatal("IsFavourite should be true")
	}
	if ok, _ := s.IsFavourite("u2", "g1"); ok {
		t.Fatal("favourites must be per user")
	}

	if _, err := s.ToggleFavourite("u1", "g2"); err != nil {
		t.Fatal(err)
	}
	favs, err := s.ListFavourites("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 2 {
		t.Fatalf("got %d favourites, want 2", len(favs))
	}

	fav, err = s.ToggleFavourite("u1", "g1")
	if err != nil {
		t.Fatal(err)
	}
	if fav {
		t.Fatal("second toggle should clear favourite")
	}
	favs, _ = s.ListFavourites("u1")
	if _, ok := favs["g1"]; ok || len(favs) != 1 {
		t.Fatalf("favourites after untoggle: %v", favs)
	}
}

func TestToggleFavouriteRequiresIDs(t *testing.T) {
	s := testStore(t)
	if _, err := s.ToggleFavourite("", "g1"); err == nil {
		t.Fatal("expected error for empty user")
	}
}

func TestCookies(t *testing.T) {
	s := testStore(t)

	if _, err := s.GetCookie("jwt-co2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetCookie("jwt-co2", "tok", 0); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCookie("jwt-co2", "tok2", 0); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetCookie("jwt-co2")
	if err != nil || v != "tok2" {
		t.Fatalf("got %q/%v, want tok2", v, err)
	}
	if err := s.DeleteCookie("jwt-co2"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCookie("jwt-co2"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestExpiredCookie(t *testing.T) {
	s := testStore(t)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	if err := s.SetCookie("jwt-co2", "tok", now.Add(time.Minute).Unix()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetCookie("jwt-co2"); err != nil {
		t.Fatalf("cookie should still be valid: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.GetCookie("jwt-co2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired cookie to be gone, got %v", err)
	}
}

func TestTokenStorage(t *testing.T) {
	s := testStore(t)
	ts := s.TokenStorage("", "")

	if tok, err := ts.Load(); err != nil || tok != "" {
		t.Fatalf("empty jar: got %q/%v", tok, err)
	}

	exp := time.Now().Add(time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Save(signed); err != nil {
		t.Fatal(err)
	}

	var expires int64
	if err := s.db.QueryRow(`SELECT expires_unix FROM cookies WHERE name = 'jwt-co2'`).Scan(&expires); err != nil {
		t.Fatal(err)
	}
	if expires != exp.Unix() {
		t.Fatalf("expires: got %d, want %d", expires, exp.Unix())
	}

	if tok, _ := ts.Load(); tok != signed {
		t.Fatalf("Load: got %q", tok)
	}
	if err := ts.Remove(); err != nil {
		t.Fatal(err)
	}
	if tok, _ := ts.Load(); tok != "" {
		t.Fatalf("after Remove: got %q", tok)
	}
}

func TestSealedTokenStorage(t *testing.T) {
	s := testStore(t)
	ts := s.TokenStorage("jwt-co2", "correct horse")

	if err := ts.Save("tok"); err != nil {
		t.Fatal(err)
	}
	raw, err := s.GetCookie("jwt-co2")
	if err != nil {
		t.Fatal(err)
	}
	if !isSealed(raw) || strings.Contains(raw, "tok") {
		t.Fatalf("token stored in the clear: %q", raw)
	}
	if tok, err := ts.Load(); err != nil || tok != "tok" {
		t.Fatalf("Load: got %q/%v", tok, err)
	}

	if _, err := s.TokenStorage("jwt-co2", "wrong").Load(); err == nil {
		t.Fatal("expected error for wrong passphrase")
	}
	if _, err := s.TokenStorage("jwt-co2", "").Load(); !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed, got %v", err)
	}
}

func TestUnsealPlaintext(t *testing.T) {
	got, err := unseal("plain-token", "key")
	if err != nil || got != "plain-token" {
		t.Fatalf("got %q/%v", got, err)
	}
}
