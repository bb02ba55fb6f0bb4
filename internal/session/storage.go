package session

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// CookieName is the cookie holding the raw session token.
const CookieName = "jwt-co2"

// TokenStorage persists the session token across process restarts.
type TokenStorage interface {
	Load() (string, error)
	Save(token string) error
	Remove() error
}

// MemoryStorage keeps the token in memory.
type MemoryStorage struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStorage returns a MemoryStorage seeded with token.
func NewMemoryStorage(token string) *MemoryStorage {
	return &MemoryStorage{token: token}
}

func (m *MemoryStorage) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStorage) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStorage) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// CookieOptions controls the attributes of the session cookie.
type CookieOptions struct {
	Name   string
	Domain string
	Secure bool
}

type cookieOp int

const (
	cookieKeep cookieOp = iota
	cookieSet
	cookieClear
)

// CookieStorage reads the token from an incoming request and records
// mutations to be written onto the response with Apply. Writes are
// buffered because verification completes on another goroutine while the
// handler still owns the ResponseWriter.
type CookieStorage struct {
	opts    CookieOptions
	initial string

	mu    sync.Mutex
	op    cookieOp
	value string
}

// NewCookieStorage captures the session cookie of r.
func NewCookieStorage(r *http.Request, opts CookieOptions) *CookieStorage {
	if opts.Name == "" {
		opts.Name = CookieName
	}
	c := &CookieStorage{opts: opts}
	if r != nil {
		if cookie, err := r.Cookie(opts.Name); err == nil {
			c.initial = strings.TrimSpace(cookie.Value)
		}
	}
	return c
}

func (c *CookieStorage) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.op {
	case cookieSet:
		return c.value, nil
	case cookieClear:
		return "", nil
	}
	return c.initial, nil
}

func (c *CookieStorage) Save(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.op = cookieSet
	c.value = token
	return nil
}

func (c *CookieStorage) Remove() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.op = cookieClear
	c.value = ""
	return nil
}

// Apply writes the recorded mutation, if any, as a Set-Cookie header. It
// must be called before the response header is written.
func (c *CookieStorage) Apply(w http.ResponseWriter) {
	c.mu.Lock()
	op, value := c.op, c.value
	c.mu.Unlock()

	switch op {
	case cookieSet:
		cookie := c.cookie(value)
		if exp, ok := TokenExpiry(value); ok {
			cookie.Expires = exp
		}
		http.SetCookie(w, cookie)
	case cookieClear:
		cookie := c.cookie("")
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(w, cookie)
	}
}

func (c *CookieStorage) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     c.opts.Name,
		Value:    value,
		Path:     "/",
		Domain:   c.opts.Domain,
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
