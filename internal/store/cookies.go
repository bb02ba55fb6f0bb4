package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/blikh/co2-dashboard/internal/session"
)

// GetCookie returns a stored cookie value. Expired cookies are deleted and
// reported as ErrNotFound.
func (s *Store) GetCookie(name string) (string, error) {
	var row cookieRow
	err := s.db.Get(&row, `SELECT value, expires_unix FROM cookies WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get cookie %s: %w", name, err)
	}
	if row.ExpiresUnix != 0 && s.now().Unix() >= row.ExpiresUnix {
		if err := s.DeleteCookie(name); err != nil {
			return "", err
		}
		return "", ErrNotFound
	}
	return row.Value, nil
}

type cookieRow struct {
	Value       string `db:"value"`
	ExpiresUnix int64  `db:"expires_unix"`
}

// SetCookie stores a cookie value. A zero expiresUnix never expires.
func (s *Store) SetCookie(name, value string, expiresUnix int64) error {
	_, err := s.db.Exec(
		`INSERT INTO cookies (name, value, expires_unix, updated_at_unix) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   value = excluded.value,
		   expires_unix = excluded.expires_unix,
		   updated_at_unix = excluded.updated_at_unix`,
		name, value, expiresUnix, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: set cookie %s: %w", name, err)
	}
	return nil
}

// DeleteCookie removes a cookie. Deleting a missing cookie is not an error.
func (s *Store) DeleteCookie(name string) error {
	if _, err := s.db.Exec(`DELETE FROM cookies WHERE name = ?`, name); err != nil {
		return fmt.Errorf("store: delete cookie %s: %w", name, err)
	}
	return nil
}

// TokenStorage returns a session.TokenStorage backed by the named cookie.
// A non-empty passphrase seals the token at rest.
func (s *Store) TokenStorage(name, passphrase string) session.TokenStorage {
	if name == "" {
		name = session.CookieName
	}
	return &cookieTokenStorage{store: s, name: name, passphrase: passphrase}
}

type cookieTokenStorage struct {
	store      *Store
	name       string
	passphrase string
}

func (c *cookieTokenStorage) Load() (string, error) {
	v, err := c.store.GetCookie(c.name)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return unseal(v, c.passphrase)
}

func (c *cookieTokenStorage) Save(token string) error {
	var expires int64
	if exp, ok := session.TokenExpiry(token); ok {
		expires = exp.Unix()
	}
	value := token
	if c.passphrase != "" {
		sealed, err := seal(token, c.passphrase)
		if err != nil {
			return err
		}
		value = sealed
	}
	return c.store.SetCookie(c.name, value, expires)
}

func (c *cookieTokenStorage) Remove() error {
	return c.store.DeleteCookie(c.name)
}
