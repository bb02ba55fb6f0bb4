package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ListFavourites returns the set of group ids userID marked as favourite.
func (s *Store) ListFavourites(userID string) (map[string]struct{}, error) {
	var ids []string
	if err := s.db.Select(&ids, `SELECT group_id FROM favourites WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("store: list favourites: %w", err)
	}

	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// IsFavourite reports whether userID marked groupID as favourite.
func (s *Store) IsFavourite(userID, groupID string) (bool, error) {
	var one int
	err := s.db.Get(&one, `SELECT 1 FROM favourites WHERE user_id = ? AND group_id = ?`, userID, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: is favourite: %w", err)
	}
	return true, nil
}

// ToggleFavourite flips groupID in userID's favourites and returns the new
// flag.
func (s *Store) ToggleFavourite(userID, groupID string) (bool, error) {
	if userID == "" || groupID == "" {
		return false, fmt.Errorf("store: toggle favourite: user and group are required")
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM favourites WHERE user_id = ? AND group_id = ?`, userID, groupID)
	if err != nil {
		return false, fmt.Errorf("store: delete favourite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: delete favourite: %w", err)
	}

	favourite := n == 0
	if favourite {
		if _, err := tx.Exec(
			`INSERT INTO favourites (user_id, group_id, created_at_unix) VALUES (?, ?, ?)`,
			userID, groupID, s.now().Unix(),
		); err != nil {
			return false, fmt.Errorf("store: insert favourite: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit favourite toggle: %w", err)
	}
	s.logger.Debug("store: favourite toggled", "user_id", userID, "group_id", groupID, "favourite", favourite)
	return favourite, nil
}
