package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/blikh/co2-dashboard/internal/backend"
	"github.com/blikh/co2-dashboard/internal/group"
	"github.com/blikh/co2-dashboard/internal/groupcard"
	"github.com/blikh/co2-dashboard/internal/session"
)

type sessionResponse struct {
	Status string `json:"status"`
	session.State
}

type groupResponse struct {
	Group       group.Group `json:"group"`
	IsFavourite bool        `json:"isFavourite"`
	IsAdmin     bool        `json:"isAdmin"`
	LimitToShow string      `json:"limitToShow"`
	DonatePath  string      `json:"donatePath"`
	LimitPath   string      `json:"limitPath,omitempty"`
	StatsPath   string      `json:"statsPath"`
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	sess, cookies, err := s.openSession(r)
	if err != nil {
		return
	}
	defer sess.Close()
	cookies.Apply(w)

	st := sess.State()
	writeJSON(w, http.StatusOK, sessionResponse{Status: st.Status.String(), State: st})
}

func (s *Server) handleAPIGroups(w http.ResponseWriter, r *http.Request) {
	sess, cookies, st, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	groups, err := s.groups.ListGroups(r.Context(), st.Token)
	if errors.Is(err, backend.ErrUnauthorized) {
		sess.Dispatch(session.Logout{})
		cookies.Apply(w)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session expired"})
		return
	}
	cookies.Apply(w)
	if err != nil {
		s.logger.Warn("dashboard: list groups failed", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backend unavailable"})
		return
	}

	favs, err := s.favourites.ListFavourites(st.OwnerKey())
	if err != nil {
		s.logger.Warn("dashboard: list favourites failed", "err", err)
	}

	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		_, fav := favs[g.GroupID]
		card := groupcard.New(g, fav, nil, st.UserName, nil)
		resp := groupResponse{
			Group:       g,
			IsFavourite: card.IsFavourite(),
			IsAdmin:     card.IsAdmin(),
			LimitToShow: card.LimitToShow(),
			DonatePath:  groupcard.DonatePath(g.GroupID, g.GroupName),
			StatsPath:   groupcard.StatsPath(g.GroupID),
		}
		if card.ShowLimitAction() {
			resp.LimitPath = groupcard.LimitPath(g.GroupID, g.GroupName, g.GroupLimits)
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIFavourite(w http.ResponseWriter, r *http.Request) {
	sess, cookies, st, ok := s.apiSession(w, r)
	if !ok {
		return
	}
	defer sess.Close()
	cookies.Apply(w)

	fav, err := s.favourites.ToggleFavourite(st.OwnerKey(), mux.Vars(r)["id"])
	if err != nil {
		s.logger.Warn("dashboard: toggle favourite failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not update favourites"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favourite": fav})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	backendStatus := "unknown"
	if s.health != nil {
		backendStatus = "down"
		if s.health.Healthy() {
			backendStatus = "up"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": backendStatus})
}

// apiSession is requireSession for JSON callers: it answers 401 instead
// of redirecting.
func (s *Server) apiSession(w http.ResponseWriter, r *http.Request) (*session.Store, *session.CookieStorage, session.State, bool) {
	sess, cookies, err := s.openSession(r)
	if err != nil {
		return nil, nil, session.State{}, false
	}
	st := sess.State()
	if st.Status != session.Authenticated {
		sess.Close()
		cookies.Apply(w)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not signed in"})
		return nil, nil, st, false
	}
	return sess, cookies, st, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
