package dashboard

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gorilla/mux"

	"github.com/blikh/co2-dashboard/internal/backend"
	"github.com/blikh/co2-dashboard/internal/group"
	"github.com/blikh/co2-dashboard/internal/groupcard"
	"github.com/blikh/co2-dashboard/internal/session"
)

// handleIndex renders every group visible to the session, or the login
// form when there is no valid session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, cookies, err := s.openSession(r)
	if err != nil {
		return
	}
	defer sess.Close()

	st := sess.State()
	if st.Status != session.Authenticated {
		cookies.Apply(w)
		s.pages.render(w, http.StatusOK, "login", loginView{Error: r.URL.Query().Get("error") != ""})
		return
	}

	groups, err := s.groups.ListGroups(r.Context(), st.Token)
	if errors.Is(err, backend.ErrUnauthorized) {
		// The backend no longer accepts the token: drop the session.
		sess.Dispatch(session.Logout{})
		cookies.Apply(w)
		s.pages.render(w, http.StatusOK, "login", loginView{Expired: true})
		return
	}
	cookies.Apply(w)
	if err != nil {
		s.logger.Warn("dashboard: list groups failed", "err", err, "user", st.UserName)
		s.pages.render(w, http.StatusBadGateway, "error", errorView{Message: "The CO2 backend is unavailable. Try again later."})
		return
	}

	favs, err := s.favourites.ListFavourites(st.OwnerKey())
	if err != nil {
		s.logger.Warn("dashboard: list favourites failed", "err", err)
	}

	expanded := r.URL.Query()["expand"]
	view := indexView{User: st}
	for _, g := range orderByFavourite(groups, favs) {
		_, fav := favs[g.GroupID]
		card := groupcard.New(g, fav, nil, st.UserName, nil)
		if slices.Contains(expanded, g.GroupID) {
			card.ToggleExpand()
		}
		view.Cards = append(view.Cards, cardView{
			Card:      card,
			ExpandURL: toggleExpandURL(expanded, g.GroupID),
			ReturnTo:  r.URL.RequestURI(),
		})
	}
	s.pages.render(w, http.StatusOK, "index", view)
}

// handleGroup renders one card. expanded=1 opens the breakdown and
// donation=<id> opens the donation modal for one of the group's donations.
func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	sess, cookies, st, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	g, ok := s.fetchGroup(w, r, sess, cookies, st)
	if !ok {
		return
	}

	favs, err := s.favourites.ListFavourites(st.OwnerKey())
	if err != nil {
		s.logger.Warn("dashboard: list favourites failed", "err", err)
	}
	_, fav := favs[g.GroupID]

	card := groupcard.New(g, fav, nil, st.UserName, nil)
	q := r.URL.Query()
	if q.Get("expanded") == "1" {
		card.ToggleExpand()
	}
	if d := q.Get("donation"); d != "" && slices.Contains(g.Donations, d) {
		card.SelectDonation(d)
	}

	self := "/groups/" + url.PathEscape(g.GroupID)
	expandQ := url.Values{}
	if !card.Expanded() {
		expandQ.Set("expanded", "1")
	}
	s.pages.render(w, http.StatusOK, "group", groupView{
		User: st,
		Card: cardView{
			Card:      card,
			ExpandURL: withQuery(self, expandQ),
			ReturnTo:  r.URL.RequestURI(),
		},
		SelfURL: self,
	})
}

// handleLogin stores the submitted token and waits for the backend verdict.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.PostFormValue("token"))
	if token == "" {
		http.Redirect(w, r, "/?error=empty", http.StatusSeeOther)
		return
	}

	sess, cookies, err := s.openSession(r)
	if err != nil {
		return
	}
	defer sess.Close()

	sess.Dispatch(session.SetUser{JWT: token})
	if err := sess.Wait(r.Context()); err != nil {
		return
	}
	cookies.Apply(w)

	if sess.State().Status != session.Authenticated {
		s.logger.Info("dashboard: login rejected", "token", session.Fingerprint(token))
		http.Redirect(w, r, "/?error=rejected", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookies := session.NewCookieStorage(r, s.cookies)
	sess := session.New(r.Context(), session.Options{
		Storage:  cookies,
		Verifier: s.verifier,
		Timeout:  s.verifyTimeout,
		Logger:   s.logger,
	})
	defer sess.Close()

	// Logout supersedes the verification New may have started.
	sess.Dispatch(session.Logout{})
	cookies.Apply(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleFavourite flips the favourite flag and returns to the page the
// form was posted from.
func (s *Server) handleFavourite(w http.ResponseWriter, r *http.Request) {
	sess, cookies, st, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	g, ok := s.fetchGroup(w, r, sess, cookies, st)
	if !ok {
		return
	}

	var toggleErr error
	card := groupcard.New(g, false, func(groupID string) {
		_, toggleErr = s.favourites.ToggleFavourite(st.OwnerKey(), groupID)
	}, st.UserName, nil)
	card.ToggleFavourite()
	if toggleErr != nil {
		s.logger.Warn("dashboard: toggle favourite failed", "err", toggleErr, "group_id", g.GroupID)
		s.pages.render(w, http.StatusInternalServerError, "error", errorView{Message: "Could not update favourites."})
		return
	}

	http.Redirect(w, r, safeReturn(r.PostFormValue("return")), http.StatusSeeOther)
}

// handleIntent raises the donate, limit or stats intent on the card and
// follows the navigation it produces.
func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	sess, cookies, st, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	defer sess.Close()

	g, ok := s.fetchGroup(w, r, sess, cookies, st)
	if !ok {
		return
	}

	var target string
	card := groupcard.New(g, false, nil, st.UserName, groupcard.NavigatorFunc(func(path string) {
		target = path
	}))

	switch mux.Vars(r)["intent"] {
	case "donate":
		card.Donate()
	case "stats":
		card.Stats()
	case "limit":
		if !card.Limit() {
			http.NotFound(w, r)
			return
		}
	}
	s.frontendRedirect(w, r, target)
}

// requireSession opens the session and answers with a redirect to the
// login form unless it is authenticated. The cookie update is applied
// to the response either way.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (*session.Store, *session.CookieStorage, session.State, bool) {
	sess, cookies, err := s.openSession(r)
	if err != nil {
		return nil, nil, session.State{}, false
	}
	st := sess.State()
	if st.Status != session.Authenticated {
		sess.Close()
		cookies.Apply(w)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, nil, st, false
	}
	return sess, cookies, st, true
}

// fetchGroup loads the routed group and applies the session cookie. A
// rejected token logs the session out.
func (s *Server) fetchGroup(w http.ResponseWriter, r *http.Request, sess *session.Store, cookies *session.CookieStorage, st session.State) (group.Group, bool) {
	g, err := s.groups.GetGroup(r.Context(), st.Token, mux.Vars(r)["id"])
	var se *backend.StatusError
	switch {
	case err == nil:
		cookies.Apply(w)
		return g, true
	case errors.Is(err, backend.ErrUnauthorized):
		sess.Dispatch(session.Logout{})
		cookies.Apply(w)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.As(err, &se) && se.Code == http.StatusNotFound:
		cookies.Apply(w)
		http.NotFound(w, r)
	default:
		cookies.Apply(w)
		s.logger.Warn("dashboard: get group failed", "err", err, "group_id", mux.Vars(r)["id"])
		s.pages.render(w, http.StatusBadGateway, "error", errorView{Message: "The CO2 backend is unavailable. Try again later."})
	}
	return group.Group{}, false
}

// orderByFavourite lists favourite groups first, keeping backend order
// within each half.
func orderByFavourite(groups []group.Group, favs map[string]struct{}) []group.Group {
	out := make([]group.Group, 0, len(groups))
	for _, g := range groups {
		if _, ok := favs[g.GroupID]; ok {
			out = append(out, g)
		}
	}
	for _, g := range groups {
		if _, ok := favs[g.GroupID]; !ok {
			out = append(out, g)
		}
	}
	return out
}

// toggleExpandURL is the index URL with groupID's expansion flipped.
func toggleExpandURL(expanded []string, groupID string) string {
	q := url.Values{}
	found := false
	for _, id := range expanded {
		if id == groupID {
			found = true
			continue
		}
		q.Add("expand", id)
	}
	if !found {
		q.Add("expand", groupID)
	}
	return withQuery("/", q)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// safeReturn only follows local paths.
func safeReturn(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
