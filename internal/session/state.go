// Package session holds the signed-in user's identity and session token,
// keeps the token persisted, and verifies it against the backend whenever
// it changes.
package session

// Status is the lifecycle position of a session.
type Status int

const (
	// Unauthenticated means there is no token.
	Unauthenticated Status = iota
	// PendingVerification means a token is present but not yet confirmed.
	PendingVerification
	// Authenticated means the backend confirmed the token.
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case PendingVerification:
		return "pending_verification"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session. Identity fields stay empty until a
// verification succeeds.
type State struct {
	TelegramID string `json:"telegramId"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserNick   string `json:"userNick"`
	GroupID    string `json:"groupId"`
	Token      string `json:"-"`
	Status     Status `json:"-"`
}

// Identity is what the backend returns for a valid token. Empty fields are
// treated as absent. JWT is set only when the backend rotates the token.
type Identity struct {
	TelegramID string
	UserID     string
	UserName   string
	UserNick   string
	JWT        string
}

// Action is a session mutation. The set of actions is closed: SetUser and
// Logout are the only implementations.
type Action interface {
	sessionAction()
}

// SetUser merges the non-empty fields into the session. A JWT different
// from the current token starts a new verification.
type SetUser struct {
	TelegramID string
	UserID     string
	UserName   string
	UserNick   string
	JWT        string
	GroupID    string
}

// Logout resets the session and removes the persisted token.
type Logout struct{}

func (SetUser) sessionAction() {}
func (Logout) sessionAction()  {}

// OwnerKey identifies the user for data kept locally per user, such as
// favourites: UserID, then TelegramID, then UserName. It is empty when the
// session carries no identity.
func (st State) OwnerKey() string {
	switch {
	case st.UserID != "":
		return st.UserID
	case st.TelegramID != "":
		return st.TelegramID
	default:
		return st.UserName
	}
}

func (st *State) merge(a SetUser) {
	if a.TelegramID != "" {
		st.TelegramID = a.TelegramID
	}
	if a.UserID != "" {
		st.UserID = a.UserID
	}
	if a.UserName != "" {
		st.UserName = a.UserName
	}
	if a.UserNick != "" {
		st.UserNick = a.UserNick
	}
	if a.GroupID != "" {
		st.GroupID = a.GroupID
	}
	if a.JWT != "" {
		st.Token = a.JWT
	}
}
