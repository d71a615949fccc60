package session

import "storefront/internal/models"

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// State is an immutable snapshot of the session. User and Token are either
// both set or both empty.
type State struct {
	User   *models.User
	Token  string
	Status Status
	Err    string
}

func (s State) LoggedIn() bool {
	return s.User != nil && s.Token != ""
}

// IsAdmin reports whether the current user may use the back office.
func (s State) IsAdmin() bool {
	return s.User != nil && (s.User.Role == models.UserRoleAdmin || s.User.IsAdmin)
}

type event interface {
	apply(State) State
}

type requestStarted struct{}

type authSucceeded struct {
	user  models.User
	token string
}

type authFailed struct {
	message string
}

type restored struct {
	user  models.User
	token string
}

type loggedOut struct{}

type errorCleared struct{}

func (requestStarted) apply(s State) State {
	s.Status = StatusLoading
	s.Err = ""
	return s
}

func (e authSucceeded) apply(State) State {
	u := e.user
	return State{User: &u, Token: e.token, Status: StatusIdle}
}

// authFailed leaves the identity untouched.
func (e authFailed) apply(s State) State {
	s.Status = StatusError
	s.Err = e.message
	return s
}

func (e restored) apply(State) State {
	u := e.user
	return State{User: &u, Token: e.token, Status: StatusIdle}
}

func (loggedOut) apply(State) State {
	return State{Status: StatusIdle}
}

func (errorCleared) apply(s State) State {
	s.Status = StatusIdle
	s.Err = ""
	return s
}

func reduce(s State, e event) State {
	return e.apply(s)
}
