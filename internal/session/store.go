// Package session owns the authenticated identity of the storefront client:
// login, registration, logout, restoring a persisted session at startup and
// the admin predicate derived from the current user.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"storefront/internal/authclient"
	"storefront/internal/models"
	"storefront/internal/storage"
)

const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Authenticator is the backend surface the store needs. *authclient.Client
// satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (authclient.AuthResponse, error)
	Register(ctx context.Context, email, password, name string) (authclient.AuthResponse, error)
	GoogleLogin(ctx context.Context, profile authclient.GoogleProfile) (authclient.AuthResponse, error)
	GoogleRegister(ctx context.Context, profile authclient.GoogleProfile) (authclient.AuthResponse, error)
}

// GoogleCredential is the ID token handed out by Google Sign-In.
type GoogleCredential struct {
	IDToken string
}

type Store struct {
	mu         sync.Mutex
	state      State
	storage    storage.Storage
	auth       Authenticator
	adminEmail string
	log        zerolog.Logger

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewStore returns an empty, logged-out store. adminEmail is the reserved
// address that is granted admin regardless of role; empty disables it.
func NewStore(st storage.Storage, auth Authenticator, adminEmail string, log zerolog.Logger) *Store {
	return &Store{
		state:      State{Status: StatusIdle},
		storage:    st,
		auth:       auth,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		log:        log.With().Str("component", "session").Logger(),
		subs:       make(map[int]func(State)),
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) IsAdmin() bool {
	return s.State().IsAdmin()
}

// AuthHeader is the Authorization header value for the current token, or ""
// when logged out.
func (s *Store) AuthHeader() string {
	st := s.State()
	if !st.LoggedIn() {
		return ""
	}
	return "Bearer " + st.Token
}

func (s *Store) Login(ctx context.Context, email, password string, google *GoogleCredential) (models.User, error) {
	email = strings.TrimSpace(email)
	useGoogle, err := validateCredentials(email, password, google)
	if err != nil {
		return models.User{}, err
	}

	if useGoogle {
		profile, err := googleProfile(email, google)
		if err != nil {
			return models.User{}, err
		}
		return s.authenticate(ctx, "login", func() (authclient.AuthResponse, error) {
			return s.auth.GoogleLogin(ctx, profile)
		})
	}

	return s.authenticate(ctx, "login", func() (authclient.AuthResponse, error) {
		return s.auth.Login(ctx, email, password)
	})
}

// Register mirrors Login. On the password path the password must be at
// least MinPasswordLength characters and the email must look like
// local@domain.tld.
func (s *Store) Register(ctx context.Context, email, password string, google *GoogleCredential) (models.User, error) {
	email = strings.TrimSpace(email)
	useGoogle, err := validateCredentials(email, password, google)
	if err != nil {
		return models.User{}, err
	}

	if useGoogle {
		profile, err := googleProfile(email, google)
		if err != nil {
			return models.User{}, err
		}
		return s.authenticate(ctx, "register", func() (authclient.AuthResponse, error) {
			return s.auth.GoogleRegister(ctx, profile)
		})
	}

	if !emailPattern.MatchString(email) {
		return models.User{}, &ValidationError{Field: "email", Reason: "must look like name@domain.tld"}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return models.User{}, &ValidationError{
			Field:  "password",
			Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength),
		}
	}

	return s.authenticate(ctx, "register", func() (authclient.AuthResponse, error) {
		return s.auth.Register(ctx, email, password, "")
	})
}

// Logout forgets the session in memory and in storage. It cannot fail;
// storage errors are logged.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.state = reduce(s.state, loggedOut{})
	if err := s.storage.Delete(ctx, storage.KeyToken, storage.KeyUser); err != nil {
		s.log.Error().Err(err).Msg("clear persisted session failed")
	}
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) ClearError() {
	s.mu.Lock()
	s.state = reduce(s.state, errorCleared{})
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
}

// Restore loads the persisted session. A token without a user (or the
// reverse) is dropped silently. An unreadable user record is cleared and
// reported as *CorruptStateError; the store is then logged out and usable.
// The admin flag is always recomputed from the loaded record.
func (s *Store) Restore(ctx context.Context) error {
	token, err := s.read(ctx, storage.KeyToken)
	if err != nil {
		return err
	}
	rawUser, err := s.read(ctx, storage.KeyUser)
	if err != nil {
		return err
	}

	if len(token) == 0 && len(rawUser) == 0 {
		return nil
	}
	if len(token) == 0 || len(rawUser) == 0 {
		s.log.Warn().Msg("dropping half-persisted session")
		s.clearPersisted(ctx)
		return nil
	}

	var user models.User
	if err := json.Unmarshal(rawUser, &user); err != nil {
		return s.corrupt(ctx, err)
	}
	if user.ID == "" {
		return s.corrupt(ctx, errors.New("user record has no id"))
	}

	user = user.DeriveAdmin(s.adminEmail)

	s.mu.Lock()
	s.state = reduce(s.state, restored{user: user, token: string(token)})
	snap := s.snapshot()
	s.mu.Unlock()

	s.log.Debug().Str("user_id", user.ID).Bool("admin", user.IsAdmin).Msg("session restored")
	s.notify(snap)
	return nil
}

// ExpireIfStale logs the session out when its token is a JWT whose exp
// claim lies before now. Opaque tokens are left alone.
func (s *Store) ExpireIfStale(ctx context.Context, now time.Time) bool {
	st := s.State()
	if !st.LoggedIn() {
		return false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(st.Token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.After(now) {
		return false
	}

	s.log.Info().Str("user_id", st.User.ID).Time("expired_at", claims.ExpiresAt.Time).Msg("session token expired")
	s.Logout(ctx)
	return true
}

// Subscribe registers fn to receive every committed state. The returned
// func removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) authenticate(ctx context.Context, op string, call func() (authclient.AuthResponse, error)) (models.User, error) {
	s.mu.Lock()
	s.state = reduce(s.state, requestStarted{})
	snap := s.snapshot()
	s.mu.Unlock()
	s.notify(snap)

	resp, err := call()
	if err != nil {
		var apiErr *authclient.APIError
		if errors.As(err, &apiErr) {
			err = &AuthError{Status: apiErr.Status, Message: apiErr.Message}
		} else {
			err = fmt.Errorf("%s: %w", op, err)
		}
		s.log.Warn().Err(err).Str("op", op).Msg("authentication failed")

		s.mu.Lock()
		s.state = reduce(s.state, authFailed{message: err.Error()})
		snap = s.snapshot()
		s.mu.Unlock()
		s.notify(snap)
		return models.User{}, err
	}

	user := resp.User.DeriveAdmin(s.adminEmail)

	s.mu.Lock()
	s.state = reduce(s.state, authSucceeded{user: user, token: resp.Token})
	s.persist(ctx, user, resp.Token)
	snap = s.snapshot()
	s.mu.Unlock()

	s.log.Info().Str("op", op).Str("user_id", user.ID).Bool("admin", user.IsAdmin).Msg("authenticated")
	s.notify(snap)
	return user, nil
}

func (s *Store) persist(ctx context.Context, user models.User, token string) {
	raw, err := json.Marshal(user)
	if err != nil {
		s.log.Error().Err(err).Msg("encode user failed")
		return
	}
	if err := s.storage.Set(ctx, storage.KeyToken, []byte(token)); err != nil {
		s.log.Error().Err(err).Msg("persist token failed")
		return
	}
	if err := s.storage.Set(ctx, storage.KeyUser, raw); err != nil {
		s.log.Error().Err(err).Msg("persist user failed")
		// never leave a token without its user behind
		if err := s.storage.Delete(ctx, storage.KeyToken); err != nil {
			s.log.Error().Err(err).Msg("rollback persisted token failed")
		}
	}
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	v, err := s.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) corrupt(ctx context.Context, cause error) error {
	s.log.Warn().Err(cause).Msg("discarding unreadable persisted session")
	s.clearPersisted(ctx)

	s.mu.Lock()
	s.state = reduce(s.state, loggedOut{})
	snap := s.snapshot()
	s.mu.Unlock()
	s.notify(snap)

	return &CorruptStateError{Key: storage.KeyUser, Err: cause}
}

func (s *Store) clearPersisted(ctx context.Context) {
	if err := s.storage.Delete(ctx, storage.KeyToken, storage.KeyUser); err != nil {
		s.log.Error().Err(err).Msg("clear persisted session failed")
	}
}

// snapshot copies the state; callers hold s.mu.
func (s *Store) snapshot() State {
	out := s.state
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// googleProfile decodes the credential and requires its email to be the
// one the caller typed.
func googleProfile(email string, google *GoogleCredential) (authclient.GoogleProfile, error) {
	profile, err := authclient.DecodeGoogleCredential(google.IDToken)
	if err != nil {
		return authclient.GoogleProfile{}, &ValidationError{Field: "googleCredential", Reason: err.Error()}
	}
	if !strings.EqualFold(email, strings.TrimSpace(profile.Email)) {
		return authclient.GoogleProfile{}, &ValidationError{Field: "email", Reason: "does not match the Google account"}
	}
	return profile, nil
}

// validateCredentials enforces a non-empty email and exactly one of
// password or Google credential. It reports which one was supplied.
func validateCredentials(email, password string, google *GoogleCredential) (bool, error) {
	if email == "" {
		return false, &ValidationError{Field: "email", Reason: "required"}
	}
	hasGoogle := google != nil && google.IDToken != ""
	switch {
	case password == "" && !hasGoogle:
		return false, &ValidationError{Field: "password", Reason: "a password or a Google credential is required"}
	case password != "" && hasGoogle:
		return false, &ValidationError{Field: "password", Reason: "use either a password or a Google credential, not both"}
	}
	return hasGoogle, nil
}
