package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/authclient"
	"storefront/internal/models"
	"storefront/internal/storage"
)

const adminEmail = "admin@example.com"

type fakeAuth struct {
	calls int
	resp  authclient.AuthResponse
	err   error

	lastEmail    string
	lastPassword string
	lastProfile  authclient.GoogleProfile
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (authclient.AuthResponse, error) {
	f.calls++
	f.lastEmail, f.lastPassword = email, password
	return f.resp, f.err
}

func (f *fakeAuth) Register(_ context.Context, email, password, _ string) (authclient.AuthResponse, error) {
	f.calls++
	f.lastEmail, f.lastPassword = email, password
	return f.resp, f.err
}

func (f *fakeAuth) GoogleLogin(_ context.Context, p authclient.GoogleProfile) (authclient.AuthResponse, error) {
	f.calls++
	f.lastProfile = p
	return f.resp, f.err
}

func (f *fakeAuth) GoogleRegister(_ context.Context, p authclient.GoogleProfile) (authclient.AuthResponse, error) {
	f.calls++
	f.lastProfile = p
	return f.resp, f.err
}

func okResponse(role models.UserRole, email string) authclient.AuthResponse {
	return authclient.AuthResponse{
		Token: "opaque-token",
		User:  models.User{ID: "u1", Email: email, Name: "ann", Role: role},
	}
}

func newStore(auth Authenticator) (*Store, *storage.MemoryStorage) {
	st := storage.NewMemoryStorage()
	return NewStore(st, auth, adminEmail, zerolog.Nop()), st
}

func googleCredential(t *testing.T, email string) *GoogleCredential {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"name":  "Google User",
		"sub":   "g-42",
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return &GoogleCredential{IDToken: tok}
}

func TestLogin_ValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		google   *GoogleCredential
		field    string
	}{
		{"no password no google", "ann@example.com", "", nil, "password"},
		{"empty google token", "ann@example.com", "", &GoogleCredential{}, "password"},
		{"empty email", "", "secret", nil, "email"},
		{"blank email", "   ", "secret", nil, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{resp: okResponse(models.UserRoleUser, "ann@example.com")}
			s, st := newStore(auth)

			_, err := s.Login(context.Background(), tt.email, tt.password, tt.google)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Zero(t, auth.calls)
			assert.Equal(t, StatusIdle, s.State().Status)

			_, err = st.Get(context.Background(), storage.KeyToken)
			assert.ErrorIs(t, err, storage.ErrKeyNotFound)
		})
	}
}

func TestLogin_BothCredentialsRejected(t *testing.T) {
	auth := &fakeAuth{}
	s, _ := newStore(auth)

	_, err := s.Login(context.Background(), "ann@example.com", "secret", googleCredential(t, "ann@example.com"))

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, auth.calls)
}

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{resp: okResponse(models.UserRoleUser, "ann@example.com")}
	s, st := newStore(auth)

	var statuses []Status
	s.Subscribe(func(state State) { statuses = append(statuses, state.Status) })

	user, err := s.Login(ctx, " ann@example.com ", "secret", nil)
	require.NoError(t, err)

	assert.Equal(t, "ann@example.com", auth.lastEmail)
	assert.Equal(t, "u1", user.ID)
	assert.False(t, user.IsAdmin)
	assert.False(t, s.IsAdmin())
	assert.True(t, s.State().LoggedIn())
	assert.Equal(t, "Bearer opaque-token", s.AuthHeader())
	assert.Equal(t, []Status{StatusLoading, StatusIdle}, statuses)

	token, err := st.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", string(token))

	raw, err := st.Get(ctx, storage.KeyUser)
	require.NoError(t, err)
	var stored models.User
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, user, stored)
}

func TestLogin_DerivesAdmin(t *testing.T) {
	tests := []struct {
		name  string
		role  models.UserRole
		email string
		want  bool
	}{
		{"admin role", models.UserRoleAdmin, "boss@example.com", true},
		{"reserved email", models.UserRoleUser, adminEmail, true},
		{"reserved email any case", models.UserRoleUser, "Admin@Example.com", true},
		{"plain user", models.UserRoleUser, "ann@example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newStore(&fakeAuth{resp: okResponse(tt.role, tt.email)})

			user, err := s.Login(context.Background(), tt.email, "secret", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.IsAdmin)
			assert.Equal(t, tt.want, s.IsAdmin())
		})
	}
}

func TestLogin_BackendRejection(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{resp: okResponse(models.UserRoleUser, "ann@example.com")}
	s, st := newStore(auth)

	_, err := s.Login(ctx, "ann@example.com", "secret", nil)
	require.NoError(t, err)

	auth.err = &authclient.APIError{Status: http.StatusUnauthorized, Message: "Invalid email or password"}
	_, err = s.Login(ctx, "other@example.com", "wrong!", nil)

	var aErr *AuthError
	require.ErrorAs(t, err, &aErr)
	assert.Equal(t, "Invalid email or password", aErr.Message)
	assert.Equal(t, http.StatusUnauthorized, aErr.Status)

	state := s.State()
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, "Invalid email or password", state.Err)
	require.NotNil(t, state.User)
	assert.Equal(t, "u1", state.User.ID)
	assert.Equal(t, "opaque-token", state.Token)

	token, err := st.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", string(token))

	s.ClearError()
	assert.Equal(t, StatusIdle, s.State().Status)
	assert.Empty(t, s.State().Err)
}

func TestLogin_TransportFailureIsNotAuthError(t *testing.T) {
	s, _ := newStore(&fakeAuth{err: errors.New("connection refused")})

	_, err := s.Login(context.Background(), "ann@example.com", "secret", nil)
	require.Error(t, err)

	var aErr *AuthError
	assert.False(t, errors.As(err, &aErr))
	assert.Equal(t, StatusError, s.State().Status)
	assert.Nil(t, s.State().User)
}

func TestLogin_Google(t *testing.T) {
	auth := &fakeAuth{resp: okResponse(models.UserRoleUser, "g@example.com")}
	s, _ := newStore(auth)

	_, err := s.Login(context.Background(), "g@example.com", "", googleCredential(t, "g@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "g-42", auth.lastProfile.Subject)
	assert.Equal(t, "g@example.com", auth.lastProfile.Email)

	_, err = s.Login(context.Background(), "g@example.com", "", &GoogleCredential{IDToken: "garbage"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "googleCredential", vErr.Field)
}

func TestGoogle_EmailMustMatchCredential(t *testing.T) {
	auth := &fakeAuth{resp: okResponse(models.UserRoleUser, "g@example.com")}
	s, st := newStore(auth)
	ctx := context.Background()

	_, err := s.Login(ctx, "someone@example.com", "", googleCredential(t, "g@example.com"))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email", vErr.Field)

	_, err = s.Register(ctx, "someone@example.com", "", googleCredential(t, "g@example.com"))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email", vErr.Field)

	assert.Zero(t, auth.calls)
	assert.False(t, s.State().LoggedIn())
	_, err = st.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)

	_, err = s.Login(ctx, "G@Example.com", "", googleCredential(t, "g@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, auth.calls)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{"short password", "ann@example.com", "12345", "password"},
		{"no tld", "ann@example", "123456", "email"},
		{"no at", "ann.example.com", "123456", "email"},
		{"spaces", "ann smith@example.com", "123456", "email"},
		{"missing password", "ann@example.com", "", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{}
			s, _ := newStore(auth)

			_, err := s.Register(context.Background(), tt.email, tt.password, nil)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Zero(t, auth.calls)
		})
	}
}

func TestRegister_Success(t *testing.T) {
	auth := &fakeAuth{resp: okResponse(models.UserRoleUser, "ann@example.com")}
	s, _ := newStore(auth)

	user, err := s.Register(context.Background(), "ann@example.com", "123456", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, auth.calls)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, s.State().LoggedIn())
}

func TestRegister_GoogleSkipsPasswordRules(t *testing.T) {
	auth := &fakeAuth{resp: okResponse(models.UserRoleUser, "g@example.com")}
	s, _ := newStore(auth)

	_, err := s.Register(context.Background(), "g@example.com", "", googleCredential(t, "g@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, auth.calls)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	s, st := newStore(&fakeAuth{resp: okResponse(models.UserRoleAdmin, "boss@example.com")})

	_, err := s.Login(ctx, "boss@example.com", "secret", nil)
	require.NoError(t, err)

	s.Logout(ctx)

	state := s.State()
	assert.Nil(t, state.User)
	assert.Empty(t, state.Token)
	assert.False(t, s.IsAdmin())
	assert.Empty(t, s.AuthHeader())

	_, err = st.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
	_, err = st.Get(ctx, storage.KeyUser)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)

	// logging out twice is fine
	s.Logout(ctx)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	require.NoError(t, st.Set(ctx, storage.KeyToken, []byte("tok")))
	require.NoError(t, st.Set(ctx, storage.KeyUser, []byte(`{"id":"u9","email":"ann@example.com","role":"user","isAdmin":false}`)))

	s := NewStore(st, &fakeAuth{}, adminEmail, zerolog.Nop())
	require.NoError(t, s.Restore(ctx))

	state := s.State()
	require.NotNil(t, state.User)
	assert.Equal(t, "u9", state.User.ID)
	assert.Equal(t, "tok", state.Token)
	assert.False(t, s.IsAdmin())
}

func TestRestore_RecomputesAdmin(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   bool
	}{
		{"stale true flag is dropped", `{"id":"u1","email":"ann@example.com","role":"user","isAdmin":true}`, false},
		{"stale false flag on admin role", `{"id":"u1","email":"ann@example.com","role":"admin","isAdmin":false}`, true},
		{"reserved email", `{"id":"u1","email":"admin@example.com","role":"user"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := storage.NewMemoryStorage()
			require.NoError(t, st.Set(ctx, storage.KeyToken, []byte("tok")))
			require.NoError(t, st.Set(ctx, storage.KeyUser, []byte(tt.stored)))

			s := NewStore(st, &fakeAuth{}, adminEmail, zerolog.Nop())
			require.NoError(t, s.Restore(ctx))
			assert.Equal(t, tt.want, s.IsAdmin())
		})
	}
}

func TestRestore_Corrupt(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":   `{"id":`,
		"wrong type": `["u1"]`,
		"no id":      `{"email":"ann@example.com"}`,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := storage.NewMemoryStorage()
			require.NoError(t, st.Set(ctx, storage.KeyToken, []byte("tok")))
			require.NoError(t, st.Set(ctx, storage.KeyUser, []byte(raw)))

			s := NewStore(st, &fakeAuth{}, adminEmail, zerolog.Nop())

			var err error
			require.NotPanics(t, func() { err = s.Restore(ctx) })

			var cErr *CorruptStateError
			require.ErrorAs(t, err, &cErr)
			assert.Equal(t, storage.KeyUser, cErr.Key)
			assert.Nil(t, s.State().User)
			assert.False(t, s.State().LoggedIn())

			_, err = st.Get(ctx, storage.KeyToken)
			assert.ErrorIs(t, err, storage.ErrKeyNotFound)
			_, err = st.Get(ctx, storage.KeyUser)
			assert.ErrorIs(t, err, storage.ErrKeyNotFound)
		})
	}
}

func TestRestore_Empty(t *testing.T) {
	s, _ := newStore(&fakeAuth{})
	require.NoError(t, s.Restore(context.Background()))
	assert.Nil(t, s.State().User)
}

func TestRestore_HalfPersisted(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	require.NoError(t, st.Set(ctx, storage.KeyToken, []byte("tok")))

	s := NewStore(st, &fakeAuth{}, adminEmail, zerolog.Nop())
	require.NoError(t, s.Restore(ctx))
	assert.False(t, s.State().LoggedIn())

	_, err := st.Get(ctx, storage.KeyToken)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestIsAdminPredicate(t *testing.T) {
	tests := []struct {
		name string
		user *models.User
		want bool
	}{
		{"nobody", nil, false},
		{"flagged user", &models.User{Role: models.UserRoleUser, IsAdmin: true}, true},
		{"admin role", &models.User{Role: models.UserRoleAdmin}, true},
		{"plain user", &models.User{Role: models.UserRoleUser, IsAdmin: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, State{User: tt.user}.IsAdmin())
		})
	}
}

func TestExpireIfStale(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	resp := okResponse(models.UserRoleUser, "ann@example.com")
	resp.Token = expired
	s, _ := newStore(&fakeAuth{resp: resp})
	_, err = s.Login(ctx, "ann@example.com", "secret", nil)
	require.NoError(t, err)

	assert.True(t, s.ExpireIfStale(ctx, now))
	assert.False(t, s.State().LoggedIn())
	assert.False(t, s.ExpireIfStale(ctx, now))
}

func TestExpireIfStale_KeepsOpaqueAndFreshTokens(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	s, _ := newStore(&fakeAuth{resp: okResponse(models.UserRoleUser, "ann@example.com")})
	_, err := s.Login(ctx, "ann@example.com", "secret", nil)
	require.NoError(t, err)
	assert.False(t, s.ExpireIfStale(ctx, now))

	fresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	resp := okResponse(models.UserRoleUser, "ann@example.com")
	resp.Token = fresh
	s2, _ := newStore(&fakeAuth{resp: resp})
	_, err = s2.Login(ctx, "ann@example.com", "secret", nil)
	require.NoError(t, err)
	assert.False(t, s2.ExpireIfStale(ctx, now))
	assert.True(t, s.State().LoggedIn())
}
