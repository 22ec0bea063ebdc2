package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/logging"
	"github.com/dmitrijs2005/sessionguard/internal/server/auth"
	"github.com/dmitrijs2005/sessionguard/internal/server/models"
	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/users"
)

// --- helpers ---

type fixture struct {
	rm       *repomanager.MemoryRepositoryManager
	sessions *SessionService
	users    *UserService
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	rm := repomanager.NewMemoryRepositoryManager()
	ss := NewSessionService(rm, auth.RandomTokens{}, ttl, logging.Nop())
	return &fixture{
		rm:       rm,
		sessions: ss,
		users:    NewUserService(rm, ss, hasher, logging.Nop()),
	}
}

// authed runs the auth gate for token and returns the request context.
func (f *fixture) authed(t *testing.T, token string) context.Context {
	t.Helper()
	ctx, err := f.sessions.Authenticate(context.Background(), token)
	require.NoError(t, err)
	return ctx
}

type seqTokens struct {
	vals []string
	i    int
}

func (s *seqTokens) Generate() (string, error) {
	if s.i >= len(s.vals) {
		return "", errors.New("exhausted")
	}
	v := s.vals[s.i]
	s.i++
	return v, nil
}

// failingSessions fails every call with a driver-like error.
type failingSessions struct{ sessions.Repository }

var errDriver = errors.New("connection refused")

func (failingSessions) Create(context.Context, *models.Session) error { return errDriver }
func (failingSessions) FindByToken(context.Context, string, models.SessionStatus) (*models.Session, error) {
	return nil, errDriver
}
func (failingSessions) Expire(context.Context, string) error { return errDriver }
func (failingSessions) ExpireAllForUser(context.Context, string, string) (int64, error) {
	return 0, errDriver
}

type brokenSessionsManager struct {
	*repomanager.MemoryRepositoryManager
}

func (brokenSessionsManager) Sessions() sessions.Repository { return failingSessions{} }

// hookedUsers runs afterLookup once, right after the next GetByEmail. For
// Login that is the gap between the credential check and the new session.
type hookedUsers struct {
	users.Repository
	afterLookup func()
}

func (h *hookedUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := h.Repository.GetByEmail(ctx, email)
	if hook := h.afterLookup; hook != nil {
		h.afterLookup = nil
		hook()
	}
	return u, err
}

type hookedManager struct {
	*repomanager.MemoryRepositoryManager
	users *hookedUsers
}

func (m hookedManager) Users() users.Repository { return m.users }

func requireAllExpired(t *testing.T, repo sessions.Repository, userID string) {
	t.Helper()
	list, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	for _, item := range list {
		assert.Equal(t, models.SessionExpired, item.Status, "session of deleted user %s", userID)
	}
}

// --- session lifecycle ---

func TestInitSession(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	s, err := f.sessions.InitSession(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, s.Token, 2*common.TokenSize)
	assert.Len(t, s.CSRFSecret, 2*common.TokenSize)
	assert.NotEqual(t, s.Token, s.CSRFSecret)
	assert.Equal(t, models.SessionValid, s.Status)
	assert.True(t, s.ExpiresAt.IsZero())
}

func TestInitSession_WithTTL(t *testing.T) {
	f := newFixture(t, time.Hour)

	s, err := f.sessions.InitSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.WithinDuration(t, s.CreatedAt.Add(time.Hour), s.ExpiresAt, time.Second)
}

func TestInitSession_RegeneratesOnCollision(t *testing.T) {
	rm := repomanager.NewMemoryRepositoryManager()
	require.NoError(t, rm.Sessions().Create(context.Background(), &models.Session{Token: "taken", UserID: "x", CSRFSecret: "c"}))

	tokens := &seqTokens{vals: []string{"taken", "csrf1", "fresh", "csrf2"}}
	ss := NewSessionService(rm, tokens, 0, logging.Nop())

	s, err := ss.InitSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", s.Token)
	assert.Equal(t, "csrf2", s.CSRFSecret)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.sessions.Authenticate(ctx, "")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = f.sessions.Authenticate(ctx, "unknown")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	s, err := f.sessions.InitSession(ctx, "u1")
	require.NoError(t, err)

	authed, err := f.sessions.Authenticate(ctx, s.Token)
	require.NoError(t, err)
	info, ok := auth.SessionFromContext(authed)
	require.True(t, ok)
	assert.Equal(t, "u1", info.UserID)
	assert.Equal(t, s.Token, info.Token)
	assert.NoError(t, auth.CheckCSRF(authed, s.CSRFSecret))
}

func TestAuthenticate_PastHorizonExpires(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	s, err := f.sessions.InitSession(ctx, "u1")
	require.NoError(t, err)

	f.sessions.now = func() time.Time { return s.CreatedAt.Add(2 * time.Minute) }

	_, err = f.sessions.Authenticate(ctx, s.Token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	got, err := f.rm.Sessions().FindByToken(ctx, s.Token, models.SessionExpired)
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, got.Status)
}

func TestTerminate(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	s, err := f.sessions.InitSession(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, f.sessions.Terminate(ctx, s.Token))
	require.NoError(t, f.sessions.Terminate(ctx, s.Token))
	require.NoError(t, f.sessions.Terminate(ctx, "unknown"))

	_, err = f.rm.Sessions().FindByToken(ctx, s.Token, models.SessionValid)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.rm.Sessions().FindByToken(ctx, s.Token, models.SessionExpired)
	assert.NoError(t, err)
}

func TestTerminateAll(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 3; i++ {
		s, err := f.sessions.InitSession(ctx, "u1")
		require.NoError(t, err)
		tokens = append(tokens, s.Token)
	}

	n, err := f.sessions.TerminateAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, tok := range tokens {
		_, err := f.sessions.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, common.ErrUnauthenticated)
	}

	s, err := f.sessions.InitSession(ctx, "u1")
	require.NoError(t, err)
	_, err = f.sessions.Authenticate(ctx, s.Token)
	assert.NoError(t, err)
}

func TestSessionService_StoreFailures(t *testing.T) {
	rm := brokenSessionsManager{repomanager.NewMemoryRepositoryManager()}
	ss := NewSessionService(rm, auth.RandomTokens{}, 0, logging.Nop())
	ctx := context.Background()

	_, err := ss.InitSession(ctx, "u1")
	assert.ErrorIs(t, err, common.ErrStoreFailure)

	_, err = ss.Authenticate(ctx, "tok")
	assert.ErrorIs(t, err, common.ErrStoreFailure)
	assert.NotErrorIs(t, err, common.ErrUnauthenticated)

	assert.ErrorIs(t, ss.Terminate(ctx, "tok"), common.ErrStoreFailure)

	_, err = ss.TerminateAll(ctx, "u1")
	assert.ErrorIs(t, err, common.ErrStoreFailure)
	assert.ErrorIs(t, err, errDriver)
}

// --- user flows ---

func TestRegister(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	u, s, err := f.users.Register(ctx, "  Alice@Example.COM ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "correct horse", u.PasswordHash)
	assert.True(t, auth.IsHash(u.PasswordHash))
	assert.Equal(t, u.ID, s.UserID)

	_, err = f.sessions.Authenticate(ctx, s.Token)
	assert.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{"empty email", "", "longenough", "email"},
		{"malformed email", "not-an-email", "longenough", "email"},
		{"short password", "a@b.com", "short", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.users.Register(ctx, tt.email, tt.password)
			require.ErrorIs(t, err, common.ErrValidation)
			var ve *common.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.NotContains(t, err.Error(), tt.password)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, _, err := f.users.Register(ctx, "a@b.com", "password1")
	require.NoError(t, err)

	_, _, err = f.users.Register(ctx, "A@B.com", "password2")
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	u, first, err := f.users.Register(ctx, "a@b.com", "password1")
	require.NoError(t, err)

	got, second, err := f.users.Login(ctx, "A@b.com ", "password1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotEqual(t, first.Token, second.Token)

	// both sessions stay valid
	_, err = f.sessions.Authenticate(ctx, first.Token)
	assert.NoError(t, err)
	_, err = f.sessions.Authenticate(ctx, second.Token)
	assert.NoError(t, err)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, _, err := f.users.Register(ctx, "a@b.com", "password1")
	require.NoError(t, err)

	_, _, wrongPassword := f.users.Login(ctx, "a@b.com", "password2")
	_, _, unknownEmail := f.users.Login(ctx, "nobody@b.com", "password1")

	assert.ErrorIs(t, wrongPassword, common.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, common.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLogin_UnknownEmailWhenDummyHashFails(t *testing.T) {
	saved := dummyPassword
	dummyPassword = "short"
	t.Cleanup(func() { dummyPassword = saved })

	f := newFixture(t, 0)
	ctx := context.Background()

	assert.Equal(t, fallbackDummyHash, f.users.getDummyHash(ctx))
	assert.True(t, auth.IsHash(fallbackDummyHash))

	_, _, err := f.users.Login(ctx, "nobody@b.com", "password1")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestLogin_AccountDeletedDuringLogin(t *testing.T) {
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	base := repomanager.NewMemoryRepositoryManager()
	hooked := &hookedUsers{Repository: base.Users()}
	rm := hookedManager{MemoryRepositoryManager: base, users: hooked}
	ss := NewSessionService(rm, auth.RandomTokens{}, 0, logging.Nop())
	us := NewUserService(rm, ss, hasher, logging.Nop())
	ctx := context.Background()

	u, s, err := us.Register(ctx, "a@b.com", "password1")
	require.NoError(t, err)
	authed, err := ss.Authenticate(ctx, s.Token)
	require.NoError(t, err)

	hooked.afterLookup = func() {
		require.NoError(t, us.DeleteAccount(authed, "password1", ""))
	}

	_, session, err := us.Login(ctx, "a@b.com", "password1")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Nil(t, session)

	list, err := base.Sessions().ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2, "the login session was written, then expired")
	requireAllExpired(t, base.Sessions(), u.ID)
}

func TestLogin_RacingDeleteAccountLeavesNoValidSession(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t, 0)
		ctx := context.Background()

		u, s, err := f.users.Register(ctx, "a@b.com", "password1")
		require.NoError(t, err)
		authed := f.authed(t, s.Token)

		var (
			wg                  sync.WaitGroup
			deleteErr, loginErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			deleteErr = f.users.DeleteAccount(authed, "password1", "")
		}()
		go func() {
			defer wg.Done()
			_, _, loginErr = f.users.Login(ctx, "a@b.com", "password1")
		}()
		wg.Wait()

		require.NoError(t, deleteErr)
		if loginErr != nil {
			require.ErrorIs(t, loginErr, common.ErrInvalidCredentials)
		}
		requireAllExpired(t, f.rm.Sessions(), u.ID)
	}
}

func TestStorableHash(t *testing.T) {
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	hash, err := hasher.Hash("password1")
	require.NoError(t, err)

	assert.NoError(t, storableHash(hash))

	for _, v := range []string{"", "password1", "$2a$bogus"} {
		err := storableHash(v)
		assert.ErrorIs(t, err, common.ErrStoreFailure, v)
		assert.ErrorIs(t, err, errNotAHash, v)
	}
}

func TestLogin_RehashesWeakHash(t *testing.T) {
	ctx := context.Background()
	rm := repomanager.NewMemoryRepositoryManager()

	weak, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = rm.Users().Create(ctx, &models.User{ID: "u1", Email: "a@b.com", PasswordHash: string(weak)})
	require.NoError(t, err)

	hasher, err := auth.NewHasher(bcrypt.MinCost + 1)
	require.NoError(t, err)
	ss := NewSessionService(rm, auth.RandomTokens{}, 0, logging.Nop())
	us := NewUserService(rm, ss, hasher, logging.Nop())

	_, _, err = us.Login(ctx, "a@b.com", "password1")
	require.NoError(t, err)

	stored, err := rm.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
	assert.True(t, hasher.Verify("password1", stored.PasswordHash))
}

func TestMe(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.users.Me(context.Background())
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	_, s, err := f.users.Register(context.Background(), "a@b.com", "password1")
	require.NoError(t, err)

	u, err := f.users.Me(f.authed(t, s.Token))
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, 0)

	_, s, err := f.users.Register(context.Background(), "a@b.com", "password1")
	require.NoError(t, err)

	require.NoError(t, f.users.Logout(f.authed(t, s.Token)))

	_, err = f.sessions.Authenticate(context.Background(), s.Token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	u, s, err := f.users.Register(ctx, "a@b.com", "password1")
	require.NoError(t, err)
	_, other, err := f.users.Login(ctx, "a@b.com", "password1")
	require.NoError(t, err)

	authed := f.authed(t, s.Token)
	err = f.users.DeleteAccount(authed, "wrong-password", "")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.NotErrorIs(t, err, common.ErrSessionTerminated)

	require.NoError(t, f.users.DeleteAccount(authed, "password1", "A@B.com"))

	_, err = f.rm.Users().GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	for _, tok := range []string{s.Token, other.Token} {
		_, err := f.sessions.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, common.ErrUnauthenticated)
		_, err = f.rm.Sessions().FindByToken(ctx, tok, models.SessionExpired)
		assert.NoError(t, err, "expired sessions stay for audit")
	}

	// the email can be registered again
	_, _, err = f.users.Register(ctx, "a@b.com", "password1")
	assert.NoError(t, err)
}

func TestDeleteAccount_ForeignEmailExpiresSession(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	u, s, err := f.users.Register(ctx, "a@b.com", "password1")
	require.NoError(t, err)

	err = f.users.DeleteAccount(f.authed(t, s.Token), "password1", "someone@else.com")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.ErrorIs(t, err, common.ErrSessionTerminated)

	_, err = f.sessions.Authenticate(ctx, s.Token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = f.rm.Users().GetByID(ctx, u.ID)
	assert.NoError(t, err, "user must survive")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, current, err := f.users.Register(ctx, "a@b.com", "password1")
	require.NoError(t, err)
	var others []string
	for i := 0; i < 2; i++ {
		_, s, err := f.users.Login(ctx, "a@b.com", "password1")
		require.NoError(t, err)
		others = append(others, s.Token)
	}

	authed := f.authed(t, current.Token)

	_, err = f.users.ChangePassword(authed, "wrong-password", "password2")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = f.users.ChangePassword(authed, "password1", "short")
	assert.ErrorIs(t, err, common.ErrValidation)

	n, err := f.users.ChangePassword(authed, "password1", "password2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = f.sessions.Authenticate(ctx, current.Token)
	assert.NoError(t, err, "current session stays valid")
	for _, tok := range others {
		_, err := f.sessions.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, common.ErrUnauthenticated)
	}

	_, _, err = f.users.Login(ctx, "a@b.com", "password1")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, _, err = f.users.Login(ctx, "a@b.com", "password2")
	assert.NoError(t, err)
}

func TestListSessions(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, s, err := f.users.Register(ctx, "a@b.com", "password1")
	require.NoError(t, err)
	_, second, err := f.users.Login(ctx, "a@b.com", "password1")
	require.NoError(t, err)
	require.NoError(t, f.sessions.Terminate(ctx, second.Token))

	list, err := f.users.ListSessions(f.authed(t, s.Token))
	require.NoError(t, err)
	require.Len(t, list, 2)

	statuses := map[models.SessionStatus]int{}
	for _, item := range list {
		statuses[item.Status]++
	}
	assert.Equal(t, map[models.SessionStatus]int{models.SessionValid: 1, models.SessionExpired: 1}, statuses)
}

func ExampleNormalizeEmail() {
	fmt.Println(NormalizeEmail("  Bob@Example.ORG\n"))
	// Output: bob@example.org
}
