package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/logging"
	"github.com/dmitrijs2005/sessionguard/internal/server/auth"
	"github.com/dmitrijs2005/sessionguard/internal/server/metrics"
	"github.com/dmitrijs2005/sessionguard/internal/server/models"
	"github.com/dmitrijs2005/sessionguard/internal/server/repositories/repomanager"
)

// UserService implements registration, login and the account operations of
// an authenticated user. Methods taking only a context expect it to carry a
// session attached by SessionService.Authenticate.
type UserService struct {
	repomanager repomanager.RepositoryManager
	sessions    *SessionService
	hasher      *auth.Hasher
	validate    *validator.Validate
	log         logging.Logger

	// dummyHash is compared against when the email is unknown so that both
	// login failures cost one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(m repomanager.RepositoryManager, sessions *SessionService, hasher *auth.Hasher, log logging.Logger) *UserService {
	return &UserService{
		repomanager: m,
		sessions:    sessions,
		hasher:      hasher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		log:         log.With("module", "users"),
	}
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) validateEmail(email string) error {
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return common.NewValidationError("email")
	}
	return nil
}

// Register creates the account and opens its first session.
func (s *UserService) Register(ctx context.Context, email, password string) (user *models.User, session *models.Session, err error) {
	defer func() { metrics.AccountOpsTotal.WithLabelValues("register", metrics.Outcome(err)).Inc() }()

	email = NormalizeEmail(email)
	if err := s.validateEmail(email); err != nil {
		return nil, nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, err
	}
	if err := storableHash(hash); err != nil {
		return nil, nil, err
	}

	err = s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		u, err := r.Users.Create(ctx, &models.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: hash,
		})
		if errors.Is(err, common.ErrorAlreadyExists) {
			return common.ErrDuplicateEmail
		}
		if err != nil {
			return storeFailure("create user", err)
		}

		sess, err := s.sessions.initSession(ctx, r.Sessions, u.ID)
		if err != nil {
			return err
		}

		user, session = u, sess
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, session, nil
}

// dummyPassword is hashed once per service for comparisons against unknown
// emails.
var dummyPassword = "not-a-real-password"

// fallbackDummyHash is used when the service hasher cannot hash
// dummyPassword.
var fallbackDummyHash = mustDummyHash()

func mustDummyHash() string {
	h, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), auth.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("dummy hash: %v", err))
	}
	return string(h)
}

func (s *UserService) getDummyHash(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.log.Warn(ctx, "dummy hash failed, using fallback", "error", err)
			h = fallbackDummyHash
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

var errNotAHash = errors.New("password value is not a bcrypt hash")

// storableHash rejects any password value that is not a bcrypt hash before
// it reaches the users store.
func storableHash(hash string) error {
	if !auth.IsHash(hash) {
		return storeFailure("store password", errNotAHash)
	}
	return nil
}

// Login checks the credentials and opens a new session. An unknown email
// and a wrong password yield the same ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (user *models.User, session *models.Session, err error) {
	defer func() { metrics.AccountOpsTotal.WithLabelValues("login", metrics.Outcome(err)).Inc() }()

	email = NormalizeEmail(email)
	repo := s.repomanager.Users()

	user, err = repo.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		s.hasher.Verify(password, s.getDummyHash(ctx))
		return nil, nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, storeFailure("find user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.log.Info(ctx, "login rejected", "user_id", user.ID)
		return nil, nil, common.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	err = s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		sess, err := s.sessions.initSession(ctx, r.Sessions, user.ID)
		if err != nil {
			return err
		}

		// The session is written before the owner is re-read: a concurrent
		// DeleteAccount either sweeps it or has already removed the user.
		_, err = r.Users.LockByID(ctx, user.ID)
		if errors.Is(err, common.ErrorNotFound) {
			if err := s.sessions.terminate(ctx, r.Sessions, sess.Token, metrics.ExpiredRevoked); err != nil {
				return err
			}
			s.log.Info(ctx, "login lost to account deletion", "user_id", user.ID)
			return common.ErrInvalidCredentials
		}
		if err != nil {
			return storeFailure("lock user", err)
		}

		session = sess
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// rehash upgrades a hash made with a lower cost. Failures only cost the
// upgrade, never the login.
func (s *UserService) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = storableHash(hash)
	}
	if err != nil {
		s.log.Warn(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.repomanager.Users().UpdatePassword(ctx, user.ID, hash); err != nil {
		s.log.Warn(ctx, "password rehash not stored", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	s.log.Info(ctx, "password rehashed", "user_id", user.ID)
}

func currentSession(ctx context.Context) (auth.SessionInfo, error) {
	info, ok := auth.SessionFromContext(ctx)
	if !ok {
		return auth.SessionInfo{}, common.ErrUnauthenticated
	}
	return info, nil
}

// Me returns the owner of the current session.
func (s *UserService) Me(ctx context.Context) (*models.User, error) {
	info, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users().GetByID(ctx, info.UserID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUnauthenticated
	}
	if err != nil {
		return nil, storeFailure("find user", err)
	}
	return user, nil
}

// Logout expires the current session.
func (s *UserService) Logout(ctx context.Context) (err error) {
	defer func() { metrics.AccountOpsTotal.WithLabelValues("logout", metrics.Outcome(err)).Inc() }()

	info, err := currentSession(ctx)
	if err != nil {
		return err
	}
	return s.sessions.Terminate(ctx, info.Token)
}

// DeleteAccount removes the current user after re-checking the password.
// When email is given and does not name the session owner, the current
// session is expired and ErrInvalidCredentials returned. All sessions are
// expired before the user record goes away, and once more after it to catch
// logins that were completing at the same time.
func (s *UserService) DeleteAccount(ctx context.Context, password, email string) (err error) {
	defer func() { metrics.AccountOpsTotal.WithLabelValues("delete", metrics.Outcome(err)).Inc() }()

	info, err := currentSession(ctx)
	if err != nil {
		return err
	}

	user, err := s.Me(ctx)
	if err != nil {
		return err
	}

	if email != "" && NormalizeEmail(email) != user.Email {
		if err := s.sessions.terminate(ctx, s.repomanager.Sessions(), info.Token, metrics.ExpiredMismatch); err != nil {
			return err
		}
		s.log.Warn(ctx, "account deletion with foreign email, session expired", "user_id", user.ID)
		return fmt.Errorf("%w: %w", common.ErrInvalidCredentials, common.ErrSessionTerminated)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return common.ErrInvalidCredentials
	}

	var expired int64
	err = s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		before, err := s.sessions.terminateAll(ctx, r.Sessions, user.ID, "")
		if err != nil {
			return err
		}
		if err := r.Users.Delete(ctx, user.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return storeFailure("delete user", err)
		}
		after, err := s.sessions.terminateAll(ctx, r.Sessions, user.ID, "")
		if err != nil {
			return err
		}
		expired = before + after
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "user deleted", "user_id", user.ID, "sessions_expired", expired)
	return nil
}

// ChangePassword replaces the password and expires every other session of
// the user. The current session stays valid. It returns how many sessions
// were expired.
func (s *UserService) ChangePassword(ctx context.Context, currentPassword, newPassword string) (n int64, err error) {
	defer func() { metrics.AccountOpsTotal.WithLabelValues("change_password", metrics.Outcome(err)).Inc() }()

	info, err := currentSession(ctx)
	if err != nil {
		return 0, err
	}

	user, err := s.Me(ctx)
	if err != nil {
		return 0, err
	}

	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return 0, common.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return 0, fmt.Errorf("new password: %w", err)
	}
	if err := storableHash(hash); err != nil {
		return 0, err
	}

	err = s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := r.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
			return storeFailure("update password", err)
		}
		n, err = s.sessions.terminateAll(ctx, r.Sessions, user.ID, info.Token)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.log.Info(ctx, "password changed", "user_id", user.ID, "sessions_expired", n)
	return n, nil
}

// ListSessions returns the current user's sessions for audit.
func (s *UserService) ListSessions(ctx context.Context) ([]*models.Session, error) {
	info, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.sessions.List(ctx, info.UserID)
}
