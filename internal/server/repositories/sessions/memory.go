package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/server/models"
)

type MemoryRepository struct {
	mu      sync.RWMutex
	byToken map[string]models.Session
	byUser  map[string]map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byToken: make(map[string]models.Session),
		byUser:  make(map[string]map[string]struct{}),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[session.Token]; ok {
		return common.ErrorAlreadyExists
	}

	session.Status = models.SessionValid
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	r.byToken[session.Token] = *session
	tokens, ok := r.byUser[session.UserID]
	if !ok {
		tokens = make(map[string]struct{})
		r.byUser[session.UserID] = tokens
	}
	tokens[session.Token] = struct{}{}

	return nil
}

func (r *MemoryRepository) FindByToken(ctx context.Context, token string, status models.SessionStatus) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byToken[token]
	if !ok || s.Status != status {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) Expire(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byToken[token]; ok {
		s.Status = models.SessionExpired
		r.byToken[token] = s
	}
	return nil
}

func (r *MemoryRepository) ExpireAllForUser(ctx context.Context, userID string, keepToken string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for token := range r.byUser[userID] {
		s := r.byToken[token]
		if token == keepToken || s.Status != models.SessionValid {
			continue
		}
		s.Status = models.SessionExpired
		r.byToken[token] = s
		n++
	}
	return n, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Session, 0, len(r.byUser[userID]))
	for token := range r.byUser[userID] {
		s := r.byToken[token]
		out = append(out, &s)
	}
	sortOldestFirst(out)
	return out, nil
}

func sortOldestFirst(list []*models.Session) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Token < list[j].Token
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
