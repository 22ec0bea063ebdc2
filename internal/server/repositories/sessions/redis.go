package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/server/models"
)

// DefaultRedisPrefix namespaces every key the Redis repository writes.
const DefaultRedisPrefix = "sg"

const maxWatchRetries = 16

const expireSessionScript = `
if redis.call("HGET", KEYS[1], "status") == "valid" then
  redis.call("HSET", KEYS[1], "status", "expired", "expired_at", ARGV[1])
  return 1
end
return 0
`

var expireSessionLua = redis.NewScript(expireSessionScript)

// RedisRepository stores each session as a hash under <prefix>:session:<token>
// and indexes tokens per user in the set <prefix>:user_sessions:<userID>.
// Keys carry no TTL so expired sessions stay available for audit.
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisRepository(rdb redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisRepository) sessionKey(token string) string {
	return r.prefix + ":session:" + token
}

func (r *RedisRepository) userKey(userID string) string {
	return r.prefix + ":user_sessions:" + userID
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}

func (r *RedisRepository) Create(ctx context.Context, session *models.Session) error {
	sk := r.sessionKey(session.Token)
	uk := r.userKey(session.UserID)

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, sk).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return common.ErrorAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, sk,
				"user_id", session.UserID,
				"csrf_secret", session.CSRFSecret,
				"status", string(models.SessionValid),
				"created_at", formatTime(createdAt),
				"expires_at", formatTime(session.ExpiresAt),
			)
			pipe.SAdd(ctx, uk, session.Token)
			return nil
		})
		return err
	}, sk)

	switch {
	case err == nil:
	case errors.Is(err, common.ErrorAlreadyExists), errors.Is(err, redis.TxFailedErr):
		// a concurrent writer got the token first
		return common.ErrorAlreadyExists
	default:
		return fmt.Errorf("redis error: %w", err)
	}

	session.Status = models.SessionValid
	session.CreatedAt = createdAt
	return nil
}

func (r *RedisRepository) FindByToken(ctx context.Context, token string, status models.SessionStatus) (*models.Session, error) {
	fields, err := r.rdb.HGetAll(ctx, r.sessionKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}

	s, err := decodeSession(token, fields)
	if err != nil {
		return nil, err
	}
	if s.Status != status {
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func decodeSession(token string, fields map[string]string) (*models.Session, error) {
	createdAt, err := parseTime(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("redis error: corrupt session: %w", err)
	}
	expiresAt, err := parseTime(fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("redis error: corrupt session: %w", err)
	}
	return &models.Session{
		Token:      token,
		UserID:     fields["user_id"],
		CSRFSecret: fields["csrf_secret"],
		Status:     models.SessionStatus(fields["status"]),
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}

func (r *RedisRepository) Expire(ctx context.Context, token string) error {
	err := expireSessionLua.Run(ctx, r.rdb, []string{r.sessionKey(token)}, formatTime(time.Now())).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// ExpireAllForUser watches the user's index so that a Create racing with it
// aborts the transaction, which is then retried on a fresh snapshot.
func (r *RedisRepository) ExpireAllForUser(ctx context.Context, userID string, keepToken string) (int64, error) {
	uk := r.userKey(userID)

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		var expired int64

		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			tokens, err := tx.SMembers(ctx, uk).Result()
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(tokens))
			candidates := make([]string, 0, len(tokens))
			for _, token := range tokens {
				if token == keepToken {
					continue
				}
				keys = append(keys, r.sessionKey(token))
				candidates = append(candidates, token)
			}
			if len(keys) == 0 {
				return nil
			}
			if err := tx.Watch(ctx, keys...).Err(); err != nil {
				return err
			}

			var toExpire []string
			for i, key := range keys {
				status, err := tx.HGet(ctx, key, "status").Result()
				if errors.Is(err, redis.Nil) {
					continue
				}
				if err != nil {
					return err
				}
				if status == string(models.SessionValid) {
					toExpire = append(toExpire, candidates[i])
				}
			}
			if len(toExpire) == 0 {
				return nil
			}

			now := formatTime(time.Now())
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, token := range toExpire {
					pipe.HSet(ctx, r.sessionKey(token), "status", string(models.SessionExpired), "expired_at", now)
				}
				return nil
			})
			if err != nil {
				return err
			}
			expired = int64(len(toExpire))
			return nil
		}, uk)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("redis error: %w", err)
		}
		return expired, nil
	}

	return 0, fmt.Errorf("redis error: expire all for user %s: %w", userID, redis.TxFailedErr)
}

func (r *RedisRepository) ListByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	tokens, err := r.rdb.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(tokens) == 0 {
		return []*models.Session{}, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(tokens))
	for i, token := range tokens {
		cmds[i] = pipe.HGetAll(ctx, r.sessionKey(token))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	out := make([]*models.Session, 0, len(tokens))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("redis error: %w", err)
		}
		if len(fields) == 0 {
			continue
		}
		s, err := decodeSession(tokens[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sortOldestFirst(out)
	return out, nil
}
