package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/sessionguard/internal/common"
	"github.com/dmitrijs2005/sessionguard/internal/dbx"
	"github.com/dmitrijs2005/sessionguard/internal/server/models"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, session *models.Session) error {
	query :=
		`INSERT INTO sessions (token, user_id, csrf_secret, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`

	var expiresAt sql.NullTime
	if !session.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: session.ExpiresAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		session.Token, session.UserID, session.CSRFSecret, string(models.SessionValid), expiresAt).
		Scan(&session.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	session.Status = models.SessionValid
	return nil
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string, status models.SessionStatus) (*models.Session, error) {
	query :=
		`SELECT token, user_id, csrf_secret, status, created_at, expires_at FROM sessions
		 WHERE token = $1 AND status = $2`

	row := r.db.QueryRowContext(ctx, query, token, string(status))
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Expire(ctx context.Context, token string) error {
	query :=
		`UPDATE sessions SET status = 'expired', expired_at = $2
		 WHERE token = $1 AND status = 'valid'`

	if _, err := r.db.ExecContext(ctx, query, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ExpireAllForUser(ctx context.Context, userID string, keepToken string) (int64, error) {
	query :=
		`UPDATE sessions SET status = 'expired', expired_at = $3
		 WHERE user_id = $1 AND status = 'valid' AND token <> $2`

	res, err := r.db.ExecContext(ctx, query, userID, keepToken, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	query :=
		`SELECT token, user_id, csrf_secret, status, created_at, expires_at FROM sessions
		 WHERE user_id = $1
		 ORDER BY created_at, token`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		s         models.Session
		status    string
		expiresAt sql.NullTime
	)
	if err := row.Scan(&s.Token, &s.UserID, &s.CSRFSecret, &status, &s.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	s.Status = models.SessionStatus(status)
	if expiresAt.Valid {
		s.ExpiresAt = expiresAt.Time
	}
	return &s, nil
}
