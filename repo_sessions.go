package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type Sessions interface {
	Create(ctx context.Context, record *Session) (*Session, error)

	// GetActiveByToken loads the non-expired session matching the token
	// together with its user, the user's access level, and the optional
	// organization in one query. It returns (nil, nil) when no active
	// session matches.
	GetActiveByToken(ctx context.Context, token SessionToken) (*Session, error)

	ListActiveByUser(ctx context.Context, userID int64) ([]Session, error)

	DeleteByToken(ctx context.Context, token SessionToken) error
	DeleteByPublicID(ctx context.Context, publicID int64) error

	// DeleteExpired exists for an external reaper; correctness never
	// depends on it running since every read filters on expires_at.
	DeleteExpired(ctx context.Context) (int64, error)
}

type sessions struct {
	db *bun.DB
}

var _ Sessions = (*sessions)(nil)

func NewSessionsRepository(db *bun.DB) Sessions {
	return &sessions{db: db}
}

func (r *sessions) Create(ctx context.Context, record *Session) (*Session, error) {
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			// a 128-bit collision in practice means a broken token source
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "session token collision")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert session")
	}

	return record, nil
}

func (r *sessions) GetActiveByToken(ctx context.Context, token SessionToken) (*Session, error) {
	record := new(Session)

	err := r.db.NewSelect().
		Model(record).
		Relation("User").
		Relation("User.AccessLevel").
		Relation("User.Organization").
		Where("ses.session_token = ?", token.DatabaseValue()).
		Where("ses.expires_at > ?", time.Now().UTC()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to select session")
	}

	return record, nil
}

func (r *sessions) ListActiveByUser(ctx context.Context, userID int64) ([]Session, error) {
	var records []Session

	err := r.db.NewSelect().
		Model(&records).
		Where("ses.user_id = ?", userID).
		Where("ses.expires_at > ?", time.Now().UTC()).
		Order("ses.created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list sessions")
	}

	return records, nil
}

func (r *sessions) DeleteByToken(ctx context.Context, token SessionToken) error {
	_, err := r.db.NewDelete().
		Model((*Session)(nil)).
		Where("session_token = ?", token.DatabaseValue()).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}

	return nil
}

func (r *sessions) DeleteByPublicID(ctx context.Context, publicID int64) error {
	_, err := r.db.NewDelete().
		Model((*Session)(nil)).
		Where("public_id = ?", publicID).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}

	return nil
}

func (r *sessions) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*Session)(nil)).
		Where("expires_at <= ?", time.Now().UTC()).
		Exec(ctx)

	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete expired sessions")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read affected rows")
	}

	return n, nil
}
