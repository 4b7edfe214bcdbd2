package auth

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type Users interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetIDByUsername(ctx context.Context, username string) (int64, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)

	SetResetPasswordToken(ctx context.Context, id int64, token string) error
	SetConfirmEmailToken(ctx context.Context, id int64, token string) error
	ResetPassword(ctx context.Context, id int64, passwordHash string) error
	ConfirmEmail(ctx context.Context, id int64) error
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

func (r *users) GetByID(ctx context.Context, id int64) (*User, error) {
	record := new(User)

	err := r.db.NewSelect().
		Model(record).
		Where("usr.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to select user by id")
	}

	return record, nil
}

func (r *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	record := new(User)

	err := r.db.NewSelect().
		Model(record).
		Where("usr.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to select user by email")
	}

	return record, nil
}

func (r *users) GetIDByUsername(ctx context.Context, username string) (int64, error) {
	var id int64

	err := r.db.NewSelect().
		Model((*User)(nil)).
		Column("id").
		Where("username = ?", username).
		Limit(1).
		Scan(ctx, &id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrIdentityNotFound
		}
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to select user id by username")
	}

	return id, nil
}

func (r *users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*User)(nil)).
		Where("email = ?", email).
		Exists(ctx)

	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check user email")
	}

	return exists, nil
}

func (r *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrProvisioningConflict
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert user")
	}

	return record, nil
}

func (r *users) SetResetPasswordToken(ctx context.Context, id int64, token string) error {
	return r.setColumn(ctx, id, "reset_password_token", token)
}

func (r *users) SetConfirmEmailToken(ctx context.Context, id int64, token string) error {
	return r.setColumn(ctx, id, "confirm_email_token", token)
}

// ResetPassword finalizes a password reset: it swaps the hash, clears the
// reset token, and marks the email as verified since the user proved they
// can read it.
func (r *users) ResetPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_password_token = NULL").
		Set("email_verified = ?", true).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reset user password")
	}

	return requireAffectedRow(res)
}

func (r *users) ConfirmEmail(ctx context.Context, id int64) error {
	res, err := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("email_verified = ?", true).
		Set("confirm_email_token = NULL").
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm user email")
	}

	return requireAffectedRow(res)
}

func (r *users) setColumn(ctx context.Context, id int64, column, value string) error {
	res, err := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("? = ?", bun.Ident(column), value).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user")
	}

	return requireAffectedRow(res)
}

func requireAffectedRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read affected rows")
	}
	if n == 0 {
		return ErrIdentityNotFound
	}
	return nil
}
