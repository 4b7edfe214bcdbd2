package auth

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type Organizations interface {
	GetByID(ctx context.Context, id int64) (*Organization, error)
	ExistsByBillingEmail(ctx context.Context, email string) (bool, error)

	CreateTx(ctx context.Context, tx bun.IDB, record *Organization) (*Organization, error)
	// SetOwnerTx is the back-reference fix-up at the end of provisioning;
	// the owner cannot be known before the user row exists.
	SetOwnerTx(ctx context.Context, tx bun.IDB, orgID, ownerID int64) error

	SetConfirmBillingEmailToken(ctx context.Context, id int64, token string) error
	ConfirmBillingEmail(ctx context.Context, id int64) error
}

type organizations struct {
	db *bun.DB
}

var _ Organizations = (*organizations)(nil)

func NewOrganizationsRepository(db *bun.DB) Organizations {
	return &organizations{db: db}
}

func (r *organizations) GetByID(ctx context.Context, id int64) (*Organization, error) {
	record := new(Organization)

	err := r.db.NewSelect().
		Model(record).
		Where("org.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to select organization")
	}

	return record, nil
}

func (r *organizations) ExistsByBillingEmail(ctx context.Context, email string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*Organization)(nil)).
		Where("billing_email = ?", email).
		Exists(ctx)

	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check billing email")
	}

	return exists, nil
}

func (r *organizations) CreateTx(ctx context.Context, tx bun.IDB, record *Organization) (*Organization, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrProvisioningConflict
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert organization")
	}

	return record, nil
}

func (r *organizations) SetOwnerTx(ctx context.Context, tx bun.IDB, orgID, ownerID int64) error {
	res, err := tx.NewUpdate().
		Model((*Organization)(nil)).
		Set("owner_id = ?", ownerID).
		Where("id = ?", orgID).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set organization owner")
	}

	return requireAffectedRow(res)
}

func (r *organizations) SetConfirmBillingEmailToken(ctx context.Context, id int64, token string) error {
	res, err := r.db.NewUpdate().
		Model((*Organization)(nil)).
		Set("confirm_billing_email_token = ?", token).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update organization")
	}

	return requireAffectedRow(res)
}

func (r *organizations) ConfirmBillingEmail(ctx context.Context, id int64) error {
	res, err := r.db.NewUpdate().
		Model((*Organization)(nil)).
		Set("billing_email_verified = ?", true).
		Set("confirm_billing_email_token = NULL").
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm billing email")
	}

	return requireAffectedRow(res)
}
