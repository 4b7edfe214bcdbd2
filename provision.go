package auth

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ProvisionTenantInput is the payload for new tenant provisioning.
type ProvisionTenantInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (i ProvisionTenantInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Username, validation.Required, validation.Length(3, 32)),
		validation.Field(&i.Email, validation.Required, is.Email),
		validation.Field(&i.Password, validation.Required, validation.Length(5, 128)),
	)
}

// ProvisionTenant atomically creates an organization, its immutable root
// access level, and the owner user, then points the organization back at its
// owner. Any failure rolls back every step, no partial tenant ever becomes
// visible. This is the only multi-row write in the core.
func (a *Authority) ProvisionTenant(ctx context.Context, input ProvisionTenantInput) (*User, error) {
	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid tenant registration")
	}

	// hash before opening the transaction, a hashing failure must abort
	// before any write and the work factor must not hold a tx open
	hash, err := a.hasher.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	var created *User

	err = a.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		org, err := a.repo.Organizations().CreateTx(ctx, tx, &Organization{
			Name:                 input.Username,
			Blocked:              false,
			BillingEmail:         input.Email,
			BillingEmailVerified: false,
		})
		if err != nil {
			return err
		}

		level, err := a.repo.AccessLevels().CreateTx(ctx, tx, &AccessLevel{
			Name:           "admin",
			Description:    "root access level",
			IsFixed:        true,
			Permissions:    a.permissions.Permissions(),
			OrganizationID: &org.ID,
		})
		if err != nil {
			return err
		}

		user, err := a.repo.Users().CreateTx(ctx, tx, &User{
			Username:       input.Username,
			Email:          input.Email,
			PasswordHash:   hash,
			EmailVerified:  false,
			OrganizationID: &org.ID,
			AccessLevelID:  level.ID,
		})
		if err != nil {
			return err
		}

		if err := a.repo.Organizations().SetOwnerTx(ctx, tx, org.ID, user.ID); err != nil {
			return err
		}

		created = user
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrProvisioningConflict) {
			a.logger.Info("tenant provisioning conflict for %q", input.Email)
			return nil, ErrProvisioningConflict
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "tenant provisioning transaction failed")
	}

	a.emitEvent(ctx, ActivityEvent{
		EventType:      ActivityEventTenantProvisioned,
		UserID:         created.ID,
		OrganizationID: *created.OrganizationID,
	})

	return created, nil
}
