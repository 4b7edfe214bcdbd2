package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type AccessLevels interface {
	CreateTx(ctx context.Context, tx bun.IDB, record *AccessLevel) (*AccessLevel, error)
}

type accessLevels struct {
	db *bun.DB
}

var _ AccessLevels = (*accessLevels)(nil)

func NewAccessLevelsRepository(db *bun.DB) AccessLevels {
	return &accessLevels{db: db}
}

func (r *accessLevels) CreateTx(ctx context.Context, tx bun.IDB, record *AccessLevel) (*AccessLevel, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert access level")
	}

	return record, nil
}
