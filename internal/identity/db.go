package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-community/internal/apperrors"
	"ms-community/internal/models"
)

// UserDB reads the users relation owned by the auth collaborator.
type UserDB struct {
	Bun *bun.DB
}

func NewUserDB(db *bun.DB) *UserDB {
	return &UserDB{Bun: db}
}

func (d *UserDB) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	user := new(models.User)
	err := d.Bun.NewSelect().
		Model(user).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user %d", userID)
		}
		return nil, apperrors.Store("get user", err)
	}
	return user, nil
}
