package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/types"
)

type UserRepo interface {
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error)
	GetOrCreateByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error)
	MarkVerified(ctx context.Context, tx *gorm.DB, email string) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (ur *userRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ur.db
}

func (ur *userRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	transaction := ur.conn(tx)
	if transaction == nil {
		return nil, ErrStorageUnavailable
	}

	var result types.User
	if err := transaction.WithContext(ctx).
		Where("email = ?", email).
		First(&result).Error; err != nil {
		return nil, wrapLookupErr(err)
	}
	return &result, nil
}

func (ur *userRepo) GetOrCreateByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	user, err := ur.GetByEmail(ctx, tx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	transaction := ur.conn(tx)
	created := &types.User{Email: email}
	if err := transaction.WithContext(ctx).Create(created).Error; err != nil {
		return nil, err
	}
	return created, nil
}

func (ur *userRepo) MarkVerified(ctx context.Context, tx *gorm.DB, email string) error {
	transaction := ur.conn(tx)
	if transaction == nil {
		return ErrStorageUnavailable
	}
	return transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"verified":   true,
			"updated_at": time.Now().UTC(),
		}).Error
}
