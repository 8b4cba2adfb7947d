package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/types"
)

type ChatRepo interface {
	Create(ctx context.Context, tx *gorm.DB, chat *types.Chat) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Chat, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Chat, error)
	RecentUpdated(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]*types.Chat, error)
	Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
	return &chatRepo{db: db, log: baseLog.With("repo", "ChatRepo")}
}

func (cr *chatRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return cr.db
}

func (cr *chatRepo) Create(ctx context.Context, tx *gorm.DB, chat *types.Chat) error {
	transaction := cr.conn(tx)
	if transaction == nil {
		return ErrStorageUnavailable
	}
	return transaction.WithContext(ctx).Create(chat).Error
}

func (cr *chatRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Chat, error) {
	transaction := cr.conn(tx)
	if transaction == nil {
		return nil, ErrStorageUnavailable
	}

	var result types.Chat
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, wrapLookupErr(err)
	}
	return &result, nil
}

func (cr *chatRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Chat, error) {
	transaction := cr.conn(tx)
	if transaction == nil {
		return nil, ErrStorageUnavailable
	}

	var results []*types.Chat
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *chatRepo) RecentUpdated(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]*types.Chat, error) {
	transaction := cr.conn(tx)
	if transaction == nil {
		return nil, ErrStorageUnavailable
	}

	var results []*types.Chat
	if err := transaction.WithContext(ctx).
		Where("updated_at >= ?", since).
		Order("updated_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *chatRepo) Touch(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := cr.conn(tx)
	if transaction == nil {
		return ErrStorageUnavailable
	}
	return transaction.WithContext(ctx).
		Model(&types.Chat{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}
