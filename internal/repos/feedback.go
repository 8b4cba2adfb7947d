package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/types"
)

type FeedbackRepo interface {
	Create(ctx context.Context, tx *gorm.DB, feedback *types.ConversationFeedback) error
	ListByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) ([]*types.ConversationFeedback, error)
}

type feedbackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeedbackRepo(db *gorm.DB, baseLog *logger.Logger) FeedbackRepo {
	return &feedbackRepo{db: db, log: baseLog.With("repo", "FeedbackRepo")}
}

func (fr *feedbackRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return fr.db
}

func (fr *feedbackRepo) Create(ctx context.Context, tx *gorm.DB, feedback *types.ConversationFeedback) error {
	transaction := fr.conn(tx)
	if transaction == nil {
		return ErrStorageUnavailable
	}
	return transaction.WithContext(ctx).Create(feedback).Error
}

func (fr *feedbackRepo) ListByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) ([]*types.ConversationFeedback, error) {
	transaction := fr.conn(tx)
	if transaction == nil {
		return nil, ErrStorageUnavailable
	}

	var results []*types.ConversationFeedback
	if err := transaction.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
