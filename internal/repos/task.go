package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/types"
)

type TaskRepo interface {
	Create(ctx context.Context, tx *gorm.DB, task *types.Task) error
	ListByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) ([]*types.Task, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.TaskStatus, completedAt *time.Time) error
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return &taskRepo{db: db, log: baseLog.With("repo", "TaskRepo")}
}

func (tr *taskRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return tr.db
}

func (tr *taskRepo) Create(ctx context.Context, tx *gorm.DB, task *types.Task) error {
	transaction := tr.conn(tx)
	if transaction == nil {
		return ErrStorageUnavailable
	}
	if task.Status == "" {
		task.Status = types.TaskStatusPending
	}
	return transaction.WithContext(ctx).Create(task).Error
}

func (tr *taskRepo) ListByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) ([]*types.Task, error) {
	transaction := tr.conn(tx)
	if transaction == nil {
		return nil, ErrStorageUnavailable
	}

	var results []*types.Task
	if err := transaction.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (tr *taskRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.TaskStatus, completedAt *time.Time) error {
	transaction := tr.conn(tx)
	if transaction == nil {
		return ErrStorageUnavailable
	}

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}

	result := transaction.WithContext(ctx).
		Model(&types.Task{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
