package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/types"
)

type KnowledgeRepo interface {
	GetByQuestion(ctx context.Context, tx *gorm.DB, question string) (*types.LearnedKnowledge, error)
	Upsert(ctx context.Context, tx *gorm.DB, pair *types.LearnedKnowledge) error
	IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	TopByCategory(ctx context.Context, tx *gorm.DB, category types.Category, minQuality, limit int) ([]*types.LearnedKnowledge, error)
	List(ctx context.Context, tx *gorm.DB, category types.Category, limit int) ([]*types.LearnedKnowledge, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Stats(ctx context.Context, tx *gorm.DB) (*types.KnowledgeStats, error)
}

type knowledgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKnowledgeRepo(db *gorm.DB, baseLog *logger.Logger) KnowledgeRepo {
	return &knowledgeRepo{db: db, log: baseLog.With("repo", "KnowledgeRepo")}
}

func (kr *knowledgeRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return kr.db
}

func (kr *knowledgeRepo) GetByQuestion(ctx context.Context, tx *gorm.DB, question string) (*types.LearnedKnowledge, error) {
	transaction := kr.conn(tx)
	if transaction == nil {
		return nil, ErrStorageUnavailable
	}

	var result types.LearnedKnowledge
	if err := transaction.WithContext(ctx).
		Where("question = ?", question).
		First(&result).Error; err != nil {
		return nil, wrapLookupErr(err)
	}
	return &result, nil
}

// Upsert inserts the pair or, when the question already exists, bumps its
// quality counter in the same statement. The unique index on question plus
// the single INSERT ... ON CONFLICT keeps concurrent savers from creating
// duplicate rows.
func (kr *knowledgeRepo) Upsert(ctx context.Context, tx *gorm.DB, pair *types.LearnedKnowledge) error {
	transaction := kr.conn(tx)
	if transaction == nil {
		return ErrStorageUnavailable
	}
	if pair.QualityScore == 0 {
		pair.QualityScore = 1
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "question"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quality_score": gorm.Expr("quality_score + 1"),
				"updated_at":    time.Now().UTC(),
			}),
		}).
		Create(pair).Error
}

func (kr *knowledgeRepo) IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := kr.conn(tx)
	if transaction == nil {
		return ErrStorageUnavailable
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.LearnedKnowledge{}).
		Where("id IN ?", ids).
		Update("usage_count", gorm.Expr("usage_count + 1")).Error
}

func (kr *knowledgeRepo) TopByCategory(ctx context.Context, tx *gorm.DB, category types.Category, minQuality, limit int) ([]*types.LearnedKnowledge, error) {
	transaction := kr.conn(tx)
	if transaction == nil {
		return nil, ErrStorageUnavailable
	}

	var results []*types.LearnedKnowledge
	if err := transaction.WithContext(ctx).
		Where("category = ? AND quality_score >= ?", category, minQuality).
		Order("quality_score DESC").
		Order("usage_count DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (kr *knowledgeRepo) List(ctx context.Context, tx *gorm.DB, category types.Category, limit int) ([]*types.LearnedKnowledge, error) {
	transaction := kr.conn(tx)
	if transaction == nil {
		return nil, ErrStorageUnavailable
	}

	query := transaction.WithContext(ctx).Model(&types.LearnedKnowledge{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var results []*types.LearnedKnowledge
	if err := query.
		Order("updated_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (kr *knowledgeRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := kr.conn(tx)
	if transaction == nil {
		return ErrStorageUnavailable
	}
	result := transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.LearnedKnowledge{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (kr *knowledgeRepo) Stats(ctx context.Context, tx *gorm.DB) (*types.KnowledgeStats, error) {
	transaction := kr.conn(tx)
	if transaction == nil {
		return nil, ErrStorageUnavailable
	}

	stats := &types.KnowledgeStats{ByCategory: map[string]int64{}}

	if err := transaction.WithContext(ctx).
		Model(&types.LearnedKnowledge{}).
		Count(&stats.TotalPairs).Error; err != nil {
		return nil, err
	}

	var totals struct {
		AvgQuality float64
		SumUsage   int64
	}
	if err := transaction.WithContext(ctx).
		Model(&types.LearnedKnowledge{}).
		Select("COALESCE(AVG(quality_score), 0) AS avg_quality, COALESCE(SUM(usage_count), 0) AS sum_usage").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	stats.AverageQuality = totals.AvgQuality
	stats.TotalUsage = totals.SumUsage

	var rows []struct {
		Category string
		Count    int64
	}
	if err := transaction.WithContext(ctx).
		Model(&types.LearnedKnowledge{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByCategory[row.Category] = row.Count
	}
	return stats, nil
}
