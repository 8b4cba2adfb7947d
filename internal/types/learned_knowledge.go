package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category labels assigned by the keyword classifier. Stored as plain
// strings so the label set can grow without a migration.
type Category string

const (
	CategoryFinance           Category = "finance"
	CategoryMarketing         Category = "marketing"
	CategorySales             Category = "sales"
	CategoryHR                Category = "hr"
	CategoryProductManagement Category = "product_management"
	CategoryGeneral           Category = "general"
)

// LearnedKnowledge is a question/answer pair harvested from past
// conversations. QualityScore counts how many times the exact same question
// was seen; UsageCount counts how many times the pair was injected into a
// prompt. Both counters are advisory.
type LearnedKnowledge struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Question     string    `gorm:"type:text;not null;uniqueIndex;column:question" json:"question"`
	Answer       string    `gorm:"type:text;not null;column:answer" json:"answer"`
	Category     Category  `gorm:"not null;index;column:category" json:"category"`
	QualityScore int       `gorm:"not null;default:1;column:quality_score" json:"quality_score"`
	UsageCount   int       `gorm:"not null;default:0;column:usage_count" json:"usage_count"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (LearnedKnowledge) TableName() string {
	return "learned_knowledge"
}

func (lk *LearnedKnowledge) BeforeCreate(tx *gorm.DB) error {
	if lk.ID == uuid.Nil {
		lk.ID = uuid.New()
	}
	return nil
}

// KnowledgeStats is the aggregate view served by the admin endpoints.
type KnowledgeStats struct {
	TotalPairs     int64            `json:"total_pairs"`
	AverageQuality float64          `json:"average_quality"`
	TotalUsage     int64            `json:"total_usage"`
	ByCategory     map[string]int64 `json:"by_category"`
}
