package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Task is an action item extracted from a model reply. Status only moves
// forward; CompletedAt is stamped once, on the transition to completed.
type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID      uuid.UUID  `gorm:"type:uuid;not null;index;column:chat_id" json:"chat_id"`
	Description string     `gorm:"type:text;not null;column:description" json:"description"`
	Status      TaskStatus `gorm:"not null;default:'pending';column:status" json:"status"`
	Metadata    string     `gorm:"type:text;column:metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Open reports whether the task can still advance.
func (t *Task) Open() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusInProgress
}
