package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationFeedback struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID    uuid.UUID `gorm:"type:uuid;not null;index;column:chat_id" json:"chat_id"`
	Rating    int       `gorm:"not null;column:rating" json:"rating"`
	Comment   string    `gorm:"type:text;column:comment" json:"comment,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ConversationFeedback) TableName() string {
	return "conversation_feedback"
}

func (cf *ConversationFeedback) BeforeCreate(tx *gorm.DB) error {
	if cf.ID == uuid.Nil {
		cf.ID = uuid.New()
	}
	return nil
}
