package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/repos"
	"github.com/moshaveran/moshaver-backend/internal/types"
)

// ChatService owns chat/message persistence. The streaming relay itself
// persists nothing; the frontend calls AppendMessage after a stream ends.
type ChatService interface {
	CreateChat(ctx context.Context, userID uuid.UUID, title, expertID string) (*types.Chat, error)
	ListChats(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Chat, error)
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]*types.Message, error)
	AppendMessage(ctx context.Context, chatID uuid.UUID, role, content string) (*types.Message, error)
	SaveFeedback(ctx context.Context, chatID uuid.UUID, rating int, comment string) (*types.ConversationFeedback, error)
}

type chatService struct {
	db           *gorm.DB
	log          *logger.Logger
	chatRepo     repos.ChatRepo
	messageRepo  repos.MessageRepo
	feedbackRepo repos.FeedbackRepo
	tasks        TaskService
}

func NewChatService(db *gorm.DB, log *logger.Logger, chatRepo repos.ChatRepo, messageRepo repos.MessageRepo, feedbackRepo repos.FeedbackRepo, tasks TaskService) ChatService {
	return &chatService{
		db:           db,
		log:          log.With("service", "ChatService"),
		chatRepo:     chatRepo,
		messageRepo:  messageRepo,
		feedbackRepo: feedbackRepo,
		tasks:        tasks,
	}
}

func (cs *chatService) CreateChat(ctx context.Context, userID uuid.UUID, title, expertID string) (*types.Chat, error) {
	chat := &types.Chat{
		UserID:   userID,
		Title:    title,
		ExpertID: expertID,
	}
	if err := cs.chatRepo.Create(ctx, nil, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (cs *chatService) ListChats(ctx context.Context, userID uuid.UUID, limit int) ([]*types.Chat, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return cs.chatRepo.ListByUser(ctx, nil, userID, limit)
}

func (cs *chatService) ListMessages(ctx context.Context, chatID uuid.UUID) ([]*types.Message, error) {
	return cs.messageRepo.ListByChatID(ctx, nil, chatID)
}

// AppendMessage stores the message and runs the task hooks: a model reply
// may create pending tasks from its [TASK: ...] markers, a user message may
// advance an open task. Task failures never fail the append.
func (cs *chatService) AppendMessage(ctx context.Context, chatID uuid.UUID, role, content string) (*types.Message, error) {
	if role != types.RoleUser && role != types.RoleModel {
		return nil, fmt.Errorf("unknown message role %q", role)
	}

	if _, err := cs.chatRepo.GetByID(ctx, nil, chatID); err != nil {
		if errors.Is(err, repos.ErrNotFound) {
			return nil, repos.ErrNotFound
		}
		return nil, err
	}

	msg := &types.Message{
		ChatID:  chatID,
		Role:    role,
		Content: content,
	}
	if err := cs.messageRepo.Create(ctx, nil, msg); err != nil {
		return nil, err
	}
	if err := cs.chatRepo.Touch(ctx, nil, chatID); err != nil {
		cs.log.Warn("Failed to touch chat", "chat_id", chatID, "error", err)
	}

	if cs.tasks != nil {
		switch role {
		case types.RoleModel:
			cs.tasks.ProcessModelOutput(ctx, chatID, content)
		case types.RoleUser:
			cs.tasks.ProcessUserMessage(ctx, chatID, content)
		}
	}
	return msg, nil
}

func (cs *chatService) SaveFeedback(ctx context.Context, chatID uuid.UUID, rating int, comment string) (*types.ConversationFeedback, error) {
	feedback := &types.ConversationFeedback{
		ChatID:  chatID,
		Rating:  rating,
		Comment: comment,
	}
	if err := cs.feedbackRepo.Create(ctx, nil, feedback); err != nil {
		return nil, err
	}
	return feedback, nil
}
