package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/services"
)

type ChatsHandler struct {
	log   *logger.Logger
	chats services.ChatService
	tasks services.TaskService
}

func NewChatsHandler(log *logger.Logger, chats services.ChatService, tasks services.TaskService) *ChatsHandler {
	return &ChatsHandler{
		log:   log.With("handler", "ChatsHandler"),
		chats: chats,
		tasks: tasks,
	}
}

type createChatRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Title    string `json:"title"`
	ExpertID string `json:"expertId"`
}

func (h *ChatsHandler) Create(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}

	chat, err := h.chats.CreateChat(c.Request.Context(), userID, req.Title, req.ExpertID)
	if err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, chat)
}

func (h *ChatsHandler) List(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("userId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	chats, err := h.chats.ListChats(c.Request.Context(), userID, limit)
	if err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, gin.H{"chats": chats})
}

func (h *ChatsHandler) ListMessages(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}

	messages, err := h.chats.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": messages})
}

type appendMessageRequest struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// AppendMessage stores a finished message. The frontend calls this after a
// stream completes; task extraction and status detection run here.
func (h *ChatsHandler) AppendMessage(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	msg, err := h.chats.AppendMessage(c.Request.Context(), chatID, req.Role, req.Content)
	if err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, msg)
}

func (h *ChatsHandler) ListTasks(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}

	tasks, err := h.tasks.ListTasks(c.Request.Context(), chatID)
	if err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, gin.H{"tasks": tasks})
}

type feedbackRequest struct {
	ChatID  string `json:"chatId" binding:"required"`
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

func (h *ChatsHandler) SaveFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}

	feedback, err := h.chats.SaveFeedback(c.Request.Context(), chatID, req.Rating, req.Comment)
	if err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, feedback)
}
