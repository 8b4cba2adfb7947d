package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/platform/llm"
	"github.com/moshaveran/moshaver-backend/internal/services"
)

// ChatStreamHandler relays a conversation to the upstream completion
// endpoint and re-frames its deltas for the browser. It persists nothing;
// the frontend saves the finished message through the chats API.
type ChatStreamHandler struct {
	log       *logger.Logger
	llm       llm.Client
	knowledge services.KnowledgeService
	tasks     services.TaskService
	experts   *services.ExpertRegistry
}

func NewChatStreamHandler(log *logger.Logger, llmClient llm.Client, knowledge services.KnowledgeService, tasks services.TaskService, experts *services.ExpertRegistry) *ChatStreamHandler {
	return &ChatStreamHandler{
		log:       log.With("handler", "ChatStreamHandler"),
		llm:       llmClient,
		knowledge: knowledge,
		tasks:     tasks,
		experts:   experts,
	}
}

type chatStreamRequest struct {
	ChatID       string        `json:"chatId"`
	Messages     []llm.Message `json:"messages"`
	ExpertID     string        `json:"expertId"`
	UserQuestion string        `json:"userQuestion"`
}

// Stream handles POST /api/chat/stream. Frames are written as
// `data: {"content":"..."}` lines and the stream ends with `data: [DONE]`.
// The request context cancels the upstream call when the browser goes away.
func (h *ChatStreamHandler) Stream(c *gin.Context) {
	var req chatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(req.Messages) == 0 {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("messages array is required"))
		return
	}

	ctx := c.Request.Context()
	systemPrompt := h.buildSystemPrompt(c, req)
	upstream := services.AssembleUpstreamMessages(systemPrompt, req.Messages)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	wroteAny := false
	_, err := h.llm.StreamChatCompletion(ctx, upstream, func(delta string) {
		payload, jsonErr := json.Marshal(gin.H{"content": delta})
		if jsonErr != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		c.Writer.Flush()
		wroteAny = true
	})
	if err != nil {
		h.log.Warn("Upstream stream failed", "error", err, "streamed", wroteAny)
		if !wroteAny {
			// Nothing flushed yet, a plain JSON error is still possible.
			c.Writer.Header().Del("Content-Type")
			RespondError(c, http.StatusBadGateway, "upstream_failed", err)
			return
		}
		// Mid-stream failure: emit an error frame and close. Whatever
		// deltas already went out stay; the client treats the stream
		// as failed.
		fmt.Fprintf(c.Writer, "data: %s\n\n", mustJSON(gin.H{"error": err.Error()}))
		c.Writer.Flush()
		return
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}

// buildSystemPrompt layers persona, learned knowledge and the chat's task
// state onto the base prompt. All three are best-effort: a missing expert,
// an empty knowledge block or an unavailable store just leaves the section
// out.
func (h *ChatStreamHandler) buildSystemPrompt(c *gin.Context, req chatStreamRequest) string {
	var expert *services.Expert
	if req.ExpertID != "" && h.experts != nil {
		if e, ok := h.experts.Get(req.ExpertID); ok {
			expert = &e
		}
	}

	var knowledgeBlock string
	if q := strings.TrimSpace(req.UserQuestion); q != "" && h.knowledge != nil {
		block, err := h.knowledge.Retrieve(c.Request.Context(), q, 0)
		if err != nil {
			h.log.Debug("Knowledge retrieval skipped", "error", err)
		} else {
			knowledgeBlock = block
		}
	}

	var taskContext string
	if h.tasks != nil && req.ChatID != "" {
		if chatID, err := uuid.Parse(req.ChatID); err == nil {
			if tasks, err := h.tasks.ListTasks(c.Request.Context(), chatID); err == nil {
				taskContext = h.tasks.BuildTaskContext(tasks)
			}
		}
	}

	return services.BuildSystemPrompt(expert, knowledgeBlock, taskContext)
}

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return raw
}
