package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/services"
	"github.com/moshaveran/moshaver-backend/internal/types"
)

const batchLearningTimeout = 10 * time.Minute

type KnowledgeHandler struct {
	log       *logger.Logger
	knowledge services.KnowledgeService
}

func NewKnowledgeHandler(log *logger.Logger, knowledge services.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{
		log:       log.With("handler", "KnowledgeHandler"),
		knowledge: knowledge,
	}
}

// List handles GET /api/admin/knowledge?category=&limit=.
func (h *KnowledgeHandler) List(c *gin.Context) {
	category := types.Category(c.Query("category"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	pairs, err := h.knowledge.ListPairs(c.Request.Context(), category, limit)
	if err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, gin.H{"pairs": pairs, "count": len(pairs)})
}

// Learn handles POST /api/admin/knowledge/learn and reports how many pairs
// the batch run saved. The run is detached from the request context so an
// admin client disconnect does not cancel learning midway; the timeout
// bounds the run instead.
func (h *KnowledgeHandler) Learn(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), batchLearningTimeout)
	defer cancel()

	count, err := h.knowledge.RunBatchLearning(ctx)
	if err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, gin.H{"learned": count})
}

// Delete handles DELETE /api/admin/knowledge/:id.
func (h *KnowledgeHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	if err := h.knowledge.DeletePair(c.Request.Context(), id); err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": id})
}

// Stats handles GET /api/admin/knowledge/stats.
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	stats, err := h.knowledge.Stats(c.Request.Context())
	if err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, stats)
}
