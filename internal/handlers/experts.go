package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/moshaveran/moshaver-backend/internal/services"
)

type ExpertsHandler struct {
	experts *services.ExpertRegistry
}

func NewExpertsHandler(experts *services.ExpertRegistry) *ExpertsHandler {
	return &ExpertsHandler{experts: experts}
}

func (h *ExpertsHandler) List(c *gin.Context) {
	RespondOK(c, gin.H{"experts": h.experts.List()})
}
