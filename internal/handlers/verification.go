package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moshaveran/moshaver-backend/internal/logger"
	"github.com/moshaveran/moshaver-backend/internal/services"
)

type VerificationHandler struct {
	log          *logger.Logger
	verification services.VerificationService
}

func NewVerificationHandler(log *logger.Logger, verification services.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		log:          log.With("handler", "VerificationHandler"),
		verification: verification,
	}
}

type requestCodeRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *VerificationHandler) RequestCode(c *gin.Context) {
	var req requestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.verification.RequestCode(c.Request.Context(), req.Email); err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, gin.H{"sent": true})
}

type verifyCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

func (h *VerificationHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	token, err := h.verification.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		RespondRepoError(c, err)
		return
	}
	RespondOK(c, gin.H{"token": token})
}
