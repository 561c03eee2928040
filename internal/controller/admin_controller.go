package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"balance-api/internal/conversation"
	"balance-api/internal/models"
)

// AdminController exposes the guarded balance-change wizard over HTTP. Each
// chat drives one session at a time; the caller relays the returned reply to
// the operator verbatim.
type AdminController struct {
	wizard *conversation.Wizard
}

func NewAdminController(wizard *conversation.Wizard) *AdminController {
	return &AdminController{
		wizard: wizard,
	}
}

type StartWizardRequest struct {
	AdminID int64 `json:"admin_id" binding:"required,gt=0"`
}

type WizardInputRequest struct {
	Input string `json:"input" binding:"required"`
}

type WizardReply struct {
	ChatID string `json:"chat_id"`
	Reply  string `json:"reply"`
}

// StartWizard handles POST /api/v1/admin/wizard/:chatId/start
func (c *AdminController) StartWizard(ctx *gin.Context) {
	chatID := ctx.Param("chatId")

	var req StartWizardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	reply, err := c.wizard.Start(ctx.Request.Context(), chatID, req.AdminID)
	if err != nil {
		c.respondWizardError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, WizardReply{ChatID: chatID, Reply: reply})
}

// HandleInput handles POST /api/v1/admin/wizard/:chatId/input
func (c *AdminController) HandleInput(ctx *gin.Context) {
	chatID := ctx.Param("chatId")

	var req WizardInputRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	reply, err := c.wizard.Advance(ctx.Request.Context(), chatID, req.Input)
	if err != nil {
		c.respondWizardError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, WizardReply{ChatID: chatID, Reply: reply})
}

// CancelWizard handles DELETE /api/v1/admin/wizard/:chatId
func (c *AdminController) CancelWizard(ctx *gin.Context) {
	chatID := ctx.Param("chatId")

	reply, err := c.wizard.Cancel(ctx.Request.Context(), chatID)
	if err != nil {
		c.respondWizardError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, WizardReply{ChatID: chatID, Reply: reply})
}

func (c *AdminController) respondWizardError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrStorageUnavailable):
		ctx.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "Wizard unavailable",
			Message: "storage temporarily unavailable, retry later",
		})
	default:
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Wizard error",
			Message: err.Error(),
		})
	}
}
