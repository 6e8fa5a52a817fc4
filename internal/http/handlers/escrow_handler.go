package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/au-lex/safeqly-backend/internal/dto"
	"github.com/au-lex/safeqly-backend/internal/http/handlers/common"
	"github.com/au-lex/safeqly-backend/internal/models"
	"github.com/au-lex/safeqly-backend/internal/service"
)

// EscrowHandler предоставляет HTTP слой жизненного цикла сделки.
type EscrowHandler struct {
	escrows *service.EscrowService
}

// NewEscrowHandler создаёт хэндлер.
func NewEscrowHandler(escrows *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrows: escrows}
}

// Create обрабатывает POST /escrows.
func (h *EscrowHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateEscrowRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.escrows.Create(c.Request.Context(), userID, service.CreateEscrowInput{
		SellerTag:        req.SellerTag,
		Amount:           req.Amount,
		Items:            req.Items,
		DeliveryDate:     req.DeliveryDate,
		AttachedFileURL:  req.AttachedFileURL,
		AttachedFileName: req.AttachedFileName,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewEscrowResponse(escrow, h.escrows.Fee(escrow.Amount)))
}

// Get обрабатывает GET /escrows/:id.
func (h *EscrowHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.escrows.Get(c.Request.Context(), escrowID, userID, common.IsAdmin(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewEscrowResponse(escrow, h.escrows.Fee(escrow.Amount)))
}

// List обрабатывает GET /escrows.
func (h *EscrowHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	status := c.Query("status")
	if status != "" && !models.ValidEscrowStatuses[status] {
		common.RespondBadRequest(c, "неизвестный статус сделки")
		return
	}

	limit, offset := common.GetPagination(c)

	escrows, err := h.escrows.List(c.Request.Context(), userID, status, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"escrows": escrows})
}

// Accept обрабатывает POST /escrows/:id/accept.
func (h *EscrowHandler) Accept(c *gin.Context) {
	h.transition(c, func(ctx *gin.Context, escrowID, userID uuid.UUID) (*models.Escrow, error) {
		return h.escrows.Accept(ctx.Request.Context(), escrowID, userID)
	})
}

// Reject обрабатывает POST /escrows/:id/reject.
func (h *EscrowHandler) Reject(c *gin.Context) {
	var req dto.RejectEscrowRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	h.transition(c, func(ctx *gin.Context, escrowID, userID uuid.UUID) (*models.Escrow, error) {
		return h.escrows.Reject(ctx.Request.Context(), escrowID, userID, req.Reason)
	})
}

// Cancel обрабатывает POST /escrows/:id/cancel.
func (h *EscrowHandler) Cancel(c *gin.Context) {
	h.transition(c, func(ctx *gin.Context, escrowID, userID uuid.UUID) (*models.Escrow, error) {
		return h.escrows.Cancel(ctx.Request.Context(), escrowID, userID)
	})
}

// Complete обрабатывает POST /escrows/:id/complete.
func (h *EscrowHandler) Complete(c *gin.Context) {
	h.transition(c, func(ctx *gin.Context, escrowID, userID uuid.UUID) (*models.Escrow, error) {
		return h.escrows.Complete(ctx.Request.Context(), escrowID, userID)
	})
}

// Release обрабатывает POST /escrows/:id/release.
func (h *EscrowHandler) Release(c *gin.Context) {
	h.transition(c, func(ctx *gin.Context, escrowID, userID uuid.UUID) (*models.Escrow, error) {
		return h.escrows.Release(ctx.Request.Context(), escrowID, userID)
	})
}

// transition выполняет общий сценарий перехода статуса сделки.
func (h *EscrowHandler) transition(c *gin.Context, do func(*gin.Context, uuid.UUID, uuid.UUID) (*models.Escrow, error)) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := do(c, escrowID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewEscrowResponse(escrow, h.escrows.Fee(escrow.Amount)))
}
