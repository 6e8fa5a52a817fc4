package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/au-lex/safeqly-backend/internal/dto"
	"github.com/au-lex/safeqly-backend/internal/http/handlers/common"
	"github.com/au-lex/safeqly-backend/internal/service"
)

// DisputeHandler предоставляет HTTP слой споров по сделкам.
type DisputeHandler struct {
	disputes *service.DisputeService
}

// NewDisputeHandler создаёт хэндлер.
func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// Raise обрабатывает POST /disputes.
func (h *DisputeHandler) Raise(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.RaiseDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrowID, err := parseUUIDString(req.EscrowID)
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор сделки")
		return
	}

	dispute, err := h.disputes.Raise(c.Request.Context(), userID, service.RaiseDisputeInput{
		EscrowID:         escrowID,
		Reason:           req.Reason,
		Description:      req.Description,
		EvidenceURL:      req.EvidenceURL,
		EvidenceFileName: req.EvidenceFileName,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// Get обрабатывает GET /disputes/:id.
func (h *DisputeHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.Get(c.Request.Context(), disputeID, userID, common.IsAdmin(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// List обрабатывает GET /disputes - споры по сделкам пользователя.
func (h *DisputeHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)

	disputes, err := h.disputes.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// AttachEvidence обрабатывает POST /disputes/:id/evidence.
func (h *DisputeHandler) AttachEvidence(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.AttachEvidenceRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.AttachEvidence(c.Request.Context(), disputeID, userID, req.EvidenceURL, req.EvidenceFileName)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}
