package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/au-lex/safeqly-backend/internal/dto"
	"github.com/au-lex/safeqly-backend/internal/http/handlers/common"
	"github.com/au-lex/safeqly-backend/internal/models"
	"github.com/au-lex/safeqly-backend/internal/service"
)

// AdminHandler предоставляет HTTP слой админки: пользователи, споры,
// журнал транзакций и сводная статистика.
type AdminHandler struct {
	auth     *service.AuthService
	admin    *service.AdminService
	disputes *service.DisputeService
}

// NewAdminHandler создаёт хэндлер.
func NewAdminHandler(auth *service.AuthService, admin *service.AdminService, disputes *service.DisputeService) *AdminHandler {
	return &AdminHandler{
		auth:     auth,
		admin:    admin,
		disputes: disputes,
	}
}

// Login обрабатывает POST /admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.auth.AdminLogin(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, requestMeta(c))
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.AuthResponse{
		User:   result.User,
		Tokens: result.TokenPair,
	})
}

// ListUsers обрабатывает GET /admin/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	users, err := h.admin.ListUsers(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser обрабатывает GET /admin/users/:id.
func (h *AdminHandler) GetUser(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	user, err := h.admin.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// SuspendUser обрабатывает POST /admin/users/:id/suspend.
func (h *AdminHandler) SuspendUser(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.admin.SuspendUser(c.Request.Context(), userID); err != nil {
		c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "пользователь заблокирован", nil)
}

// UnsuspendUser обрабатывает POST /admin/users/:id/unsuspend.
func (h *AdminHandler) UnsuspendUser(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.admin.UnsuspendUser(c.Request.Context(), userID); err != nil {
		c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "блокировка снята", nil)
}

// DeleteUser обрабатывает DELETE /admin/users/:id.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.admin.DeleteUser(c.Request.Context(), userID); err != nil {
		c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "пользователь удалён", nil)
}

// ListTransactions обрабатывает GET /admin/transactions.
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	transactions, err := h.admin.ListTransactions(c.Request.Context(), c.Query("type"), c.Query("status"), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// ListDisputes обрабатывает GET /admin/disputes.
func (h *AdminHandler) ListDisputes(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !models.ValidDisputeStatuses[status] {
		common.RespondBadRequest(c, "неизвестный статус спора")
		return
	}

	limit, offset := common.GetPagination(c)

	disputes, err := h.disputes.ListAll(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// ReviewDispute обрабатывает POST /admin/disputes/:id/review.
func (h *AdminHandler) ReviewDispute(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.MarkInReview(c.Request.Context(), disputeID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ResolveDispute обрабатывает POST /admin/disputes/:id/resolve.
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.Resolve(c.Request.Context(), adminID, service.ResolveDisputeInput{
		DisputeID:  disputeID,
		Winner:     req.Winner,
		Resolution: req.Resolution,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// RejectDispute обрабатывает POST /admin/disputes/:id/reject -
// отклонение претензии как необоснованной.
func (h *AdminHandler) RejectDispute(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RejectDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.RejectClaim(c.Request.Context(), adminID, disputeID, req.Resolution)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// Stats обрабатывает GET /admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
