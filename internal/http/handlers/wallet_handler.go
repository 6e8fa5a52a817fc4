package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/au-lex/safeqly-backend/internal/dto"
	"github.com/au-lex/safeqly-backend/internal/http/handlers/common"
	"github.com/au-lex/safeqly-backend/internal/service"
)

// WalletHandler предоставляет HTTP слой кошелька: баланс, пополнения,
// вывод средств и привязанные счета.
type WalletHandler struct {
	wallet *service.WalletService
}

// NewWalletHandler создаёт хэндлер.
func NewWalletHandler(wallet *service.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// Balance обрабатывает GET /wallet/balance.
func (h *WalletHandler) Balance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.wallet.Balance(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		Available: balance.Available,
		Held:      balance.Held,
		Total:     balance.Available + balance.Held,
	})
}

// Transactions обрабатывает GET /wallet/transactions.
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)

	transactions, err := h.wallet.Transactions(c.Request.Context(), userID, c.Query("type"), c.Query("status"), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// InitiateDeposit обрабатывает POST /wallet/deposit.
func (h *WalletHandler) InitiateDeposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.InitiateDepositRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.wallet.InitiateDeposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.DepositResponse{
		Reference:        result.Reference,
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
	})
}

// VerifyDeposit обрабатывает GET /wallet/deposit/:reference/verify.
// Повторный вызов безопасен: зачисление происходит не более одного раза.
func (h *WalletHandler) VerifyDeposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	reference := c.Param("reference")
	if reference == "" {
		common.RespondBadRequest(c, "reference обязателен")
		return
	}

	transaction, err := h.wallet.VerifyDeposit(c.Request.Context(), userID, reference)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transaction)
}

// ListBanks обрабатывает GET /wallet/banks.
func (h *WalletHandler) ListBanks(c *gin.Context) {
	banks, err := h.wallet.ListBanks(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"banks": banks})
}

// ResolveAccount обрабатывает GET /wallet/banks/resolve.
func (h *WalletHandler) ResolveAccount(c *gin.Context) {
	accountNumber := c.Query("account_number")
	bankCode := c.Query("bank_code")
	if accountNumber == "" || bankCode == "" {
		common.RespondBadRequest(c, "account_number и bank_code обязательны")
		return
	}

	resolved, err := h.wallet.ResolveAccount(c.Request.Context(), accountNumber, bankCode)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resolved)
}

// AddBankAccount обрабатывает POST /wallet/accounts.
func (h *WalletHandler) AddBankAccount(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.AddBankAccountRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	account, err := h.wallet.AddBankAccount(c.Request.Context(), userID, req.BankName, req.BankCode, req.AccountNumber)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

// ListBankAccounts обрабатывает GET /wallet/accounts.
func (h *WalletHandler) ListBankAccounts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	accounts, err := h.wallet.ListBankAccounts(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// SetDefaultBankAccount обрабатывает POST /wallet/accounts/:id/default.
func (h *WalletHandler) SetDefaultBankAccount(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	accountID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.wallet.SetDefaultBankAccount(c.Request.Context(), accountID, userID); err != nil {
		c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "счёт по умолчанию обновлён", nil)
}

// DeleteBankAccount обрабатывает DELETE /wallet/accounts/:id.
func (h *WalletHandler) DeleteBankAccount(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	accountID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.wallet.DeleteBankAccount(c.Request.Context(), accountID, userID); err != nil {
		c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "счёт удалён", nil)
}

// Withdraw обрабатывает POST /wallet/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.WithdrawRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	accountID, err := parseUUIDString(req.BankAccountID)
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор счёта")
		return
	}

	transaction, err := h.wallet.Withdraw(c.Request.Context(), userID, accountID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transaction)
}
