package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/au-lex/safeqly-backend/internal/logger"
	"github.com/au-lex/safeqly-backend/internal/metrics"
	"github.com/au-lex/safeqly-backend/internal/models"
	"github.com/au-lex/safeqly-backend/internal/paystack"
	"github.com/au-lex/safeqly-backend/internal/repository"
	"github.com/au-lex/safeqly-backend/internal/validation"
)

// WalletRepository описывает зависимости сервиса от журнала кошелька.
type WalletRepository interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.Balance, error)
	CreatePendingDeposit(ctx context.Context, transaction *models.Transaction) error
	CompleteDeposit(ctx context.Context, reference string) (*models.Transaction, error)
	FailTransaction(ctx context.Context, reference string) (*models.Transaction, error)
	CreateWithdrawal(ctx context.Context, transaction *models.Transaction) error
	CompleteWithdrawal(ctx context.Context, reference string) (*models.Transaction, error)
	RefundWithdrawal(ctx context.Context, reference string) (*models.Transaction, error)
	GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, txType, status string, limit, offset int) ([]models.Transaction, error)
}

// BankAccountRepository описывает зависимости сервиса от хранилища счетов.
type BankAccountRepository interface {
	Create(ctx context.Context, account *models.BankAccount) error
	GetByID(ctx context.Context, accountID, userID uuid.UUID) (*models.BankAccount, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error)
	SetDefault(ctx context.Context, accountID, userID uuid.UUID) error
	Delete(ctx context.Context, accountID, userID uuid.UUID) error
}

// PaymentProvider описывает операции платёжного провайдера, используемые
// кошельком. Реализуется клиентом Paystack.
type PaymentProvider interface {
	InitializeTransaction(ctx context.Context, email string, amount float64, reference string) (*paystack.InitializeTransactionResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.TransactionStatus, error)
	ListBanks(ctx context.Context) ([]paystack.Bank, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error)
	CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode string) (*paystack.TransferRecipient, error)
	InitiateTransfer(ctx context.Context, recipientCode string, amount float64, reference, reason string) (*paystack.Transfer, error)
	FetchTransfer(ctx context.Context, reference string) (*paystack.Transfer, error)
}

// UserGetter возвращает пользователя по идентификатору.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// WalletService инкапсулирует пополнения, выводы и банковские счета.
// Баланс меняется только после подтверждения провайдером: инициализация
// платежа создаёт pending запись, зачисление делает verify.
type WalletService struct {
	wallets       WalletRepository
	bankAccounts  BankAccountRepository
	users         UserGetter
	provider      PaymentProvider
	notifier      Notifier
	minWithdrawal float64
}

// DepositResult возвращает данные для перехода на страницу оплаты.
type DepositResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// NewWalletService создаёт сервис кошелька.
func NewWalletService(wallets WalletRepository, bankAccounts BankAccountRepository, users UserGetter, provider PaymentProvider, notifier Notifier, minWithdrawal float64) *WalletService {
	return &WalletService{
		wallets:       wallets,
		bankAccounts:  bankAccounts,
		users:         users,
		provider:      provider,
		notifier:      notifier,
		minWithdrawal: minWithdrawal,
	}
}

// Balance возвращает баланс пользователя.
func (s *WalletService) Balance(ctx context.Context, userID uuid.UUID) (*models.Balance, error) {
	return s.wallets.GetBalance(ctx, userID)
}

// Transactions возвращает журнал транзакций пользователя.
func (s *WalletService) Transactions(ctx context.Context, userID uuid.UUID, txType, status string, limit, offset int) ([]models.Transaction, error) {
	return s.wallets.ListTransactions(ctx, userID, txType, status, limit, offset)
}

// InitiateDeposit создаёт pending пополнение и возвращает платёжную ссылку.
func (s *WalletService) InitiateDeposit(ctx context.Context, userID uuid.UUID, amount float64) (*DepositResult, error) {
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("SQ-DEP-%s", uuid.NewString())
	description := "Пополнение кошелька"
	transaction := &models.Transaction{
		UserID:      userID,
		Amount:      amount,
		Reference:   reference,
		Description: &description,
	}

	if err := s.wallets.CreatePendingDeposit(ctx, transaction); err != nil {
		return nil, err
	}

	initResp, err := s.provider.InitializeTransaction(ctx, user.Email, amount, reference)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("initialize", "error").Inc()
		// Провайдер недоступен: гасим pending запись сразу
		if _, failErr := s.wallets.FailTransaction(ctx, reference); failErr != nil && logger.Log != nil {
			logger.Log.WithField("reference", reference).Warn("wallet service: не удалось пометить транзакцию неуспешной")
		}
		return nil, fmt.Errorf("wallet service: платёжный провайдер недоступен: %w", err)
	}
	metrics.ProviderCalls.WithLabelValues("initialize", "ok").Inc()

	return &DepositResult{
		Reference:        reference,
		AuthorizationURL: initResp.AuthorizationURL,
		AccessCode:       initResp.AccessCode,
	}, nil
}

// VerifyDeposit сверяет платёж с провайдером и зачисляет средства.
// Повторные вызовы по тому же reference безопасны: зачисление
// выполняется не более одного раза.
func (s *WalletService) VerifyDeposit(ctx context.Context, userID uuid.UUID, reference string) (*models.Transaction, error) {
	transaction, err := s.wallets.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if transaction.UserID != userID {
		return nil, fmt.Errorf("wallet service: транзакция недоступна")
	}
	if transaction.Type != models.TransactionTypeDeposit {
		return nil, fmt.Errorf("wallet service: транзакция не является пополнением")
	}

	// Уже обработана: возвращаем как есть
	if transaction.Status != models.TransactionStatusPending {
		return transaction, nil
	}

	return s.settleDeposit(ctx, reference)
}

// settleDeposit запрашивает статус у провайдера и завершает pending пополнение.
func (s *WalletService) settleDeposit(ctx context.Context, reference string) (*models.Transaction, error) {
	status, err := s.provider.VerifyTransaction(ctx, reference)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("verify", "error").Inc()
		return nil, fmt.Errorf("wallet service: платёжный провайдер недоступен: %w", err)
	}
	metrics.ProviderCalls.WithLabelValues("verify", "ok").Inc()

	switch status.Status {
	case "success":
		transaction, err := s.wallets.CompleteDeposit(ctx, reference)
		if err != nil {
			// Параллельный verify уже зачислил средства
			if errors.Is(err, repository.ErrTransactionNotPending) {
				return s.wallets.GetTransactionByReference(ctx, reference)
			}
			return nil, err
		}

		s.notifyTx(ctx, transaction, models.NotificationDepositSuccess,
			"Пополнение зачислено",
			fmt.Sprintf("На ваш баланс зачислено %.2f", transaction.Amount))
		return transaction, nil

	case "failed", "abandoned", "reversed":
		transaction, err := s.wallets.FailTransaction(ctx, reference)
		if err != nil {
			if errors.Is(err, repository.ErrTransactionNotPending) {
				return s.wallets.GetTransactionByReference(ctx, reference)
			}
			return nil, err
		}

		s.notifyTx(ctx, transaction, models.NotificationDepositFailed,
			"Пополнение не прошло",
			"Платёж не был завершён. Средства не списаны")
		return transaction, nil

	default:
		// Платёж ещё обрабатывается
		return s.wallets.GetTransactionByReference(ctx, reference)
	}
}

// ListBanks возвращает справочник банков провайдера.
func (s *WalletService) ListBanks(ctx context.Context) ([]paystack.Bank, error) {
	banks, err := s.provider.ListBanks(ctx)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("list_banks", "error").Inc()
		return nil, fmt.Errorf("wallet service: платёжный провайдер недоступен: %w", err)
	}
	metrics.ProviderCalls.WithLabelValues("list_banks", "ok").Inc()
	return banks, nil
}

// ResolveAccount проверяет реквизиты счёта через провайдера.
func (s *WalletService) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error) {
	if err := validation.ValidateAccountNumber(accountNumber); err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}

	resolved, err := s.provider.ResolveAccount(ctx, accountNumber, bankCode)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("resolve", "error").Inc()
		return nil, fmt.Errorf("wallet service: не удалось проверить счёт: %w", err)
	}
	metrics.ProviderCalls.WithLabelValues("resolve", "ok").Inc()
	return resolved, nil
}

// AddBankAccount проверяет счёт, регистрирует получателя у провайдера
// и сохраняет привязку.
func (s *WalletService) AddBankAccount(ctx context.Context, userID uuid.UUID, bankName, bankCode, accountNumber string) (*models.BankAccount, error) {
	if err := validation.ValidateAccountNumber(accountNumber); err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}
	if err := validation.ValidateNonEmpty("код банка", bankCode); err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}

	resolved, err := s.ResolveAccount(ctx, accountNumber, bankCode)
	if err != nil {
		return nil, err
	}

	recipient, err := s.provider.CreateTransferRecipient(ctx, resolved.AccountName, accountNumber, bankCode)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("recipient", "error").Inc()
		return nil, fmt.Errorf("wallet service: не удалось зарегистрировать получателя: %w", err)
	}
	metrics.ProviderCalls.WithLabelValues("recipient", "ok").Inc()

	account := &models.BankAccount{
		UserID:        userID,
		BankName:      bankName,
		BankCode:      bankCode,
		AccountNumber: accountNumber,
		AccountName:   resolved.AccountName,
		RecipientCode: recipient.RecipientCode,
	}

	if err := s.bankAccounts.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// ListBankAccounts возвращает привязанные счета пользователя.
func (s *WalletService) ListBankAccounts(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error) {
	return s.bankAccounts.List(ctx, userID)
}

// SetDefaultBankAccount делает счёт счётом по умолчанию.
func (s *WalletService) SetDefaultBankAccount(ctx context.Context, accountID, userID uuid.UUID) error {
	return s.bankAccounts.SetDefault(ctx, accountID, userID)
}

// DeleteBankAccount удаляет привязанный счёт.
func (s *WalletService) DeleteBankAccount(ctx context.Context, accountID, userID uuid.UUID) error {
	return s.bankAccounts.Delete(ctx, accountID, userID)
}

// Withdraw списывает средства и запускает перевод на привязанный счёт.
// Списание происходит до обращения к провайдеру; при ошибке перевода
// средства автоматически возвращаются.
func (s *WalletService) Withdraw(ctx context.Context, userID, accountID uuid.UUID, amount float64) (*models.Transaction, error) {
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}
	if amount < s.minWithdrawal {
		return nil, fmt.Errorf("wallet service: минимальная сумма вывода %.2f", s.minWithdrawal)
	}

	account, err := s.bankAccounts.GetByID(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("SQ-WDL-%s", uuid.NewString())
	description := fmt.Sprintf("Вывод на счёт %s", maskAccountNumber(account.AccountNumber))
	transaction := &models.Transaction{
		UserID:      userID,
		Amount:      amount,
		Reference:   reference,
		Description: &description,
	}

	if err := s.wallets.CreateWithdrawal(ctx, transaction); err != nil {
		return nil, err
	}

	transfer, err := s.provider.InitiateTransfer(ctx, account.RecipientCode, amount, reference, "SafeQly withdrawal")
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("transfer", "error").Inc()
		refunded, refundErr := s.wallets.RefundWithdrawal(ctx, reference)
		if refundErr != nil {
			return nil, fmt.Errorf("wallet service: перевод не запущен и возврат не выполнен: %w", refundErr)
		}

		s.notifyTx(ctx, refunded, models.NotificationWithdrawalFailed,
			"Вывод не прошёл",
			"Не удалось запустить перевод. Средства возвращены на баланс")
		return refunded, nil
	}
	metrics.ProviderCalls.WithLabelValues("transfer", "ok").Inc()

	if transfer.Status == "success" {
		completed, err := s.wallets.CompleteWithdrawal(ctx, reference)
		if err != nil {
			return nil, err
		}

		s.notifyTx(ctx, completed, models.NotificationWithdrawalSuccess,
			"Вывод выполнен",
			fmt.Sprintf("Перевод %.2f на счёт %s выполнен", amount, maskAccountNumber(account.AccountNumber)))
		return completed, nil
	}

	// Перевод обрабатывается провайдером, фоновая сверка доведёт его до конца
	return transaction, nil
}

// ReconcileWithdrawal доводит pending вывод до терминального статуса
// по фактическому состоянию перевода. Используется фоновой сверкой.
func (s *WalletService) ReconcileWithdrawal(ctx context.Context, reference string) error {
	transfer, err := s.provider.FetchTransfer(ctx, reference)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("fetch_transfer", "error").Inc()
		return fmt.Errorf("wallet service: платёжный провайдер недоступен: %w", err)
	}
	metrics.ProviderCalls.WithLabelValues("fetch_transfer", "ok").Inc()

	switch transfer.Status {
	case "success":
		completed, err := s.wallets.CompleteWithdrawal(ctx, reference)
		if err != nil {
			if errors.Is(err, repository.ErrTransactionNotPending) {
				return nil
			}
			return err
		}
		s.notifyTx(ctx, completed, models.NotificationWithdrawalSuccess,
			"Вывод выполнен",
			fmt.Sprintf("Перевод %.2f выполнен", completed.Amount))
		return nil

	case "failed", "reversed":
		refunded, err := s.wallets.RefundWithdrawal(ctx, reference)
		if err != nil {
			if errors.Is(err, repository.ErrTransactionNotPending) {
				return nil
			}
			return err
		}
		s.notifyTx(ctx, refunded, models.NotificationWithdrawalFailed,
			"Вывод не прошёл",
			"Перевод отклонён банком. Средства возвращены на баланс")
		return nil

	default:
		return nil
	}
}

// ReconcileDeposit доводит pending пополнение до терминального статуса.
// Используется фоновой сверкой для брошенных платежей.
func (s *WalletService) ReconcileDeposit(ctx context.Context, reference string) error {
	_, err := s.settleDeposit(ctx, reference)
	return err
}

func (s *WalletService) notifyTx(ctx context.Context, transaction *models.Transaction, notifType, title, message string) {
	if s.notifier == nil {
		return
	}
	data := map[string]any{"reference": transaction.Reference}
	if err := s.notifier.Notify(ctx, transaction.UserID, notifType, title, message, data); err != nil && logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id":   transaction.UserID,
			"reference": transaction.Reference,
			"error":     err.Error(),
		}).Warn("wallet service: не удалось отправить уведомление")
	}
}

// maskAccountNumber скрывает номер счёта, оставляя последние 4 цифры.
func maskAccountNumber(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	return "******" + accountNumber[len(accountNumber)-4:]
}
