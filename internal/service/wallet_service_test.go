package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/au-lex/safeqly-backend/internal/models"
	"github.com/au-lex/safeqly-backend/internal/paystack"
	"github.com/au-lex/safeqly-backend/internal/repository"
)

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Balance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Balance), args.Error(1)
}

func (m *mockWalletRepo) CreatePendingDeposit(ctx context.Context, transaction *models.Transaction) error {
	args := m.Called(ctx, transaction)
	if args.Error(0) == nil {
		transaction.ID = uuid.New()
		transaction.Type = models.TransactionTypeDeposit
		transaction.Status = models.TransactionStatusPending
	}
	return args.Error(0)
}

func (m *mockWalletRepo) CompleteDeposit(ctx context.Context, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockWalletRepo) FailTransaction(ctx context.Context, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockWalletRepo) CreateWithdrawal(ctx context.Context, transaction *models.Transaction) error {
	args := m.Called(ctx, transaction)
	if args.Error(0) == nil {
		transaction.ID = uuid.New()
		transaction.Type = models.TransactionTypeWithdrawal
		transaction.Status = models.TransactionStatusPending
	}
	return args.Error(0)
}

func (m *mockWalletRepo) CompleteWithdrawal(ctx context.Context, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockWalletRepo) RefundWithdrawal(ctx context.Context, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockWalletRepo) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockWalletRepo) ListTransactions(ctx context.Context, userID uuid.UUID, txType, status string, limit, offset int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, txType, status, limit, offset)
	return args.Get(0).([]models.Transaction), args.Error(1)
}

type mockBankAccountRepo struct {
	mock.Mock
}

func (m *mockBankAccountRepo) Create(ctx context.Context, account *models.BankAccount) error {
	args := m.Called(ctx, account)
	if args.Error(0) == nil {
		account.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockBankAccountRepo) GetByID(ctx context.Context, accountID, userID uuid.UUID) (*models.BankAccount, error) {
	args := m.Called(ctx, accountID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BankAccount), args.Error(1)
}

func (m *mockBankAccountRepo) List(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.BankAccount), args.Error(1)
}

func (m *mockBankAccountRepo) SetDefault(ctx context.Context, accountID, userID uuid.UUID) error {
	return m.Called(ctx, accountID, userID).Error(0)
}

func (m *mockBankAccountRepo) Delete(ctx context.Context, accountID, userID uuid.UUID) error {
	return m.Called(ctx, accountID, userID).Error(0)
}

type mockUserGetter struct {
	mock.Mock
}

func (m *mockUserGetter) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// stubProvider — управляемая заглушка платёжного провайдера.
type stubProvider struct {
	initErr        error
	verifyStatus   string
	verifyErr      error
	transferStatus string
	transferErr    error
	fetchStatus    string
	fetchErr       error
}

func (s *stubProvider) InitializeTransaction(ctx context.Context, email string, amount float64, reference string) (*paystack.InitializeTransactionResponse, error) {
	if s.initErr != nil {
		return nil, s.initErr
	}
	return &paystack.InitializeTransactionResponse{
		AuthorizationURL: "https://checkout.paystack.com/abc",
		AccessCode:       "abc",
		Reference:        reference,
	}, nil
}

func (s *stubProvider) VerifyTransaction(ctx context.Context, reference string) (*paystack.TransactionStatus, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &paystack.TransactionStatus{Reference: reference, Status: s.verifyStatus}, nil
}

func (s *stubProvider) ListBanks(ctx context.Context) ([]paystack.Bank, error) {
	return []paystack.Bank{{Name: "Test Bank", Code: "001"}}, nil
}

func (s *stubProvider) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error) {
	return &paystack.ResolvedAccount{AccountNumber: accountNumber, AccountName: "IVAN PETROV"}, nil
}

func (s *stubProvider) CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode string) (*paystack.TransferRecipient, error) {
	return &paystack.TransferRecipient{RecipientCode: "RCP_test"}, nil
}

func (s *stubProvider) InitiateTransfer(ctx context.Context, recipientCode string, amount float64, reference, reason string) (*paystack.Transfer, error) {
	if s.transferErr != nil {
		return nil, s.transferErr
	}
	return &paystack.Transfer{Reference: reference, Status: s.transferStatus}, nil
}

func (s *stubProvider) FetchTransfer(ctx context.Context, reference string) (*paystack.Transfer, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &paystack.Transfer{Reference: reference, Status: s.fetchStatus}, nil
}

func TestWalletService_InitiateDeposit_ProviderFailureFailsTransaction(t *testing.T) {
	wallets := new(mockWalletRepo)
	users := new(mockUserGetter)
	provider := &stubProvider{initErr: errors.New("connection refused")}
	svc := NewWalletService(wallets, new(mockBankAccountRepo), users, provider, nil, 100)
	ctx := context.Background()
	userID := uuid.New()

	users.On("GetByID", ctx, userID).Return(&models.User{ID: userID, Email: "user@example.com"}, nil)
	wallets.On("CreatePendingDeposit", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
	wallets.On("FailTransaction", ctx, mock.AnythingOfType("string")).
		Return(&models.Transaction{Status: models.TransactionStatusFailed}, nil)

	_, err := svc.InitiateDeposit(ctx, userID, 1000)
	assert.Error(t, err)
	wallets.AssertCalled(t, "FailTransaction", ctx, mock.AnythingOfType("string"))
}

func TestWalletService_InitiateDeposit_Success(t *testing.T) {
	wallets := new(mockWalletRepo)
	users := new(mockUserGetter)
	svc := NewWalletService(wallets, new(mockBankAccountRepo), users, &stubProvider{}, nil, 100)
	ctx := context.Background()
	userID := uuid.New()

	users.On("GetByID", ctx, userID).Return(&models.User{ID: userID, Email: "user@example.com"}, nil)
	wallets.On("CreatePendingDeposit", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)

	result, err := svc.InitiateDeposit(ctx, userID, 1000)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Reference, "SQ-DEP-"))
	assert.NotEmpty(t, result.AuthorizationURL)
}

func TestWalletService_VerifyDeposit_AlreadySettled(t *testing.T) {
	wallets := new(mockWalletRepo)
	svc := NewWalletService(wallets, new(mockBankAccountRepo), new(mockUserGetter), &stubProvider{}, nil, 100)
	ctx := context.Background()
	userID := uuid.New()

	settled := &models.Transaction{
		UserID:    userID,
		Type:      models.TransactionTypeDeposit,
		Status:    models.TransactionStatusSuccess,
		Reference: "SQ-DEP-ref",
	}
	wallets.On("GetTransactionByReference", ctx, "SQ-DEP-ref").Return(settled, nil)

	// Повторный verify не трогает баланс.
	tx, err := svc.VerifyDeposit(ctx, userID, "SQ-DEP-ref")
	assert.NoError(t, err)
	assert.Equal(t, settled, tx)
	wallets.AssertNotCalled(t, "CompleteDeposit")
}

func TestWalletService_VerifyDeposit_ConcurrentSettle(t *testing.T) {
	wallets := new(mockWalletRepo)
	provider := &stubProvider{verifyStatus: "success"}
	svc := NewWalletService(wallets, new(mockBankAccountRepo), new(mockUserGetter), provider, nil, 100)
	ctx := context.Background()
	userID := uuid.New()

	pending := &models.Transaction{
		UserID:    userID,
		Type:      models.TransactionTypeDeposit,
		Status:    models.TransactionStatusPending,
		Reference: "SQ-DEP-ref",
	}
	settled := &models.Transaction{
		UserID:    userID,
		Type:      models.TransactionTypeDeposit,
		Status:    models.TransactionStatusSuccess,
		Reference: "SQ-DEP-ref",
	}

	wallets.On("GetTransactionByReference", ctx, "SQ-DEP-ref").Return(pending, nil).Once()
	// Параллельный verify успел первым: зачисление не дублируется.
	wallets.On("CompleteDeposit", ctx, "SQ-DEP-ref").Return(nil, repository.ErrTransactionNotPending)
	wallets.On("GetTransactionByReference", ctx, "SQ-DEP-ref").Return(settled, nil)

	tx, err := svc.VerifyDeposit(ctx, userID, "SQ-DEP-ref")
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, tx.Status)
}

func TestWalletService_VerifyDeposit_ForeignTransaction(t *testing.T) {
	wallets := new(mockWalletRepo)
	svc := NewWalletService(wallets, new(mockBankAccountRepo), new(mockUserGetter), &stubProvider{}, nil, 100)
	ctx := context.Background()

	wallets.On("GetTransactionByReference", ctx, "SQ-DEP-ref").Return(&models.Transaction{
		UserID: uuid.New(),
		Type:   models.TransactionTypeDeposit,
		Status: models.TransactionStatusPending,
	}, nil)

	_, err := svc.VerifyDeposit(ctx, uuid.New(), "SQ-DEP-ref")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "недоступна")
}

func TestWalletService_Withdraw_BelowMinimum(t *testing.T) {
	svc := NewWalletService(new(mockWalletRepo), new(mockBankAccountRepo), new(mockUserGetter), &stubProvider{}, nil, 100)

	_, err := svc.Withdraw(context.Background(), uuid.New(), uuid.New(), 50)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "минимальная сумма")
}

func TestWalletService_Withdraw_ProviderFailureRefunds(t *testing.T) {
	wallets := new(mockWalletRepo)
	accounts := new(mockBankAccountRepo)
	provider := &stubProvider{transferErr: errors.New("transfer rejected")}
	svc := NewWalletService(wallets, accounts, new(mockUserGetter), provider, nil, 100)
	ctx := context.Background()
	userID := uuid.New()
	accountID := uuid.New()

	accounts.On("GetByID", ctx, accountID, userID).Return(&models.BankAccount{
		ID:            accountID,
		UserID:        userID,
		AccountNumber: "0123456789",
		RecipientCode: "RCP_test",
	}, nil)
	wallets.On("CreateWithdrawal", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
	wallets.On("RefundWithdrawal", ctx, mock.AnythingOfType("string")).Return(&models.Transaction{
		UserID: userID,
		Status: models.TransactionStatusFailed,
	}, nil)

	tx, err := svc.Withdraw(ctx, userID, accountID, 500)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, tx.Status)
	wallets.AssertCalled(t, "RefundWithdrawal", ctx, mock.AnythingOfType("string"))
	wallets.AssertNotCalled(t, "CompleteWithdrawal")
}

func TestWalletService_Withdraw_ImmediateSuccess(t *testing.T) {
	wallets := new(mockWalletRepo)
	accounts := new(mockBankAccountRepo)
	provider := &stubProvider{transferStatus: "success"}
	svc := NewWalletService(wallets, accounts, new(mockUserGetter), provider, nil, 100)
	ctx := context.Background()
	userID := uuid.New()
	accountID := uuid.New()

	accounts.On("GetByID", ctx, accountID, userID).Return(&models.BankAccount{
		ID:            accountID,
		UserID:        userID,
		AccountNumber: "0123456789",
		RecipientCode: "RCP_test",
	}, nil)
	wallets.On("CreateWithdrawal", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
	wallets.On("CompleteWithdrawal", ctx, mock.AnythingOfType("string")).Return(&models.Transaction{
		UserID: userID,
		Status: models.TransactionStatusSuccess,
	}, nil)

	tx, err := svc.Withdraw(ctx, userID, accountID, 500)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, tx.Status)
}

func TestWalletService_Withdraw_PendingStaysForReconciler(t *testing.T) {
	wallets := new(mockWalletRepo)
	accounts := new(mockBankAccountRepo)
	provider := &stubProvider{transferStatus: "pending"}
	svc := NewWalletService(wallets, accounts, new(mockUserGetter), provider, nil, 100)
	ctx := context.Background()
	userID := uuid.New()
	accountID := uuid.New()

	accounts.On("GetByID", ctx, accountID, userID).Return(&models.BankAccount{
		ID:            accountID,
		UserID:        userID,
		AccountNumber: "0123456789",
		RecipientCode: "RCP_test",
	}, nil)
	wallets.On("CreateWithdrawal", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)

	tx, err := svc.Withdraw(ctx, userID, accountID, 500)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	wallets.AssertNotCalled(t, "CompleteWithdrawal")
	wallets.AssertNotCalled(t, "RefundWithdrawal")
}

func TestWalletService_ReconcileWithdrawal_FailedRefunds(t *testing.T) {
	wallets := new(mockWalletRepo)
	provider := &stubProvider{fetchStatus: "failed"}
	svc := NewWalletService(wallets, new(mockBankAccountRepo), new(mockUserGetter), provider, nil, 100)
	ctx := context.Background()

	wallets.On("RefundWithdrawal", ctx, "SQ-WDL-ref").Return(&models.Transaction{
		Status: models.TransactionStatusFailed,
	}, nil)

	err := svc.ReconcileWithdrawal(ctx, "SQ-WDL-ref")
	assert.NoError(t, err)
	wallets.AssertExpectations(t)
}

func TestWalletService_ReconcileWithdrawal_AlreadySettled(t *testing.T) {
	wallets := new(mockWalletRepo)
	provider := &stubProvider{fetchStatus: "success"}
	svc := NewWalletService(wallets, new(mockBankAccountRepo), new(mockUserGetter), provider, nil, 100)
	ctx := context.Background()

	wallets.On("CompleteWithdrawal", ctx, "SQ-WDL-ref").Return(nil, repository.ErrTransactionNotPending)

	// Сверка другим путём уже завершила транзакцию: ошибки нет.
	err := svc.ReconcileWithdrawal(ctx, "SQ-WDL-ref")
	assert.NoError(t, err)
}

func TestMaskAccountNumber(t *testing.T) {
	assert.Equal(t, "******6789", maskAccountNumber("0123456789"))
	assert.Equal(t, "1234", maskAccountNumber("1234"))
}
