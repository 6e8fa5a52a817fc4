package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/au-lex/safeqly-backend/internal/logger"
	"github.com/au-lex/safeqly-backend/internal/models"
)

// AdminUserRepository описывает операции над пользователями для админки.
type AdminUserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, search string, limit, offset int) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
	SetSuspended(ctx context.Context, userID uuid.UUID, suspended bool) error
	Delete(ctx context.Context, userID uuid.UUID) error
	DeleteAllSessions(ctx context.Context, userID uuid.UUID) error
}

// AdminStatsRepository — агрегаты для сводной панели.
type AdminStatsRepository interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
	TotalHeldAmount(ctx context.Context) (float64, error)
}

// AdminLedgerRepository — журнал транзакций всех пользователей.
type AdminLedgerRepository interface {
	ListAllTransactions(ctx context.Context, txType, status string, limit, offset int) ([]models.Transaction, error)
	TotalVolume(ctx context.Context, txType string) (float64, error)
}

// AdminDisputeRepository — агрегаты по спорам.
type AdminDisputeRepository interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// AdminService инкапсулирует операции администратора над пользователями,
// журналом транзакций и сводной статистикой.
type AdminService struct {
	users    AdminUserRepository
	escrows  AdminStatsRepository
	disputes AdminDisputeRepository
	ledger   AdminLedgerRepository
	notifier Notifier
}

// PlatformStats — сводка для админской панели.
type PlatformStats struct {
	TotalUsers       int            `json:"total_users"`
	EscrowsByStatus  map[string]int `json:"escrows_by_status"`
	DisputesByStatus map[string]int `json:"disputes_by_status"`
	TotalHeld        float64        `json:"total_held"`
	DepositVolume    float64        `json:"deposit_volume"`
	WithdrawalVolume float64        `json:"withdrawal_volume"`
}

// NewAdminService создаёт сервис администратора.
func NewAdminService(users AdminUserRepository, escrows AdminStatsRepository, disputes AdminDisputeRepository, ledger AdminLedgerRepository, notifier Notifier) *AdminService {
	return &AdminService{
		users:    users,
		escrows:  escrows,
		disputes: disputes,
		ledger:   ledger,
		notifier: notifier,
	}
}

// ListUsers возвращает пользователей с поиском и пагинацией.
func (s *AdminService) ListUsers(ctx context.Context, search string, limit, offset int) ([]*models.User, error) {
	return s.users.List(ctx, search, limit, offset)
}

// GetUser возвращает пользователя по идентификатору.
func (s *AdminService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// SuspendUser блокирует пользователя и завершает все его сессии.
func (s *AdminService) SuspendUser(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		return fmt.Errorf("admin service: нельзя заблокировать администратора")
	}

	if err := s.users.SetSuspended(ctx, userID, true); err != nil {
		return err
	}

	if err := s.users.DeleteAllSessions(ctx, userID); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, userID, models.NotificationAccountSuspended,
			"Аккаунт заблокирован",
			"Ваш аккаунт заблокирован администратором. Обратитесь в поддержку", nil); err != nil && logger.Log != nil {
			logger.Log.WithField("user_id", userID).Warn("admin service: не удалось отправить уведомление")
		}
	}

	return nil
}

// UnsuspendUser снимает блокировку.
func (s *AdminService) UnsuspendUser(ctx context.Context, userID uuid.UUID) error {
	return s.users.SetSuspended(ctx, userID, false)
}

// DeleteUser удаляет пользователя.
func (s *AdminService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		return fmt.Errorf("admin service: нельзя удалить администратора")
	}

	return s.users.Delete(ctx, userID)
}

// ListTransactions возвращает журнал транзакций всех пользователей.
func (s *AdminService) ListTransactions(ctx context.Context, txType, status string, limit, offset int) ([]models.Transaction, error) {
	return s.ledger.ListAllTransactions(ctx, txType, status, limit, offset)
}

// Stats собирает сводку по платформе.
func (s *AdminService) Stats(ctx context.Context) (*PlatformStats, error) {
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}

	escrowCounts, err := s.escrows.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	disputeCounts, err := s.disputes.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	totalHeld, err := s.escrows.TotalHeldAmount(ctx)
	if err != nil {
		return nil, err
	}

	depositVolume, err := s.ledger.TotalVolume(ctx, models.TransactionTypeDeposit)
	if err != nil {
		return nil, err
	}

	withdrawalVolume, err := s.ledger.TotalVolume(ctx, models.TransactionTypeWithdrawal)
	if err != nil {
		return nil, err
	}

	return &PlatformStats{
		TotalUsers:       totalUsers,
		EscrowsByStatus:  escrowCounts,
		DisputesByStatus: disputeCounts,
		TotalHeld:        totalHeld,
		DepositVolume:    depositVolume,
		WithdrawalVolume: withdrawalVolume,
	}, nil
}
