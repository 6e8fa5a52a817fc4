package service

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/au-lex/safeqly-backend/internal/logger"
	"github.com/au-lex/safeqly-backend/internal/metrics"
	"github.com/au-lex/safeqly-backend/internal/models"
	"github.com/au-lex/safeqly-backend/internal/validation"
)

// EscrowRepository описывает зависимости сервиса от слоя хранилища.
type EscrowRepository interface {
	Create(ctx context.Context, escrow *models.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*models.Escrow, error)
	Accept(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error)
	Reject(ctx context.Context, escrowID uuid.UUID, reason string) (*models.Escrow, error)
	Cancel(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error)
	Complete(ctx context.Context, escrowID uuid.UUID) (*models.Escrow, error)
	Release(ctx context.Context, escrowID uuid.UUID, fee float64) (*models.Escrow, error)
}

// SellerResolver находит продавца по тегу.
type SellerResolver interface {
	GetByUserTag(ctx context.Context, userTag string) (*models.User, error)
}

// Notifier отправляет уведомления сторонам сделки.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, notifType, title, message string, data map[string]any) error
}

// EscrowService инкапсулирует жизненный цикл защищённой сделки.
// Права сторон проверяются здесь, движение средств — в репозитории.
type EscrowService struct {
	repo       EscrowRepository
	users      SellerResolver
	notifier   Notifier
	feePercent float64
}

// CreateEscrowInput содержит данные новой сделки.
type CreateEscrowInput struct {
	SellerTag        string
	Amount           float64
	Items            string
	DeliveryDate     string
	AttachedFileURL  *string
	AttachedFileName *string
}

// NewEscrowService создаёт сервис сделок.
func NewEscrowService(repo EscrowRepository, users SellerResolver, notifier Notifier, feePercent float64) *EscrowService {
	return &EscrowService{
		repo:       repo,
		users:      users,
		notifier:   notifier,
		feePercent: feePercent,
	}
}

// Fee возвращает комиссию площадки для указанной суммы.
func (s *EscrowService) Fee(amount float64) float64 {
	return roundFee(amount, s.feePercent)
}

// roundFee считает процентную комиссию, округлённую до копеек.
func roundFee(amount, percent float64) float64 {
	return math.Round(amount*percent) / 100
}

// Create создаёт сделку: средства покупателя замораживаются сразу.
func (s *EscrowService) Create(ctx context.Context, buyerID uuid.UUID, in CreateEscrowInput) (*models.Escrow, error) {
	if err := validation.ValidateAmount(in.Amount); err != nil {
		return nil, fmt.Errorf("escrow service: %w", err)
	}
	if err := validation.ValidateEscrowItems(in.Items); err != nil {
		return nil, fmt.Errorf("escrow service: %w", err)
	}
	if err := validation.ValidateDeliveryDate(in.DeliveryDate); err != nil {
		return nil, fmt.Errorf("escrow service: %w", err)
	}

	seller, err := s.users.GetByUserTag(ctx, in.SellerTag)
	if err != nil {
		return nil, fmt.Errorf("escrow service: продавец не найден")
	}

	if seller.ID == buyerID {
		return nil, fmt.Errorf("escrow service: нельзя открыть сделку с самим собой")
	}
	if seller.IsSuspended {
		return nil, fmt.Errorf("escrow service: аккаунт продавца заблокирован")
	}

	escrow := &models.Escrow{
		BuyerID:          buyerID,
		SellerID:         seller.ID,
		Amount:           in.Amount,
		Items:            in.Items,
		DeliveryDate:     in.DeliveryDate,
		AttachedFileURL:  in.AttachedFileURL,
		AttachedFileName: in.AttachedFileName,
	}

	if err := s.repo.Create(ctx, escrow); err != nil {
		return nil, err
	}

	metrics.EscrowTransitions.WithLabelValues(models.EscrowStatusPending).Inc()

	s.notify(ctx, seller.ID, models.NotificationEscrowCreated,
		"Новая сделка",
		fmt.Sprintf("Вам предложена сделка на сумму %.2f", escrow.Amount),
		escrow.ID)

	return escrow, nil
}

// Get возвращает сделку, доступную пользователю.
func (s *EscrowService) Get(ctx context.Context, escrowID, userID uuid.UUID, isAdmin bool) (*models.Escrow, error) {
	escrow, err := s.repo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}

	if !isAdmin && !escrow.IsParticipant(userID) {
		return nil, fmt.Errorf("escrow service: сделка недоступна")
	}

	return escrow, nil
}

// List возвращает сделки пользователя.
func (s *EscrowService) List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]*models.Escrow, error) {
	return s.repo.ListByUser(ctx, userID, status, limit, offset)
}

// Accept подтверждает сделку. Доступно только продавцу из статуса pending.
func (s *EscrowService) Accept(ctx context.Context, escrowID, userID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.authorize(ctx, escrowID, userID, roleSeller)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Accept(ctx, escrow.ID)
	if err != nil {
		return nil, err
	}

	metrics.EscrowTransitions.WithLabelValues(models.EscrowStatusAccepted).Inc()

	s.notify(ctx, updated.BuyerID, models.NotificationEscrowAccepted,
		"Сделка принята",
		"Продавец принял сделку и приступил к выполнению",
		updated.ID)

	return updated, nil
}

// Reject отклоняет сделку с указанием причины. Доступно только продавцу,
// средства полностью возвращаются покупателю.
func (s *EscrowService) Reject(ctx context.Context, escrowID, userID uuid.UUID, reason string) (*models.Escrow, error) {
	if err := validation.ValidateNonEmpty("причина отклонения", reason); err != nil {
		return nil, fmt.Errorf("escrow service: %w", err)
	}

	escrow, err := s.authorize(ctx, escrowID, userID, roleSeller)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Reject(ctx, escrow.ID, reason)
	if err != nil {
		return nil, err
	}

	metrics.EscrowTransitions.WithLabelValues(models.EscrowStatusRejected).Inc()

	s.notify(ctx, updated.BuyerID, models.NotificationEscrowRejected,
		"Сделка отклонена",
		fmt.Sprintf("Продавец отклонил сделку: %s. Средства возвращены на баланс", reason),
		updated.ID)

	return updated, nil
}

// Cancel отменяет сделку до её принятия. Доступно только покупателю,
// средства полностью возвращаются.
func (s *EscrowService) Cancel(ctx context.Context, escrowID, userID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.authorize(ctx, escrowID, userID, roleBuyer)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Cancel(ctx, escrow.ID)
	if err != nil {
		return nil, err
	}

	metrics.EscrowTransitions.WithLabelValues(models.EscrowStatusCancelled).Inc()

	s.notify(ctx, updated.SellerID, models.NotificationEscrowCancelled,
		"Сделка отменена",
		"Покупатель отменил сделку до её принятия",
		updated.ID)

	return updated, nil
}

// Complete помечает работу выполненной. Доступно только продавцу.
func (s *EscrowService) Complete(ctx context.Context, escrowID, userID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.authorize(ctx, escrowID, userID, roleSeller)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Complete(ctx, escrow.ID)
	if err != nil {
		return nil, err
	}

	metrics.EscrowTransitions.WithLabelValues(models.EscrowStatusCompleted).Inc()

	s.notify(ctx, updated.BuyerID, models.NotificationEscrowCompleted,
		"Работа выполнена",
		"Продавец отметил сделку выполненной. Подтвердите получение",
		updated.ID)

	return updated, nil
}

// Release подтверждает получение и выплачивает продавцу сумму за вычетом
// комиссии. Доступно только покупателю.
func (s *EscrowService) Release(ctx context.Context, escrowID, userID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.authorize(ctx, escrowID, userID, roleBuyer)
	if err != nil {
		return nil, err
	}

	fee := s.Fee(escrow.Amount)
	updated, err := s.repo.Release(ctx, escrow.ID, fee)
	if err != nil {
		return nil, err
	}

	metrics.EscrowTransitions.WithLabelValues(models.EscrowStatusReleased).Inc()

	s.notify(ctx, updated.SellerID, models.NotificationEscrowReleased,
		"Средства выплачены",
		fmt.Sprintf("Покупатель подтвердил сделку. На ваш баланс зачислено %.2f", updated.Amount-fee),
		updated.ID)

	return updated, nil
}

type escrowRole int

const (
	roleBuyer escrowRole = iota
	roleSeller
)

// authorize проверяет, что операцию выполняет нужная сторона сделки.
func (s *EscrowService) authorize(ctx context.Context, escrowID, userID uuid.UUID, role escrowRole) (*models.Escrow, error) {
	escrow, err := s.repo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}

	switch role {
	case roleBuyer:
		if escrow.BuyerID != userID {
			return nil, fmt.Errorf("escrow service: операция доступна только покупателю")
		}
	case roleSeller:
		if escrow.SellerID != userID {
			return nil, fmt.Errorf("escrow service: операция доступна только продавцу")
		}
	}

	return escrow, nil
}

func (s *EscrowService) notify(ctx context.Context, userID uuid.UUID, notifType, title, message string, escrowID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	data := map[string]any{"escrow_id": escrowID.String()}
	if err := s.notifier.Notify(ctx, userID, notifType, title, message, data); err != nil && logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id":   userID,
			"escrow_id": escrowID,
			"error":     err.Error(),
		}).Warn("escrow service: не удалось отправить уведомление")
	}
}
