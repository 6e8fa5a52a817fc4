package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/au-lex/safeqly-backend/internal/logger"
	"github.com/au-lex/safeqly-backend/internal/metrics"
	"github.com/au-lex/safeqly-backend/internal/models"
	"github.com/au-lex/safeqly-backend/internal/repository"
	"github.com/au-lex/safeqly-backend/internal/validation"
)

// DisputeRepository описывает зависимости сервиса от слоя хранилища.
// Open и ResolveWithPayout атомарны: запись спора и движение сделки
// со средствами меняются одной транзакцией БД.
type DisputeRepository interface {
	Open(ctx context.Context, dispute *models.Dispute) (*models.Escrow, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetActiveByEscrow(ctx context.Context, escrowID uuid.UUID) (*models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Dispute, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]*models.Dispute, error)
	MarkInReview(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	ResolveWithPayout(ctx context.Context, disputeID, adminID uuid.UUID, status, resolution, winner string, fee float64) (*models.Dispute, *models.Escrow, error)
	AttachEvidence(ctx context.Context, disputeID uuid.UUID, evidenceURL, fileName string) (*models.Dispute, error)
}

// DisputeEscrowRepository — операции над сделкой, нужные спорам.
type DisputeEscrowRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
}

// DisputeService инкапсулирует претензии по сделкам. Открыть спор может
// любая сторона активной сделки, разрешить — только администратор.
type DisputeService struct {
	disputes   DisputeRepository
	escrows    DisputeEscrowRepository
	notifier   Notifier
	feePercent float64
}

// RaiseDisputeInput содержит данные нового спора.
type RaiseDisputeInput struct {
	EscrowID         uuid.UUID
	Reason           string
	Description      string
	EvidenceURL      *string
	EvidenceFileName *string
}

// ResolveDisputeInput содержит решение администратора.
type ResolveDisputeInput struct {
	DisputeID  uuid.UUID
	Winner     string
	Resolution string
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(disputes DisputeRepository, escrows DisputeEscrowRepository, notifier Notifier, feePercent float64) *DisputeService {
	return &DisputeService{
		disputes:   disputes,
		escrows:    escrows,
		notifier:   notifier,
		feePercent: feePercent,
	}
}

// Raise открывает спор по активной сделке. Сделка переводится в disputed,
// средства остаются замороженными.
func (s *DisputeService) Raise(ctx context.Context, userID uuid.UUID, in RaiseDisputeInput) (*models.Dispute, error) {
	if !models.ValidDisputeReasons[in.Reason] {
		return nil, fmt.Errorf("dispute service: недопустимая причина спора")
	}
	if err := validation.ValidateDisputeDescription(in.Description); err != nil {
		return nil, fmt.Errorf("dispute service: %w", err)
	}

	escrow, err := s.escrows.GetByID(ctx, in.EscrowID)
	if err != nil {
		return nil, err
	}
	if !escrow.IsParticipant(userID) {
		return nil, fmt.Errorf("dispute service: сделка недоступна")
	}

	if _, err := s.disputes.GetActiveByEscrow(ctx, in.EscrowID); err == nil {
		return nil, fmt.Errorf("dispute service: %w", repository.ErrDisputeAlreadyExists)
	} else if !errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, err
	}

	dispute := &models.Dispute{
		EscrowID:         in.EscrowID,
		RaisedBy:         userID,
		Reason:           in.Reason,
		Description:      in.Description,
		EvidenceURL:      in.EvidenceURL,
		EvidenceFileName: in.EvidenceFileName,
	}

	// Заморозка сделки и запись спора создаются одной транзакцией,
	// guarded переход внутри неё служит воротами для одновременных попыток.
	escrow, err = s.disputes.Open(ctx, dispute)
	if err != nil {
		return nil, err
	}

	metrics.EscrowTransitions.WithLabelValues(models.EscrowStatusDisputed).Inc()

	counterpart := escrow.SellerID
	if userID == escrow.SellerID {
		counterpart = escrow.BuyerID
	}

	s.notify(ctx, counterpart, models.NotificationDisputeRaised,
		"Открыт спор",
		"По вашей сделке открыт спор. Средства заморожены до решения администратора",
		dispute.ID)

	return dispute, nil
}

// Get возвращает спор, доступный пользователю.
func (s *DisputeService) Get(ctx context.Context, disputeID, userID uuid.UUID, isAdmin bool) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if isAdmin {
		return dispute, nil
	}

	escrow, err := s.escrows.GetByID(ctx, dispute.EscrowID)
	if err != nil {
		return nil, err
	}
	if !escrow.IsParticipant(userID) {
		return nil, fmt.Errorf("dispute service: спор недоступен")
	}

	return dispute, nil
}

// ListMine возвращает споры по сделкам пользователя.
func (s *DisputeService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Dispute, error) {
	return s.disputes.ListByUser(ctx, userID, limit, offset)
}

// ListAll возвращает все споры для админки.
func (s *DisputeService) ListAll(ctx context.Context, status string, limit, offset int) ([]*models.Dispute, error) {
	return s.disputes.ListAll(ctx, status, limit, offset)
}

// AttachEvidence добавляет доказательство к активному спору.
// Доступно только стороне, открывшей спор.
func (s *DisputeService) AttachEvidence(ctx context.Context, disputeID, userID uuid.UUID, evidenceURL, fileName string) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.RaisedBy != userID {
		return nil, fmt.Errorf("dispute service: доказательства может добавлять только открывшая спор сторона")
	}

	return s.disputes.AttachEvidence(ctx, disputeID, evidenceURL, fileName)
}

// MarkInReview переводит спор в рассмотрение. Только для администратора.
func (s *DisputeService) MarkInReview(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	return s.disputes.MarkInReview(ctx, disputeID)
}

// Resolve закрывает спор решением администратора и двигает средства
// в пользу победителя. Победитель-продавец получает сумму за вычетом
// комиссии, победитель-покупатель — полный возврат.
func (s *DisputeService) Resolve(ctx context.Context, adminID uuid.UUID, in ResolveDisputeInput) (*models.Dispute, error) {
	if in.Winner != models.DisputeWinnerBuyer && in.Winner != models.DisputeWinnerSeller {
		return nil, fmt.Errorf("dispute service: победитель должен быть buyer или seller")
	}
	if err := validation.ValidateResolution(in.Resolution); err != nil {
		return nil, fmt.Errorf("dispute service: %w", err)
	}

	fee, err := s.payoutFee(ctx, in.DisputeID, in.Winner)
	if err != nil {
		return nil, err
	}

	dispute, escrow, err := s.disputes.ResolveWithPayout(ctx, in.DisputeID, adminID,
		models.DisputeStatusResolved, in.Resolution, in.Winner, fee)
	if err != nil {
		return nil, err
	}

	metrics.EscrowTransitions.WithLabelValues(models.EscrowStatusResolved).Inc()

	winnerID := escrow.BuyerID
	loserID := escrow.SellerID
	if in.Winner == models.DisputeWinnerSeller {
		winnerID, loserID = loserID, winnerID
	}

	s.notify(ctx, winnerID, models.NotificationDisputeResolved,
		"Спор разрешён в вашу пользу",
		fmt.Sprintf("Решение администратора: %s", in.Resolution),
		dispute.ID)
	s.notify(ctx, loserID, models.NotificationDisputeResolved,
		"Спор разрешён",
		fmt.Sprintf("Решение администратора: %s", in.Resolution),
		dispute.ID)

	return dispute, nil
}

// RejectClaim отклоняет претензию как необоснованную: спор получает
// статус rejected, сделка разрешается в пользу продавца.
func (s *DisputeService) RejectClaim(ctx context.Context, adminID, disputeID uuid.UUID, resolution string) (*models.Dispute, error) {
	if err := validation.ValidateResolution(resolution); err != nil {
		return nil, fmt.Errorf("dispute service: %w", err)
	}

	fee, err := s.payoutFee(ctx, disputeID, models.DisputeWinnerSeller)
	if err != nil {
		return nil, err
	}

	dispute, _, err := s.disputes.ResolveWithPayout(ctx, disputeID, adminID,
		models.DisputeStatusRejected, resolution, models.DisputeWinnerSeller, fee)
	if err != nil {
		return nil, err
	}

	metrics.EscrowTransitions.WithLabelValues(models.EscrowStatusResolved).Inc()

	s.notify(ctx, dispute.RaisedBy, models.NotificationDisputeResolved,
		"Претензия отклонена",
		fmt.Sprintf("Решение администратора: %s", resolution),
		dispute.ID)

	return dispute, nil
}

// payoutFee считает комиссию для выплаты по спору. Сумма сделки
// неизменна после создания, поэтому её можно прочитать до транзакции.
// Победитель-покупатель получает полный возврат без комиссии.
func (s *DisputeService) payoutFee(ctx context.Context, disputeID uuid.UUID, winner string) (float64, error) {
	if winner == models.DisputeWinnerBuyer {
		return 0, nil
	}

	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return 0, err
	}
	escrow, err := s.escrows.GetByID(ctx, dispute.EscrowID)
	if err != nil {
		return 0, err
	}

	return roundFee(escrow.Amount, s.feePercent), nil
}

func (s *DisputeService) notify(ctx context.Context, userID uuid.UUID, notifType, title, message string, disputeID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	data := map[string]any{"dispute_id": disputeID.String()}
	if err := s.notifier.Notify(ctx, userID, notifType, title, message, data); err != nil && logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id":    userID,
			"dispute_id": disputeID,
			"error":      err.Error(),
		}).Warn("dispute service: не удалось отправить уведомление")
	}
}
