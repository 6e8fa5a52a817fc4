package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/au-lex/safeqly-backend/internal/cache"
	"github.com/au-lex/safeqly-backend/internal/logger"
	"github.com/au-lex/safeqly-backend/internal/models"
)

const unreadCountKeyPrefix = "notif:unread:"

// NotificationRepository описывает зависимости сервиса от слоя хранилища.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, onlyUnread bool, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, notificationID, userID uuid.UUID) error
}

// Pusher доставляет событие в открытые подключения пользователя.
type Pusher interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// NotificationService сохраняет уведомления и доставляет их в реальном времени.
type NotificationService struct {
	repo   NotificationRepository
	cache  cache.Cache
	pusher Pusher
}

// NewNotificationService создаёт сервис уведомлений.
func NewNotificationService(repo NotificationRepository, c cache.Cache, pusher Pusher) *NotificationService {
	return &NotificationService{
		repo:   repo,
		cache:  c,
		pusher: pusher,
	}
}

// Notify сохраняет уведомление и отправляет его в WebSocket.
// Ошибка доставки не считается ошибкой операции.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, notifType, title, message string, data map[string]any) error {
	notification := &models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err == nil {
			notification.Data = raw
		}
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	s.invalidateUnreadCount(ctx, userID)

	if s.pusher != nil {
		if err := s.pusher.BroadcastToUser(userID, notifType, notification); err != nil && logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"user_id": userID,
				"type":    notifType,
				"error":   err.Error(),
			}).Warn("notification service: не удалось отправить push")
		}
	}

	return nil
}

// List возвращает уведомления пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, onlyUnread bool, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListByUser(ctx, userID, onlyUnread, limit, offset)
}

// UnreadCount возвращает число непрочитанных уведомлений. Значение
// кэшируется на короткое время: счётчик опрашивается фронтендом часто.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	key := unreadCountKeyPrefix + userID.String()

	if cached, err := s.cache.Get(ctx, key); err == nil {
		if count, convErr := strconv.Atoi(cached); convErr == nil {
			return count, nil
		}
	} else if !errors.Is(err, cache.ErrKeyNotFound) && logger.Log != nil {
		logger.Log.WithField("error", err.Error()).Warn("notification service: кэш недоступен")
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := s.cache.Set(ctx, key, strconv.Itoa(count), 30*time.Second); err != nil && logger.Log != nil {
		logger.Log.WithField("error", err.Error()).Warn("notification service: не удалось закэшировать счётчик")
	}

	return count, nil
}

// MarkRead помечает уведомление прочитанным.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, notificationID, userID); err != nil {
		return err
	}
	s.invalidateUnreadCount(ctx, userID)
	return nil
}

// MarkAllRead помечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	s.invalidateUnreadCount(ctx, userID)
	return nil
}

// Delete удаляет уведомление пользователя.
func (s *NotificationService) Delete(ctx context.Context, notificationID, userID uuid.UUID) error {
	if err := s.repo.Delete(ctx, notificationID, userID); err != nil {
		return err
	}
	s.invalidateUnreadCount(ctx, userID)
	return nil
}

func (s *NotificationService) invalidateUnreadCount(ctx context.Context, userID uuid.UUID) {
	if err := s.cache.Del(ctx, unreadCountKeyPrefix+userID.String()); err != nil && logger.Log != nil {
		logger.Log.WithField("error", err.Error()).Warn("notification service: не удалось сбросить кэш счётчика")
	}
}
