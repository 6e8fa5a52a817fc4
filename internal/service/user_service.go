package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/au-lex/safeqly-backend/internal/models"
	"github.com/au-lex/safeqly-backend/internal/validation"
)

// UserRepository описывает зависимости сервиса профиля от слоя хранилища.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUserTag(ctx context.Context, userTag string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
}

// UserService инкапсулирует работу с профилем пользователя.
type UserService struct {
	repo UserRepository
}

// UpdateProfileInput содержит редактируемые поля профиля.
type UpdateProfileInput struct {
	FullName  *string
	Phone     *string
	AvatarURL *string
}

// NewUserService создаёт сервис профиля.
func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Get возвращает пользователя по идентификатору.
func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// UpdateProfile обновляет переданные поля профиля.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil {
		if err := validation.ValidateFullName(*in.FullName); err != nil {
			return nil, fmt.Errorf("user service: %w", err)
		}
		user.FullName = *in.FullName
	}
	if in.Phone != nil {
		if err := validation.ValidatePhone(*in.Phone); err != nil {
			return nil, fmt.Errorf("user service: %w", err)
		}
		user.Phone = *in.Phone
	}
	if in.AvatarURL != nil {
		user.AvatarURL = in.AvatarURL
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Lookup находит пользователя по тегу для выбора контрагента сделки.
// Возвращается только публичное представление.
func (s *UserService) Lookup(ctx context.Context, userTag string) (*models.PublicUser, error) {
	if err := validation.ValidateUserTag(userTag); err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}

	user, err := s.repo.GetByUserTag(ctx, userTag)
	if err != nil {
		return nil, err
	}

	if user.IsSuspended {
		return nil, fmt.Errorf("user service: пользователь недоступен")
	}

	return &models.PublicUser{
		ID:        user.ID,
		FullName:  user.FullName,
		UserTag:   user.UserTag,
		AvatarURL: user.AvatarURL,
	}, nil
}
