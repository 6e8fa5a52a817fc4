package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/au-lex/safeqly-backend/internal/cache"
	"github.com/au-lex/safeqly-backend/internal/goroutine"
	"github.com/au-lex/safeqly-backend/internal/logger"
	"github.com/au-lex/safeqly-backend/internal/mailer"
	"github.com/au-lex/safeqly-backend/internal/models"
	"github.com/au-lex/safeqly-backend/internal/repository"
	"github.com/au-lex/safeqly-backend/internal/validation"
)

const (
	otpKeyPrefix   = "otp:verify:"
	resetKeyPrefix = "otp:reset:"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUserTag(ctx context.Context, userTag string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetEmailVerified(ctx context.Context, userID uuid.UUID) error
	UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
	DeleteAllSessions(ctx context.Context, userID uuid.UUID) error
}

// AuthService инкапсулирует бизнес-логику регистрации и аутентификации.
type AuthService struct {
	repo         AuthRepository
	tokenManager *TokenManager
	cache        cache.Cache
	mailer       mailer.Mailer
	otpTTL       time.Duration
}

// SignupInput содержит данные пользователя при регистрации.
type SignupInput struct {
	FullName string
	Email    string
	Phone    string
	UserTag  string
	Password string
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult возвращает итог авторизации.
type AuthResult struct {
	User      *models.User
	TokenPair *TokenPair
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, tokenManager *TokenManager, c cache.Cache, m mailer.Mailer, otpTTL time.Duration) *AuthService {
	return &AuthService{
		repo:         repo,
		tokenManager: tokenManager,
		cache:        c,
		mailer:       m,
		otpTTL:       otpTTL,
	}
}

// Signup создаёт нового пользователя и отправляет код подтверждения на email.
// Токены не выдаются до подтверждения email.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if err := validation.ValidateFullName(in.FullName); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if err := validation.ValidateUserTag(in.UserTag); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if err := validation.ValidatePhone(in.Phone); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	if _, err := s.repo.GetByEmail(ctx, strings.ToLower(in.Email)); err == nil {
		return nil, fmt.Errorf("auth service: email уже зарегистрирован")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	if _, err := s.repo.GetByUserTag(ctx, in.UserTag); err == nil {
		return nil, fmt.Errorf("auth service: тег пользователя уже занят")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        strings.TrimSpace(in.Phone),
		UserTag:      strings.TrimSpace(in.UserTag),
		PasswordHash: string(passHash),
		Role:         models.RoleUser,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.issueOTP(ctx, otpKeyPrefix, user.Email, s.mailer.SendOTP); err != nil {
		return nil, err
	}

	return user, nil
}

// VerifyEmail сверяет код подтверждения и помечает email подтверждённым.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	if err := validation.ValidateOTPCode(code); err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.IsEmailVerified {
		return nil
	}

	if err := s.checkOTP(ctx, otpKeyPrefix, email, code); err != nil {
		return err
	}

	return s.repo.SetEmailVerified(ctx, user.ID)
}

// ResendOTP повторно отправляет код подтверждения email.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return fmt.Errorf("auth service: email уже подтверждён")
	}

	return s.issueOTP(ctx, otpKeyPrefix, email, s.mailer.SendOTP)
}

// Login проверяет учётные данные и возвращает пользовательские токены.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	user, err := s.authenticate(ctx, in)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user, ScopeUser, meta)
}

// AdminLogin проверяет учётные данные администратора и возвращает
// токены с админским скоупом.
func (s *AuthService) AdminLogin(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	user, err := s.authenticate(ctx, in)
	if err != nil {
		return nil, err
	}

	if user.Role != models.RoleAdmin {
		return nil, fmt.Errorf("auth service: неверный email или пароль")
	}

	return s.issueTokens(ctx, user, ScopeAdmin, meta)
}

// authenticate выполняет общие проверки входа.
func (s *AuthService) authenticate(ctx context.Context, in LoginInput) (*models.User, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		return nil, fmt.Errorf("auth service: неверный email или пароль")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, fmt.Errorf("auth service: неверный email или пароль")
	}

	if user.IsSuspended {
		return nil, fmt.Errorf("auth service: аккаунт заблокирован")
	}

	if !user.IsEmailVerified {
		return nil, fmt.Errorf("auth service: email не подтверждён")
	}

	return user, nil
}

// issueTokens выпускает пару токенов и создаёт сессию.
func (s *AuthService) issueTokens(ctx context.Context, user *models.User, scope string, meta map[string]string) (*AuthResult, error) {
	if err := s.repo.UpdateLastLoginAt(ctx, user.ID); err != nil {
		if logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"user_id": user.ID,
				"error":   err.Error(),
			}).Warn("auth service: не удалось обновить last_login_at")
		}
	}

	tokenPair, _, refreshExp, err := s.tokenManager.GeneratePair(user, scope)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}

	if meta != nil {
		if ua, ok := meta["user_agent"]; ok {
			session.UserAgent = &ua
		}
		if ip, ok := meta["ip"]; ok {
			session.IPAddress = &ip
		}
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:      user,
		TokenPair: tokenPair,
	}, nil
}

// Refresh выпускает новую пару токенов по действующему refresh токену.
// Скоуп исходного токена сохраняется.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta map[string]string) (*TokenPair, error) {
	claims, err := s.tokenManager.ParseRefresh(oldToken)
	if err != nil {
		return nil, fmt.Errorf("auth service: refresh токен невалиден: %w", err)
	}

	if _, err := s.repo.GetSessionByToken(ctx, oldToken); err != nil {
		return nil, fmt.Errorf("auth service: сессия не найдена или истекла")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("auth service: некорректный subject: %w", err)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.IsSuspended {
		return nil, fmt.Errorf("auth service: аккаунт заблокирован")
	}

	scope := claims.Scope
	if scope == "" {
		scope = ScopeUser
	}

	tokenPair, _, refreshExp, err := s.tokenManager.GeneratePair(user, scope)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteSession(ctx, oldToken); err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       userID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}

	if meta != nil {
		if ua, ok := meta["user_agent"]; ok {
			session.UserAgent = &ua
		}
		if ip, ok := meta["ip"]; ok {
			session.IPAddress = &ip
		}
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return tokenPair, nil
}

// Logout удаляет сессию по refresh токену.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.DeleteSession(ctx, refreshToken)
}

// ForgotPassword отправляет код сброса пароля, если пользователь существует.
// Наружу всегда возвращается успех, чтобы не раскрывать наличие аккаунта.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.repo.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	return s.issueOTP(ctx, resetKeyPrefix, email, s.mailer.SendPasswordReset)
}

// ResetPassword сверяет код сброса и устанавливает новый пароль.
// Все сессии пользователя завершаются.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := validation.ValidateOTPCode(code); err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.checkOTP(ctx, resetKeyPrefix, email, code); err != nil {
		return err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, string(passHash)); err != nil {
		return err
	}

	return s.repo.DeleteAllSessions(ctx, user.ID)
}

// ChangePassword меняет пароль авторизованного пользователя.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("auth service: неверный текущий пароль")
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	return s.repo.UpdatePassword(ctx, userID, string(passHash))
}

// issueOTP генерирует код, кладёт его в кэш и отправляет письмо в фоне.
func (s *AuthService) issueOTP(ctx context.Context, prefix, email string, send func(to, code string) error) error {
	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("auth service: генерация кода: %w", err)
	}

	if err := s.cache.Set(ctx, prefix+email, code, s.otpTTL); err != nil {
		return err
	}

	goroutine.SafeGo(func() {
		if err := send(email, code); err != nil && logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"email": email,
				"error": err.Error(),
			}).Error("auth service: не удалось отправить письмо с кодом")
		}
	})

	return nil
}

// checkOTP сверяет код и удаляет его при совпадении. Код одноразовый.
func (s *AuthService) checkOTP(ctx context.Context, prefix, email, code string) error {
	stored, err := s.cache.Get(ctx, prefix+email)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return fmt.Errorf("auth service: код не найден или истёк")
		}
		return err
	}

	if stored != code {
		return fmt.Errorf("auth service: неверный код подтверждения")
	}

	return s.cache.Del(ctx, prefix+email)
}

// generateOTP возвращает криптографически случайный 6-значный код.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
