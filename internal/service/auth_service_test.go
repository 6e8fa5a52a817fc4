package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/au-lex/safeqly-backend/internal/cache"
	"github.com/au-lex/safeqly-backend/internal/models"
	"github.com/au-lex/safeqly-backend/internal/repository"
)

// mockAuthRepository реализует AuthRepository для тестов.
type mockAuthRepository struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	usersByTag   map[string]*models.User
	sessions     map[string]*models.Session
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		usersByTag:   make(map[string]*models.User),
		sessions:     make(map[string]*models.Session),
	}
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	m.usersByTag[user.UserTag] = user
	return nil
}

func (m *mockAuthRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByUserTag(ctx context.Context, userTag string) (*models.User, error) {
	if user, ok := m.usersByTag[userTag]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	if user, ok := m.usersByID[userID]; ok {
		user.PasswordHash = passwordHash
		return nil
	}
	return repository.ErrUserNotFound
}

func (m *mockAuthRepository) SetEmailVerified(ctx context.Context, userID uuid.UUID) error {
	if user, ok := m.usersByID[userID]; ok {
		user.IsEmailVerified = true
		return nil
	}
	return repository.ErrUserNotFound
}

func (m *mockAuthRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (m *mockAuthRepository) CreateSession(ctx context.Context, session *models.Session) error {
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	m.sessions[session.RefreshToken] = session
	return nil
}

func (m *mockAuthRepository) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	if session, ok := m.sessions[refreshToken]; ok {
		return session, nil
	}
	return nil, repository.ErrSessionNotFound
}

func (m *mockAuthRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	delete(m.sessions, refreshToken)
	return nil
}

func (m *mockAuthRepository) DeleteAllSessions(ctx context.Context, userID uuid.UUID) error {
	for token, session := range m.sessions {
		if session.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

// mockCache реализует cache.Cache в памяти.
type mockCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMockCache() *mockCache {
	return &mockCache{values: make(map[string]string)}
}

func (m *mockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", cache.ErrKeyNotFound
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.(string)
	return nil
}

func (m *mockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *mockCache) Close() error { return nil }

func (m *mockCache) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// mockMailer собирает отправленные письма. Отправка асинхронная,
// поэтому доступ под мьютексом.
type mockMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *mockMailer) SendOTP(to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

func (m *mockMailer) SendPasswordReset(to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

func newTestAuthService(repo *mockAuthRepository, c *mockCache) *AuthService {
	tokens := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
	return NewAuthService(repo, tokens, c, &mockMailer{}, 10*time.Minute)
}

func signupInput() SignupInput {
	return SignupInput{
		FullName: "Иван Петров",
		Email:    "ivan@example.com",
		Phone:    "+79991234567",
		UserTag:  "ivan_petrov",
		Password: "Password1",
	}
}

func TestAuthService_Signup_IssuesOTPWithoutTokens(t *testing.T) {
	repo := newMockAuthRepository()
	c := newMockCache()
	svc := newTestAuthService(repo, c)
	ctx := context.Background()

	user, err := svc.Signup(ctx, signupInput())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if user.IsEmailVerified {
		t.Fatal("email не должен быть подтверждён сразу после регистрации")
	}

	code, ok := c.get(otpKeyPrefix + "ivan@example.com")
	if !ok {
		t.Fatal("код подтверждения не записан в кэш")
	}
	if len(code) != 6 {
		t.Fatalf("код должен быть 6-значным, получено %q", code)
	}
}

func TestAuthService_Signup_DuplicateEmail(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo, newMockCache())
	ctx := context.Background()

	if _, err := svc.Signup(ctx, signupInput()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	in := signupInput()
	in.UserTag = "another_tag"
	if _, err := svc.Signup(ctx, in); err == nil {
		t.Fatal("повторная регистрация на тот же email должна вернуть ошибку")
	}
}

func TestAuthService_Signup_DuplicateTag(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo, newMockCache())
	ctx := context.Background()

	if _, err := svc.Signup(ctx, signupInput()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	in := signupInput()
	in.Email = "other@example.com"
	if _, err := svc.Signup(ctx, in); err == nil {
		t.Fatal("повторная регистрация с тем же тегом должна вернуть ошибку")
	}
}

func TestAuthService_VerifyEmail_CodeIsOneTime(t *testing.T) {
	repo := newMockAuthRepository()
	c := newMockCache()
	svc := newTestAuthService(repo, c)
	ctx := context.Background()

	user, err := svc.Signup(ctx, signupInput())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	code, _ := c.get(otpKeyPrefix + user.Email)

	if err := svc.VerifyEmail(ctx, user.Email, "000000"); err == nil && code != "000000" {
		t.Fatal("неверный код должен быть отклонён")
	}

	if err := svc.VerifyEmail(ctx, user.Email, code); err != nil {
		t.Fatalf("верный код отклонён: %v", err)
	}
	if !user.IsEmailVerified {
		t.Fatal("email должен быть подтверждён")
	}

	if _, ok := c.get(otpKeyPrefix + user.Email); ok {
		t.Fatal("код должен удаляться после использования")
	}

	// Повторное подтверждение идемпотентно.
	if err := svc.VerifyEmail(ctx, user.Email, "123456"); err != nil {
		t.Fatalf("повторное подтверждение должно быть успешным: %v", err)
	}
}

func TestAuthService_Login_RequiresVerifiedEmail(t *testing.T) {
	repo := newMockAuthRepository()
	c := newMockCache()
	svc := newTestAuthService(repo, c)
	ctx := context.Background()

	user, err := svc.Signup(ctx, signupInput())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	_, err = svc.Login(ctx, LoginInput{Email: user.Email, Password: "Password1"}, nil)
	if err == nil {
		t.Fatal("вход до подтверждения email должен быть запрещён")
	}

	code, _ := c.get(otpKeyPrefix + user.Email)
	if err := svc.VerifyEmail(ctx, user.Email, code); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	result, err := svc.Login(ctx, LoginInput{Email: user.Email, Password: "Password1"}, nil)
	if err != nil {
		t.Fatalf("вход после подтверждения должен быть успешным: %v", err)
	}
	if result.TokenPair.AccessToken == "" || result.TokenPair.RefreshToken == "" {
		t.Fatal("должна вернуться пара токенов")
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo, newMockCache())
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.DefaultCost)
	user := &models.User{
		Email:           "user@example.com",
		UserTag:         "user_tag",
		PasswordHash:    string(hash),
		Role:            models.RoleUser,
		IsEmailVerified: true,
	}
	_ = repo.Create(context.Background(), user)

	_, err := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "WrongPass1"}, nil)
	if err == nil {
		t.Fatal("неверный пароль должен быть отклонён")
	}
	if !strings.Contains(err.Error(), "неверный email или пароль") {
		t.Fatalf("ошибка не должна уточнять причину: %v", err)
	}
}

func TestAuthService_Login_SuspendedAccount(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo, newMockCache())
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.DefaultCost)
	user := &models.User{
		Email:           "banned@example.com",
		UserTag:         "banned_tag",
		PasswordHash:    string(hash),
		Role:            models.RoleUser,
		IsEmailVerified: true,
		IsSuspended:     true,
	}
	_ = repo.Create(context.Background(), user)

	_, err := svc.Login(ctx, LoginInput{Email: "banned@example.com", Password: "Password1"}, nil)
	if err == nil {
		t.Fatal("вход для заблокированного аккаунта должен быть запрещён")
	}
}

func TestAuthService_AdminLogin_RejectsRegularUser(t *testing.T) {
	repo := newMockAuthRepository()
	svc := newTestAuthService(repo, newMockCache())
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.DefaultCost)
	user := &models.User{
		Email:           "user@example.com",
		UserTag:         "user_tag",
		PasswordHash:    string(hash),
		Role:            models.RoleUser,
		IsEmailVerified: true,
	}
	_ = repo.Create(context.Background(), user)

	_, err := svc.AdminLogin(ctx, LoginInput{Email: "user@example.com", Password: "Password1"}, nil)
	if err == nil {
		t.Fatal("обычный пользователь не должен входить в админку")
	}
}

func TestAuthService_Refresh_RotatesSession(t *testing.T) {
	repo := newMockAuthRepository()
	c := newMockCache()
	svc := newTestAuthService(repo, c)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.DefaultCost)
	user := &models.User{
		Email:           "user@example.com",
		UserTag:         "user_tag",
		PasswordHash:    string(hash),
		Role:            models.RoleUser,
		IsEmailVerified: true,
	}
	_ = repo.Create(context.Background(), user)

	result, err := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "Password1"}, nil)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	oldToken := result.TokenPair.RefreshToken
	pair, err := svc.Refresh(ctx, oldToken, nil)
	if err != nil {
		t.Fatalf("refresh должен быть успешным: %v", err)
	}

	if _, ok := repo.sessions[oldToken]; ok {
		t.Fatal("старая сессия должна быть удалена")
	}
	if _, ok := repo.sessions[pair.RefreshToken]; !ok {
		t.Fatal("новая сессия должна быть создана")
	}

	// Повторное использование старого токена отклоняется.
	if _, err := svc.Refresh(ctx, oldToken, nil); err == nil {
		t.Fatal("повторный refresh по старому токену должен быть отклонён")
	}
}

func TestAuthService_ResetPassword_KillsSessions(t *testing.T) {
	repo := newMockAuthRepository()
	c := newMockCache()
	svc := newTestAuthService(repo, c)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.DefaultCost)
	user := &models.User{
		Email:           "user@example.com",
		UserTag:         "user_tag",
		PasswordHash:    string(hash),
		Role:            models.RoleUser,
		IsEmailVerified: true,
	}
	_ = repo.Create(context.Background(), user)

	if _, err := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "Password1"}, nil); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if err := svc.ForgotPassword(ctx, "user@example.com"); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	code, ok := c.get(resetKeyPrefix + "user@example.com")
	if !ok {
		t.Fatal("код сброса не записан в кэш")
	}

	if err := svc.ResetPassword(ctx, "user@example.com", code, "NewPassword1"); err != nil {
		t.Fatalf("сброс пароля должен быть успешным: %v", err)
	}

	if len(repo.sessions) != 0 {
		t.Fatal("все сессии должны быть завершены после сброса пароля")
	}

	if _, err := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "NewPassword1"}, nil); err != nil {
		t.Fatalf("вход с новым паролем должен быть успешным: %v", err)
	}
}

func TestAuthService_ForgotPassword_SilentForUnknownEmail(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepository(), newMockCache())

	if err := svc.ForgotPassword(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("для неизвестного email должен возвращаться успех: %v", err)
	}
}
