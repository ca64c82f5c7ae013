package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	for email, existing := range m.users {
		if existing.ID == user.ID {
			m.users[email] = user
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	for _, user := range m.users {
		if user.ID == id {
			user.PasswordHash = passwordHash
			return nil
		}
	}
	return repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	for _, token := range m.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

type mockPasswordResetRepository struct {
	tokens map[string]*domain.PasswordResetToken
}

func newMockPasswordResetRepository() *mockPasswordResetRepository {
	return &mockPasswordResetRepository{
		tokens: make(map[string]*domain.PasswordResetToken),
	}
}

func (m *mockPasswordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockPasswordResetRepository) FindByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	resetToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrResetTokenNotFound
	}
	if resetToken.Used {
		return nil, repository.ErrResetTokenUsed
	}
	return resetToken, nil
}

func (m *mockPasswordResetRepository) MarkUsed(ctx context.Context, token string) error {
	resetToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrResetTokenNotFound
	}
	resetToken.Used = true
	return nil
}

type mockMailSender struct {
	sent []string // reset links, in send order
}

func (m *mockMailSender) SendPasswordReset(ctx context.Context, email, resetLink string) error {
	m.sent = append(m.sent, resetLink)
	return nil
}

func newTestUserService() (UserService, *mockUserRepository, *mockPasswordResetRepository, *mockMailSender) {
	userRepo := newMockUserRepository()
	refreshTokenRepo := newMockRefreshTokenRepository()
	resetTokenRepo := newMockPasswordResetRepository()
	mailer := &mockMailSender{}
	svc := NewUserService(userRepo, refreshTokenRepo, resetTokenRepo, mailer, "test-secret-key", "http://localhost:3000")
	return svc, userRepo, resetTokenRepo, mailer
}

func TestProperty_RegistrationCreatesHashedPasswords(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string, firstName string, lastName string) bool {
			svc, userRepo, _, _ := newTestUserService()
			ctx := context.Background()

			user, err := svc.Register(ctx, email, password, firstName, lastName)
			if err != nil {
				// If registration fails, skip this test case
				return true
			}

			if user.PasswordHash == password {
				t.Logf("FAIL: Password stored as plaintext for email %s", email)
				return false
			}

			err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
			if err != nil {
				t.Logf("FAIL: Password hash is not a valid bcrypt hash or doesn't match: %v", err)
				return false
			}

			storedUser, err := userRepo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: Could not find stored user: %v", err)
				return false
			}

			if storedUser.PasswordHash != user.PasswordHash {
				t.Logf("FAIL: Stored password hash doesn't match returned password hash")
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_JWTTokensContainRequiredClaims(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("access tokens contain user ID and role claims", prop.ForAll(
		func(email string, password string, firstName string, lastName string, role string) bool {
			svc, userRepo, _, _ := newTestUserService()
			ctx := context.Background()

			user, err := svc.Register(ctx, email, password, firstName, lastName)
			if err != nil {
				return true // Skip if registration fails
			}

			// Override role for testing
			user.Role = role
			userRepo.users[email] = user

			accessToken, _, _, err := svc.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			claims, err := svc.ValidateToken(accessToken)
			if err != nil {
				t.Logf("FAIL: Token validation failed: %v", err)
				return false
			}

			if claims.UserID != user.ID {
				t.Logf("FAIL: User ID claim mismatch. Expected %s, got %s", user.ID, claims.UserID)
				return false
			}

			if claims.Role != role {
				t.Logf("FAIL: Role claim mismatch. Expected %s, got %s", role, claims.Role)
				return false
			}

			if claims.ExpiresAt == nil {
				t.Logf("FAIL: Token missing expiration claim")
				return false
			}

			if claims.IssuedAt == nil {
				t.Logf("FAIL: Token missing issued at claim")
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.OneConstOf(domain.RoleUser, domain.RoleAdmin),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_TokenRefreshRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid refresh token returns new valid access token", prop.ForAll(
		func(email string, password string, firstName string, lastName string) bool {
			svc, _, _, _ := newTestUserService()
			ctx := context.Background()

			_, err := svc.Register(ctx, email, password, firstName, lastName)
			if err != nil {
				return true // Skip if registration fails
			}

			_, refreshToken, user, err := svc.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			newAccessToken, err := svc.RefreshToken(ctx, refreshToken)
			if err != nil {
				t.Logf("FAIL: Token refresh failed: %v", err)
				return false
			}

			claims, err := svc.ValidateToken(newAccessToken)
			if err != nil {
				t.Logf("FAIL: New access token invalid: %v", err)
				return false
			}

			if claims.UserID != user.ID {
				t.Logf("FAIL: Refreshed token carries wrong user ID")
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _, _, _ := newTestUserService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "correct-horse", "Alice", "Smith"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, _, err := svc.Login(ctx, "alice@example.com", "wrong-password"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, _, _, err := svc.Login(ctx, "nobody@example.com", "correct-horse"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestPasswordReset_FullFlow(t *testing.T) {
	svc, _, resetRepo, mailer := newTestUserService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob@example.com", "original-pass", "Bob", "Jones"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, "bob@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one reset email, got %d", len(mailer.sent))
	}

	// Pull the issued token out of the store
	var token string
	for tok := range resetRepo.tokens {
		token = tok
	}
	if token == "" {
		t.Fatal("no reset token stored")
	}

	if err := svc.ResetPassword(ctx, token, "brand-new-pass"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	// Old password no longer works, new one does
	if _, _, _, err := svc.Login(ctx, "bob@example.com", "original-pass"); err != ErrInvalidCredentials {
		t.Errorf("old password should be rejected, got %v", err)
	}
	if _, _, _, err := svc.Login(ctx, "bob@example.com", "brand-new-pass"); err != nil {
		t.Errorf("new password should work, got %v", err)
	}

	// Token is single use
	if err := svc.ResetPassword(ctx, token, "another-pass"); err != ErrInvalidToken {
		t.Errorf("reused token should be rejected, got %v", err)
	}
}

func TestPasswordReset_RevokesExistingSessions(t *testing.T) {
	userRepo := newMockUserRepository()
	refreshRepo := newMockRefreshTokenRepository()
	resetRepo := newMockPasswordResetRepository()
	svc := NewUserService(userRepo, refreshRepo, resetRepo, &mockMailSender{}, "test-secret-key", "http://localhost:3000")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "carol@example.com", "original-pass", "Carol", "Reed"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, refreshToken, _, err := svc.Login(ctx, "carol@example.com", "original-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, "carol@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	var token string
	for tok := range resetRepo.tokens {
		token = tok
	}
	if err := svc.ResetPassword(ctx, token, "brand-new-pass"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	if _, err := svc.RefreshToken(ctx, refreshToken); err == nil {
		t.Error("refresh tokens issued before the reset must be revoked")
	}
}

func TestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	svc, _, resetRepo, mailer := newTestUserService()
	ctx := context.Background()

	if err := svc.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("unknown email must not error, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("no email should be sent for unknown address")
	}
	if len(resetRepo.tokens) != 0 {
		t.Errorf("no token should be issued for unknown address")
	}
}

func TestPasswordReset_ExpiredToken(t *testing.T) {
	svc, _, resetRepo, _ := newTestUserService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "carol@example.com", "some-password", "Carol", "White")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	expired := &domain.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     "expired-token",
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := resetRepo.Create(ctx, expired); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	if err := svc.ResetPassword(ctx, "expired-token", "whatever-pass"); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestChangePassword_RequiresCurrentPassword(t *testing.T) {
	svc, _, _, _ := newTestUserService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "dave@example.com", "current-pass", "Dave", "Brown")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "wrong-pass", "new-pass-123"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "current-pass", "new-pass-123"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, _, _, err := svc.Login(ctx, "dave@example.com", "new-pass-123"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}
