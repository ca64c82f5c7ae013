package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

var (
	ErrResetTokenNotFound = errors.New("password reset token not found")
	ErrResetTokenUsed     = errors.New("password reset token has already been used")
)

// PasswordResetRepository defines the interface for password reset token data access
type PasswordResetRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) error
	FindByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	MarkUsed(ctx context.Context, token string) error
}

type passwordResetRepository struct {
	db *sql.DB
}

// NewPasswordResetRepository creates a new instance of PasswordResetRepository
func NewPasswordResetRepository(db *sql.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

// Create inserts a new password reset token
func (r *passwordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, token, expires_at, created_at, used)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		token.ID,
		token.UserID,
		token.Token,
		token.ExpiresAt,
		token.CreatedAt,
		token.Used,
	)

	if err != nil {
		return fmt.Errorf("failed to create password reset token: %w", err)
	}

	return nil
}

// FindByToken retrieves a reset token by its token string
func (r *passwordResetRepository) FindByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at, used
		FROM password_reset_tokens
		WHERE token = $1
	`

	resetToken := &domain.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&resetToken.ID,
		&resetToken.UserID,
		&resetToken.Token,
		&resetToken.ExpiresAt,
		&resetToken.CreatedAt,
		&resetToken.Used,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("failed to find password reset token: %w", err)
	}

	if resetToken.Used {
		return nil, ErrResetTokenUsed
	}

	return resetToken, nil
}

// MarkUsed consumes a reset token so it can only ever reset one password
func (r *passwordResetRepository) MarkUsed(ctx context.Context, token string) error {
	query := `
		UPDATE password_reset_tokens
		SET used = TRUE
		WHERE token = $1
	`

	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to mark reset token used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrResetTokenNotFound
	}

	return nil
}
