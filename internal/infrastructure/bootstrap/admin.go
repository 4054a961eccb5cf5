// Package bootstrap seeds the DEFAULT_ADMIN identity at startup.
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
	"github.com/libretyverse/marketplace-api/internal/core/ports"
)

// EnsureDefaultAdmin creates the bootstrap administrator when no user exists
// for the configured wallet. The password is optional: a wallet-only admin
// record is valid for DEFAULT_ADMIN.
func EnsureDefaultAdmin(ctx context.Context, users ports.UserRepository, wallet, email, password string, log zerolog.Logger) (*domain.User, error) {
	canonical := domain.CanonicalWallet(wallet)
	if canonical == "" {
		return nil, domain.ErrInvalidInput
	}

	existing, err := users.FindByWallet(ctx, canonical)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	var hash string
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hash = string(h)
	}

	now := time.Now().UTC()
	admin, err := users.Create(ctx, &domain.User{
		Email:         email,
		PasswordHash:  hash,
		WalletAddress: canonical,
		Role:          domain.RoleDefaultAdmin,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("wallet", canonical).Msg("default admin created")
	return admin, nil
}
