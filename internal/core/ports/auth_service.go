package ports

import (
	"context"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
)

// TokenPair carries the signed session claims issued at login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type AuthService interface {
	Register(ctx context.Context, email, password, walletAddress string) (*domain.User, *TokenPair, error)
	// Login accepts an email or a wallet address as identifier.
	Login(ctx context.Context, identifier, password string) (*TokenPair, *domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Verify(ctx context.Context, token string) (*Actor, error)
}
