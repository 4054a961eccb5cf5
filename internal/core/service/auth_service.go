package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
	"github.com/libretyverse/marketplace-api/internal/core/ports"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// AuthService implements registration, login, and token issuance. Access and
// refresh tokens are signed with separate secrets.
type AuthService struct {
	users         ports.UserRepository
	jwtSecret     string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthService(users ports.UserRepository, jwtSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *AuthService {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &AuthService{
		users:         users,
		jwtSecret:     jwtSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// Register creates a USER-role account and issues a token pair.
func (s *AuthService) Register(ctx context.Context, email, password, walletAddress string) (*domain.User, *ports.TokenPair, error) {
	wallet := domain.CanonicalWallet(walletAddress)
	if email == "" || password == "" || wallet == "" {
		return nil, nil, domain.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Email:         strings.ToLower(email),
		PasswordHash:  string(hash),
		WalletAddress: wallet,
		Role:          domain.RoleUser,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(created)
	if err != nil {
		return nil, nil, err
	}
	return created, pair, nil
}

// Login authenticates by email or wallet address identifier.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*ports.TokenPair, *domain.User, error) {
	if identifier == "" || password == "" {
		return nil, nil, domain.ErrInvalidCredentials
	}

	var (
		user *domain.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.FindByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.users.FindByWallet(ctx, domain.CanonicalWallet(identifier))
	}
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh verifies a refresh token and issues a fresh access token.
func (s *AuthService) Refresh(_ context.Context, refreshToken string) (string, error) {
	claims, err := parseClaims(refreshToken, s.refreshSecret)
	if err != nil {
		return "", domain.ErrInvalidCredentials
	}
	return s.sign(claims, s.jwtSecret, s.accessTTL)
}

// Verify decodes an access token into the actor it asserts.
func (s *AuthService) Verify(_ context.Context, token string) (*ports.Actor, error) {
	claims, err := parseClaims(token, s.jwtSecret)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	role, _ := claims["role"].(string)
	id, _ := claims["id"].(string)
	email, _ := claims["email"].(string)
	wallet, _ := claims["wallet_address"].(string)
	return &ports.Actor{
		ID:            id,
		Email:         email,
		WalletAddress: wallet,
		Role:          domain.Role(role),
	}, nil
}

// IssueTokens signs a fresh pair for an existing user, used by the
// default-admin bootstrap.
func (s *AuthService) IssueTokens(user *domain.User) (*ports.TokenPair, error) {
	return s.issuePair(user)
}

func (s *AuthService) issuePair(user *domain.User) (*ports.TokenPair, error) {
	claims := jwt.MapClaims{
		"id":             user.ID,
		"email":          user.Email,
		"role":           string(user.Role),
		"wallet_address": user.WalletAddress,
	}

	access, err := s.sign(claims, s.jwtSecret, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(claims, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &ports.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) sign(claims jwt.MapClaims, secret string, ttl time.Duration) (string, error) {
	signed := jwt.MapClaims{
		"id":             claims["id"],
		"email":          claims["email"],
		"role":           claims["role"],
		"wallet_address": claims["wallet_address"],
		"exp":            time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, signed)
	return t.SignedString([]byte(secret))
}

func parseClaims(token, secret string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !tkn.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
