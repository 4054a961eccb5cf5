package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
)

const aliceWallet = "0xa11ce00000000000000000000000000000000001"

func newAuthFixture() (*stubUserRepo, *AuthService) {
	repo := newStubUserRepo()
	svc := NewAuthService(repo, "secret", "refresh-secret", time.Hour, 7*24*time.Hour)
	return repo, svc
}

func TestAuthService_Register_Success(t *testing.T) {
	_, svc := newAuthFixture()

	user, pair, err := svc.Register(context.Background(), "Alice@Example.com", "pass12345", "0xA11CE00000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.PasswordHash == "pass12345" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pass12345")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("expected default role USER, got %s", user.Role)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected lower-cased email, got %s", user.Email)
	}
	if user.WalletAddress != aliceWallet {
		t.Fatalf("expected canonical wallet, got %s", user.WalletAddress)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", pair)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	_, svc := newAuthFixture()

	if _, _, err := svc.Register(context.Background(), "", "pass", aliceWallet); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty email, got %v", err)
	}
	if _, _, err := svc.Register(context.Background(), "a@b.c", "pass", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty wallet, got %v", err)
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	_, svc := newAuthFixture()

	if _, _, err := svc.Register(context.Background(), "bob@example.com", "pass12345", aliceWallet); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, _, err := svc.Register(context.Background(), "bob2@example.com", "pass12345", aliceWallet); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Login_ByEmail(t *testing.T) {
	_, svc := newAuthFixture()
	if _, _, err := svc.Register(context.Background(), "carol@example.com", "s3cret99", aliceWallet); err != nil {
		t.Fatalf("register: %v", err)
	}

	pair, user, err := svc.Login(context.Background(), "carol@example.com", "s3cret99")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.Email != "carol@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(pair.AccessToken, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("access token invalid: %v", err)
	}
	if claims["role"] != string(domain.RoleUser) {
		t.Fatalf("expected role USER in claims, got %v", claims["role"])
	}
	if claims["wallet_address"] != aliceWallet {
		t.Fatalf("expected wallet in claims, got %v", claims["wallet_address"])
	}
}

func TestAuthService_Login_ByWallet(t *testing.T) {
	_, svc := newAuthFixture()
	if _, _, err := svc.Register(context.Background(), "dave@example.com", "goodpass", aliceWallet); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Mixed case identifier resolves via canonicalization.
	_, user, err := svc.Login(context.Background(), "0xA11CE00000000000000000000000000000000001", "goodpass")
	if err != nil {
		t.Fatalf("wallet login failed: %v", err)
	}
	if user.Email != "dave@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	_, svc := newAuthFixture()
	if _, _, err := svc.Register(context.Background(), "erin@example.com", "goodpass", aliceWallet); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "erin@example.com", "badpass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_UnknownIdentifier(t *testing.T) {
	_, svc := newAuthFixture()

	if _, _, err := svc.Login(context.Background(), "ghost@example.com", "pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_PasswordlessAdminRejected(t *testing.T) {
	repo, svc := newAuthFixture()
	// Bootstrap admins may have no password credential; they must not be
	// able to log in with an empty-string guess.
	if _, err := repo.Create(context.Background(), &domain.User{
		Email:         "admin@example.com",
		WalletAddress: aliceWallet,
		Role:          domain.RoleDefaultAdmin,
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "admin@example.com", "anything"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for passwordless account, got %v", err)
	}
}

func TestAuthService_RefreshFlow(t *testing.T) {
	_, svc := newAuthFixture()
	_, pair, err := svc.Register(context.Background(), "frank@example.com", "pass12345", aliceWallet)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	access, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	actor, err := svc.Verify(context.Background(), access)
	if err != nil {
		t.Fatalf("verify refreshed token: %v", err)
	}
	if actor.Email != "frank@example.com" || actor.Role != domain.RoleUser {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestAuthService_Refresh_RejectsAccessToken(t *testing.T) {
	_, svc := newAuthFixture()
	_, pair, err := svc.Register(context.Background(), "gail@example.com", "pass12345", aliceWallet)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// An access token is signed with the wrong secret for refresh.
	if _, err := svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Verify_TamperedToken(t *testing.T) {
	_, svc := newAuthFixture()
	_, pair, err := svc.Register(context.Background(), "hank@example.com", "pass12345", aliceWallet)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	if _, err := svc.Verify(context.Background(), tampered); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for tampered token, got %v", err)
	}
}
