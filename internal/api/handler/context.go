package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
	"github.com/libretyverse/marketplace-api/internal/core/ports"
)

// ctxActor rebuilds the acting identity from the claims injected by the Auth
// middleware, with a fast-fail check before any service call: a missing role
// means the middleware did not run.
func ctxActor(c echo.Context) (ports.Actor, error) {
	role, _ := c.Get("role").(string)
	if role == "" {
		return ports.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	id, _ := c.Get("user_id").(string)
	email, _ := c.Get("email").(string)
	wallet, _ := c.Get("wallet_address").(string)

	return ports.Actor{
		ID:            id,
		Email:         email,
		WalletAddress: domain.CanonicalWallet(wallet),
		Role:          domain.Role(role),
	}, nil
}
