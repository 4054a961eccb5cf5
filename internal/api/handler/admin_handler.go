package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/libretyverse/marketplace-api/internal/core/domain"
	"github.com/libretyverse/marketplace-api/internal/core/ports"
)

// AdminHandler exposes the role lifecycle operations. Route-level RBAC is
// enforced by middleware; errors propagate to the central error handler.
type AdminHandler struct {
	sync       ports.RoleSyncService
	reconciler ports.Reconciler
}

func NewAdminHandler(sync ports.RoleSyncService, reconciler ports.Reconciler) *AdminHandler {
	return &AdminHandler{sync: sync, reconciler: reconciler}
}

// GrantRole handles POST /admin/grant-role.
//
// @Summary      Grant a role to a wallet
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      roleChangeRequest  true  "Wallet and role"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /admin/grant-role [post]
func (h *AdminHandler) GrantRole(c echo.Context) error {
	var req roleChangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.sync.Grant(c.Request().Context(), actor, req.WalletAddress, domain.Role(req.Role)); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Role '%s' granted to user with wallet address %s", req.Role, req.WalletAddress),
	})
}

// RevokeRole handles POST /admin/revoke-role.
//
// @Summary      Revoke a role from a wallet
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      roleChangeRequest  true  "Wallet and role"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /admin/revoke-role [post]
func (h *AdminHandler) RevokeRole(c echo.Context) error {
	var req roleChangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.sync.Revoke(c.Request().Context(), actor, req.WalletAddress, domain.Role(req.Role)); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Role '%s' revoked from user with wallet address %s", req.Role, req.WalletAddress),
	})
}

// ApproveAuthor handles POST /admin/approve-author.
//
// @Summary      Approve a pending author role request
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      walletRequest  true  "Wallet address"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /admin/approve-author [post]
func (h *AdminHandler) ApproveAuthor(c echo.Context) error {
	var req walletRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.sync.ApproveAuthor(c.Request().Context(), actor, req.WalletAddress); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Author role successfully granted to %s", req.WalletAddress),
	})
}

// RevokeAuthor handles POST /admin/revoke-author.
//
// @Summary      Revoke the author role from a wallet
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      walletRequest  true  "Wallet address"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /admin/revoke-author [post]
func (h *AdminHandler) RevokeAuthor(c echo.Context) error {
	var req walletRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	if err := h.sync.RevokeAuthor(c.Request().Context(), actor, req.WalletAddress); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Author role revoked from %s", req.WalletAddress),
	})
}

// RequestAuthor handles POST /admin/request-author.
//
// @Summary      Submit an author role request
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      walletRequest  true  "Wallet address"
// @Success      201   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Router       /admin/request-author [post]
func (h *AdminHandler) RequestAuthor(c echo.Context) error {
	var req walletRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if _, err := h.sync.RequestAuthorRole(c.Request().Context(), req.WalletAddress); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, messageResponse{
		Message: "Author role request submitted successfully.",
	})
}

// Reconcile handles POST /admin/reconcile — an on-demand drift sweep.
//
// @Summary      Run a ledger/directory reconciliation sweep
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  errorResponse
// @Router       /admin/reconcile [post]
func (h *AdminHandler) Reconcile(c echo.Context) error {
	corrections, err := h.reconciler.Sweep(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"corrections": corrections,
		"count":       len(corrections),
	})
}
