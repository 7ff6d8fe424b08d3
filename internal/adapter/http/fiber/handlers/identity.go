package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/adapter/http/fiber/middleware"
	"github.com/mincom-smart/chargebridge/internal/observability/telemetry"
	"github.com/mincom-smart/chargebridge/internal/ports"
)

type IdentityHandler struct {
	service ports.IdentityService
	log     *zap.Logger
}

func NewIdentityHandler(service ports.IdentityService, log *zap.Logger) *IdentityHandler {
	return &IdentityHandler{
		service: service,
		log:     log,
	}
}

// Session is called by the gateway on every login. It reconciles the
// authenticated subject across the downstream systems and returns the
// linked user.
func (h *IdentityHandler) Session(c *fiber.Ctx) error {
	subject, ok := middleware.SubjectFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "No authenticated subject"})
	}

	user, err := h.service.Reconcile(c.Context(), subject)
	if err != nil {
		telemetry.ReconcilesTotal.WithLabelValues("error").Inc()
		return err
	}
	telemetry.ReconcilesTotal.WithLabelValues("ok").Inc()

	return c.JSON(fiber.Map{
		"success":    true,
		"user":       user,
		"link_state": user.LinkState(),
	})
}

func (h *IdentityHandler) CreateBillingAccount(c *fiber.Ctx) error {
	user, err := h.service.CreateBillingAccount(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// PortalLogin hands out a signed, time-limited billing portal URL as a
// redirect target.
func (h *IdentityHandler) PortalLogin(c *fiber.Ctx) error {
	url, err := h.service.PortalLogin(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"url":     url,
	})
}

func (h *IdentityHandler) RotateAPIKey(c *fiber.Ctx) error {
	cred, err := h.service.RotateAPIKey(c.Context(), c.Params("id"))
	if err != nil {
		telemetry.KeyRotationsTotal.WithLabelValues("error").Inc()
		return err
	}
	telemetry.KeyRotationsTotal.WithLabelValues("ok").Inc()

	return c.JSON(fiber.Map{
		"success": true,
		"key_id":  cred.KeyID,
	})
}

func (h *IdentityHandler) Block(c *fiber.Ctx) error {
	if err := h.service.Block(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *IdentityHandler) Unblock(c *fiber.Ctx) error {
	if err := h.service.Unblock(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
