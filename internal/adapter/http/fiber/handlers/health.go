package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/ports"
)

type HealthHandler struct {
	billing     ports.BillingAdapter
	chargePoint ports.ChargePointAdapter
	log         *zap.Logger
}

func NewHealthHandler(billing ports.BillingAdapter, chargePoint ports.ChargePointAdapter, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		billing:     billing,
		chargePoint: chargePoint,
		log:         log,
	}
}

// Live reports process liveness only.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready probes both downstream systems. A failing dependency degrades the
// report but still returns the detail per system.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	checks := fiber.Map{}
	healthy := true

	if err := h.billing.Ping(c.Context()); err != nil {
		checks["billing"] = err.Error()
		healthy = false
	} else {
		checks["billing"] = "ok"
	}

	if err := h.chargePoint.Ping(c.Context()); err != nil {
		checks["charge_point"] = err.Error()
		healthy = false
	} else {
		checks["charge_point"] = "ok"
	}

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status": map[bool]string{true: "ok", false: "degraded"}[healthy],
		"checks": checks,
	})
}
