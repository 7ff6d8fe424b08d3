package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/ports"
	syncsvc "github.com/mincom-smart/chargebridge/internal/service/sync"
)

type SyncHandler struct {
	service ports.SyncService
	journal *syncsvc.RunJournal
	log     *zap.Logger
}

func NewSyncHandler(service ports.SyncService, journal *syncsvc.RunJournal, log *zap.Logger) *SyncHandler {
	return &SyncHandler{
		service: service,
		journal: journal,
		log:     log,
	}
}

// Run triggers an incremental sync outside the schedule, typically from an
// operator console.
func (h *SyncHandler) Run(c *fiber.Ctx) error {
	result, err := h.service.RunIncremental(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}

// RunFull re-reads the whole backend history. Heavy; gated to operators.
func (h *SyncHandler) RunFull(c *fiber.Ctx) error {
	result, err := h.service.RunFull(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}

func (h *SyncHandler) Status(c *fiber.Ctx) error {
	mark, err := h.service.Watermark(c.Context())
	if err != nil {
		return err
	}
	resp := fiber.Map{
		"success":         true,
		"high_water_mark": mark,
	}
	if h.journal != nil {
		if last := h.journal.LastRun(); last != nil {
			resp["last_run"] = last
		}
	}
	return c.JSON(resp)
}
