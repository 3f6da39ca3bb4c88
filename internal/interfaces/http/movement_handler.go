package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/application/dto"
)

// MovementReader leituras de movimento.
type MovementReader interface {
	GetByID(ctx context.Context, id string) (*dto.MovementResponse, error)
	ListInvoices(ctx context.Context, movementID string) ([]dto.InvoiceResponse, error)
}

// MovementHandler rotas de movimentos.
type MovementHandler struct {
	uc  MovementReader
	log zerolog.Logger
}

// NewMovementHandler constrói o handler.
func NewMovementHandler(uc MovementReader, log zerolog.Logger) *MovementHandler {
	return &MovementHandler{uc: uc, log: log}
}

// GetByID GET /api/movements/:id
func (h *MovementHandler) GetByID(c *fiber.Ctx) error {
	m, err := h.uc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(m)
}

// ListInvoices GET /api/movements/:id/invoices
func (h *MovementHandler) ListInvoices(c *fiber.Ctx) error {
	list, err := h.uc.ListInvoices(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"items": list})
}
