package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/application/dto"
)

// PersonReader leitura de pessoas.
type PersonReader interface {
	GetByID(ctx context.Context, id string) (*dto.PersonResponse, error)
}

// PersonHandler rotas de pessoas.
type PersonHandler struct {
	uc  PersonReader
	log zerolog.Logger
}

// NewPersonHandler constrói o handler.
func NewPersonHandler(uc PersonReader, log zerolog.Logger) *PersonHandler {
	return &PersonHandler{uc: uc, log: log}
}

// GetByID GET /api/persons/:id
func (h *PersonHandler) GetByID(c *fiber.Ctx) error {
	p, err := h.uc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(p)
}
