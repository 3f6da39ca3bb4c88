package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/application/billing"
	"github.com/wanderleymp/finance-api-sub001/internal/application/dto"
)

// NFSeEmitter emissão a partir de um movimento.
type NFSeEmitter interface {
	Emit(ctx context.Context, movementID string) (*billing.PersistResult, error)
}

// NFSeReconciler conciliação de status com o provedor.
type NFSeReconciler interface {
	Reconcile(ctx context.Context, nfseID string) (*billing.ReconcileResult, error)
}

// NFSeCanceller cancelamento no provedor.
type NFSeCanceller interface {
	Cancel(ctx context.Context, nfseID, reason string) (*billing.ReconcileResult, error)
}

// NFSeReader leituras locais e PDF.
type NFSeReader interface {
	Get(ctx context.Context, nfseID string) (*billing.NFSeDetail, error)
	DownloadPDF(ctx context.Context, nfseID string) ([]byte, string, error)
}

// NFSeHandler rotas de NFSe.
type NFSeHandler struct {
	emitter    NFSeEmitter
	reconciler NFSeReconciler
	canceller  NFSeCanceller
	reader     NFSeReader
	log        zerolog.Logger
}

// NewNFSeHandler constrói o handler.
func NewNFSeHandler(emitter NFSeEmitter, reconciler NFSeReconciler, canceller NFSeCanceller, reader NFSeReader, log zerolog.Logger) *NFSeHandler {
	return &NFSeHandler{emitter: emitter, reconciler: reconciler, canceller: canceller, reader: reader, log: log}
}

// Emit emite a NFSe do movimento.
// POST /api/movements/:id/nfse
func (h *NFSeHandler) Emit(c *fiber.Ctx) error {
	movementID := c.Params("id")
	res, err := h.emitter.Emit(c.Context(), movementID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NFSeResponse{
		Invoice: dto.ToInvoiceResponse(res.Invoice),
		Nfse:    dto.ToNfseResponse(res.Nfse),
		Event:   dto.ToInvoiceEventResponse(res.Event),
	})
}

// GetByID NFSe com invoice e eventos.
// GET /api/nfse/:id
func (h *NFSeHandler) GetByID(c *fiber.Ctx) error {
	d, err := h.reader.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	events := make([]dto.InvoiceEventResponse, 0, len(d.Events))
	for _, e := range d.Events {
		events = append(events, *dto.ToInvoiceEventResponse(e))
	}
	return c.JSON(dto.NFSeResponse{
		Invoice: dto.ToInvoiceResponse(d.Invoice),
		Nfse:    dto.ToNfseResponse(d.Nfse),
		Events:  events,
	})
}

// Reconcile consulta o provedor e atualiza o status local se mudou.
// POST /api/nfse/:id/reconcile
func (h *NFSeHandler) Reconcile(c *fiber.Ctx) error {
	res, err := h.reconciler.Reconcile(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(toReconcileResponse(res))
}

// Cancel cancela uma NFSe autorizada.
// POST /api/nfse/:id/cancel
func (h *NFSeHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelNFSeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
		}
	}
	res, err := h.canceller.Cancel(c.Context(), c.Params("id"), in.Reason)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(toReconcileResponse(res))
}

// PDF repassa o DANFSe do provedor.
// GET /api/nfse/:id/pdf
func (h *NFSeHandler) PDF(c *fiber.Ctx) error {
	pdf, filename, err := h.reader.DownloadPDF(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+filename+`"`)
	return c.Send(pdf)
}

func toReconcileResponse(res *billing.ReconcileResult) dto.NFSeResponse {
	return dto.NFSeResponse{
		Status:  res.Status,
		Invoice: dto.ToInvoiceResponse(res.Invoice),
		Nfse:    dto.ToNfseResponse(res.Nfse),
		Event:   dto.ToInvoiceEventResponse(res.Event),
	}
}
