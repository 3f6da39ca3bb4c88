package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/cache"
)

const defaultCancelReason = "Cancelamento solicitado pelo prestador"

// CancelNFSeUseCase cancela a NFSe no provedor e registra NFSE_CANCELADA.
type CancelNFSeUseCase struct {
	nfses    repository.NfseRepository
	invoices repository.InvoiceRepository
	provider FiscalProvider
	tx       NFSeTxRunner
	cache    CacheInvalidator
	now      func() time.Time
	log      zerolog.Logger
}

// NewCancelNFSeUseCase constrói o caso de uso. cacheInv pode ser nil.
func NewCancelNFSeUseCase(
	nfses repository.NfseRepository,
	invoices repository.InvoiceRepository,
	provider FiscalProvider,
	tx NFSeTxRunner,
	cacheInv CacheInvalidator,
	log zerolog.Logger,
) *CancelNFSeUseCase {
	if cacheInv == nil {
		cacheInv = cache.Nop{}
	}
	return &CancelNFSeUseCase{
		nfses:    nfses,
		invoices: invoices,
		provider: provider,
		tx:       tx,
		cache:    cacheInv,
		now:      time.Now,
		log:      log.With().Str("component", "cancel_nfse").Logger(),
	}
}

// Cancel só aceita NFSe autorizada; o status final é o devolvido pelo provedor.
func (uc *CancelNFSeUseCase) Cancel(ctx context.Context, nfseID, reason string) (*ReconcileResult, error) {
	nf, inv, err := loadNfse(ctx, uc.nfses, uc.invoices, nfseID)
	if err != nil {
		return nil, err
	}
	if inv.Status != entity.InvoiceStatusAutorizado {
		return nil, &domain.ValidationError{
			Code:    domain.CodeInvalidStatus,
			Message: fmt.Sprintf("NFSe no status %s não pode ser cancelada", inv.Status),
			Details: map[string]any{"invoice_id": inv.ID, "status": inv.Status},
		}
	}
	if reason == "" {
		reason = defaultCancelReason
	}

	resp, err := uc.provider.Cancel(ctx, nf.IntegrationNfseID, reason)
	if err != nil {
		return nil, err
	}

	status := resp.NormalizedStatus()
	if status == "" || status == "concluido" {
		status = entity.InvoiceStatusCancelado
	}
	message := resp.FirstMessage()
	if message == "" {
		message = statusMessage(status, "")
	}
	now := uc.now()
	event := &entity.InvoiceEvent{
		InvoiceID: inv.ID,
		EventType: entity.EventNFSeCancelled,
		EventDate: now,
		EventData: resp.Raw,
		Status:    status,
		Message:   message,
	}
	err = uc.tx.RunNFSe(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.NfseRepository,
		eventRepo repository.InvoiceEventRepository,
	) error {
		if err := invoiceRepo.UpdateStatus(ctx, inv.ID, status, now); err != nil {
			return err
		}
		return eventRepo.Create(ctx, event)
	})
	if err != nil {
		return nil, fmt.Errorf("gravar cancelamento: %w", err)
	}

	inv.Status = status
	inv.UpdatedAt = now
	uc.cache.Delete(ctx, cache.MovementInvoicesKey(inv.MovementID))
	uc.log.Info().Str("nfse_id", nf.ID).Str("status", status).Msg("cancelamento de NFSe registrado")
	return &ReconcileResult{Status: ReconcileUpdated, Invoice: inv, Nfse: nf, Event: event}, nil
}
