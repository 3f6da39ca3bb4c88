package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/cache"
	infranfse "github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
)

// Resultado da reconciliação.
const (
	ReconcileUpdated   = "updated"
	ReconcileUnchanged = "unchanged"
)

// ReconcileResult resultado de Reconcile; Event é nil quando nada mudou.
type ReconcileResult struct {
	Status  string
	Invoice *entity.Invoice
	Nfse    *entity.Nfse
	Event   *entity.InvoiceEvent
}

// ReconcilerConfig opções da reconciliação.
type ReconcilerConfig struct {
	// TrackMessageOnlyChanges grava evento quando só as mensagens mudam e o status não.
	TrackMessageOnlyChanges bool
}

// StatusReconciler consulta o provedor e registra ATUALIZACAO_STATUS_NFSE apenas quando algo mudou.
type StatusReconciler struct {
	nfses    repository.NfseRepository
	invoices repository.InvoiceRepository
	events   repository.InvoiceEventRepository
	provider FiscalProvider
	tx       NFSeTxRunner
	cache    CacheInvalidator
	cfg      ReconcilerConfig
	now      func() time.Time
	log      zerolog.Logger
}

// NewStatusReconciler constrói o reconciliador. cacheInv pode ser nil.
func NewStatusReconciler(
	nfses repository.NfseRepository,
	invoices repository.InvoiceRepository,
	events repository.InvoiceEventRepository,
	provider FiscalProvider,
	tx NFSeTxRunner,
	cacheInv CacheInvalidator,
	cfg ReconcilerConfig,
	log zerolog.Logger,
) *StatusReconciler {
	if cacheInv == nil {
		cacheInv = cache.Nop{}
	}
	return &StatusReconciler{
		nfses:    nfses,
		invoices: invoices,
		events:   events,
		provider: provider,
		tx:       tx,
		cache:    cacheInv,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With().Str("component", "status_reconciler").Logger(),
	}
}

// Reconcile sincroniza o status local da NFSe com o provedor. Falhas do provedor sobem sem retry.
func (r *StatusReconciler) Reconcile(ctx context.Context, nfseID string) (*ReconcileResult, error) {
	nf, inv, err := loadNfse(ctx, r.nfses, r.invoices, nfseID)
	if err != nil {
		return nil, err
	}

	remote, err := r.provider.Query(ctx, nf.IntegrationNfseID)
	if err != nil {
		return nil, err
	}

	last, err := r.events.LatestByType(ctx, inv.ID, entity.EventNFSeStatusUpdate)
	if err != nil {
		return nil, fmt.Errorf("último evento de status: %w", err)
	}

	remoteStatus := remote.NormalizedStatus()
	statusChanged := inv.Status != remoteStatus
	changed := statusChanged || last == nil
	if !changed && r.cfg.TrackMessageOnlyChanges {
		changed = !infranfse.SameMessages(infranfse.MessagesFrom(last.EventData), remote.Mensagens)
	}

	if !changed {
		r.log.Info().
			Str("nfse_id", nf.ID).
			Str("status", inv.Status).
			Msg("status da NFSe inalterado")
		return &ReconcileResult{Status: ReconcileUnchanged, Invoice: inv, Nfse: nf}, nil
	}

	now := r.now()
	event := &entity.InvoiceEvent{
		InvoiceID: inv.ID,
		EventType: entity.EventNFSeStatusUpdate,
		EventDate: now,
		EventData: remote.Raw,
		Status:    remoteStatus,
		Message:   statusMessage(remoteStatus, remote.FirstMessage()),
	}
	err = r.tx.RunNFSe(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.NfseRepository,
		eventRepo repository.InvoiceEventRepository,
	) error {
		if err := invoiceRepo.UpdateStatus(ctx, inv.ID, remoteStatus, now); err != nil {
			return err
		}
		return eventRepo.Create(ctx, event)
	})
	if err != nil {
		return nil, fmt.Errorf("gravar atualização de status: %w", err)
	}

	previous := inv.Status
	inv.Status = remoteStatus
	inv.UpdatedAt = now
	r.cache.Delete(ctx, cache.MovementInvoicesKey(inv.MovementID))

	r.log.Info().
		Str("nfse_id", nf.ID).
		Str("from", previous).
		Str("to", remoteStatus).
		Msg("status da NFSe atualizado")
	return &ReconcileResult{Status: ReconcileUpdated, Invoice: inv, Nfse: nf, Event: event}, nil
}

// SweepResult resumo de uma varredura.
type SweepResult struct {
	Checked int
	Updated int
	Failed  int
}

// ReconcilePending reconcilia até limit NFSe ainda em processamento.
// Erros individuais são acumulados; a varredura segue para as demais.
func (r *StatusReconciler) ReconcilePending(ctx context.Context, limit int) (*SweepResult, error) {
	ids, err := r.nfses.ListIDsByInvoiceStatus(ctx, entity.InvoiceStatusProcessando, limit)
	if err != nil {
		return nil, err
	}
	res := &SweepResult{}
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res.Checked++
		out, err := r.Reconcile(ctx, id)
		if err != nil {
			res.Failed++
			r.log.Error().Err(err).Str("nfse_id", id).Msg("falha ao reconciliar NFSe")
			errs = append(errs, fmt.Errorf("nfse %s: %w", id, err))
			continue
		}
		if out.Status == ReconcileUpdated {
			res.Updated++
		}
	}
	return res, errors.Join(errs...)
}

// statusMessage texto legível do evento conforme o novo status.
func statusMessage(status, firstMessage string) string {
	switch status {
	case entity.InvoiceStatusAutorizado:
		return "Nota Fiscal autorizada com sucesso"
	case entity.InvoiceStatusErro:
		if firstMessage != "" {
			return firstMessage
		}
		return "Erro no processamento da Nota Fiscal"
	case entity.InvoiceStatusProcessando:
		return "Nota Fiscal em processamento"
	case entity.InvoiceStatusCancelado:
		return "Nota Fiscal cancelada"
	default:
		return fmt.Sprintf("Status da Nota Fiscal alterado para %s", status)
	}
}

func loadNfse(ctx context.Context, nfses repository.NfseRepository, invoices repository.InvoiceRepository, nfseID string) (*entity.Nfse, *entity.Invoice, error) {
	nf, err := nfses.GetByID(ctx, nfseID)
	if err != nil {
		return nil, nil, fmt.Errorf("consultar nfse: %w", err)
	}
	if nf == nil {
		return nil, nil, &domain.NotFoundError{Resource: "nfse", ID: nfseID}
	}
	inv, err := invoices.GetByID(ctx, nf.InvoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("consultar invoice: %w", err)
	}
	if inv == nil {
		return nil, nil, &domain.NotFoundError{Resource: "invoice", ID: nf.InvoiceID}
	}
	return nf, inv, nil
}
