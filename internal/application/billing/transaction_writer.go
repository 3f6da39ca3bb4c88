package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
	infranfse "github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
)

const msgNFSeCreated = "NFSe criada com sucesso"

// MovementContext dados do movimento que acompanham a resposta de emissão.
type MovementContext struct {
	MovementID  string
	Environment string
	Payload     *BuiltPayload
}

// PersistResult registros criados na emissão.
type PersistResult struct {
	Invoice *entity.Invoice
	Nfse    *entity.Nfse
	Event   *entity.InvoiceEvent
}

// InvoiceTransactionWriter grava Invoice, Nfse e o evento NFSE_CREATED numa única transação.
type InvoiceTransactionWriter struct {
	tx  NFSeTxRunner
	now func() time.Time
}

// NewInvoiceTransactionWriter constrói o writer.
func NewInvoiceTransactionWriter(tx NFSeTxRunner) *InvoiceTransactionWriter {
	return &InvoiceTransactionWriter{tx: tx, now: time.Now}
}

// Persist grava os três registros; qualquer falha desfaz todos.
func (w *InvoiceTransactionWriter) Persist(ctx context.Context, resp *infranfse.Response, mc MovementContext) (*PersistResult, error) {
	if resp == nil || resp.ID == "" {
		return nil, &domain.IntegrationError{Operation: "emitir", Err: fmt.Errorf("resposta sem id do documento")}
	}
	if mc.Payload == nil {
		return nil, fmt.Errorf("persistir nfse: payload ausente")
	}

	now := w.now()
	environment := mc.Environment
	if resp.Ambiente != "" {
		environment = resp.Ambiente
	}
	status := resp.NormalizedStatus()
	if status == "" {
		status = entity.InvoiceStatusProcessando
	}

	invoice := &entity.Invoice{
		ReferenceID: mc.MovementID,
		Type:        entity.InvoiceTypeNFSE,
		Status:      status,
		Environment: environment,
		MovementID:  mc.MovementID,
		TotalAmount: mc.Payload.ServiceValue,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if resp.Referencia != "" {
		invoice.ReferenceID = resp.Referencia
	}
	nfse := &entity.Nfse{
		IntegrationNfseID: resp.ID,
		ServiceValue:      mc.Payload.ServiceValue,
		IssValue:          mc.Payload.IssValue,
		AliquotaService:   mc.Payload.Aliquota,
		CreatedAt:         now,
	}
	message := resp.FirstMessage()
	if message == "" {
		message = msgNFSeCreated
	}
	event := &entity.InvoiceEvent{
		EventType: entity.EventNFSeCreated,
		EventDate: now,
		EventData: resp.Raw,
		Status:    status,
		Message:   message,
	}

	err := w.tx.RunNFSe(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		nfseRepo repository.NfseRepository,
		eventRepo repository.InvoiceEventRepository,
	) error {
		if err := invoiceRepo.Create(ctx, invoice); err != nil {
			return err
		}
		nfse.InvoiceID = invoice.ID
		if err := nfseRepo.Create(ctx, nfse); err != nil {
			return err
		}
		event.InvoiceID = invoice.ID
		return eventRepo.Create(ctx, event)
	})
	if err != nil {
		return nil, fmt.Errorf("persistir nfse %s: %w", resp.ID, err)
	}
	return &PersistResult{Invoice: invoice, Nfse: nfse, Event: event}, nil
}
