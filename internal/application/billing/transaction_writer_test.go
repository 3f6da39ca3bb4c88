package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderleymp/finance-api-sub001/internal/application/billing"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	infranfse "github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
)

func builtPayload() *billing.BuiltPayload {
	return &billing.BuiltPayload{
		DPS:          &infranfse.DPS{Referencia: "mov-1"},
		ServiceValue: decimal.RequireFromString("150.00"),
		IssValue:     decimal.RequireFromString("3.00"),
		Aliquota:     decimal.RequireFromString("2.00"),
	}
}

func TestInvoiceTransactionWriter_PersistsAllThreeRecords(t *testing.T) {
	s := newStore()
	tx := &txRunner{s: s}
	w := billing.NewInvoiceTransactionWriter(tx)

	res, err := w.Persist(context.Background(), providerResponse("ext-1", "processando"), billing.MovementContext{
		MovementID:  "mov-1",
		Environment: entity.EnvironmentHomologacao,
		Payload:     builtPayload(),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, tx.runs)

	inv, ok := s.invoice(res.Invoice.ID)
	require.True(t, ok)
	assert.Equal(t, entity.InvoiceStatusProcessando, inv.Status)
	assert.Equal(t, entity.InvoiceTypeNFSE, inv.Type)
	assert.Equal(t, "mov-1", inv.ReferenceID)
	assert.Equal(t, "mov-1", inv.MovementID)
	assert.True(t, decimal.RequireFromString("150.00").Equal(inv.TotalAmount))

	assert.Equal(t, res.Invoice.ID, res.Nfse.InvoiceID)
	assert.Equal(t, "ext-1", res.Nfse.IntegrationNfseID)
	assert.True(t, decimal.RequireFromString("3.00").Equal(res.Nfse.IssValue))

	events := s.eventsOf(res.Invoice.ID, entity.EventNFSeCreated)
	require.Len(t, events, 1)
	assert.Equal(t, "NFSe criada com sucesso", events[0].Message)
	assert.JSONEq(t, `{"id":"ext-1","status":"processando","mensagens":[]}`, string(events[0].EventData))
}

func TestInvoiceTransactionWriter_NfseFailureRollsBack(t *testing.T) {
	s := newStore()
	s.failNfseCreate = errors.New("violação de unicidade")
	w := billing.NewInvoiceTransactionWriter(&txRunner{s: s})

	res, err := w.Persist(context.Background(), providerResponse("ext-1", "processando"), billing.MovementContext{
		MovementID: "mov-1",
		Payload:    builtPayload(),
	})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "ext-1")
	assert.Empty(t, s.invoices, "invoice não pode sobreviver sem a nfse")
	assert.Empty(t, s.nfses)
	assert.Empty(t, s.events)
}

func TestInvoiceTransactionWriter_EventFailureRollsBack(t *testing.T) {
	s := newStore()
	s.failEventCreate = errors.New("event_data inválido")
	w := billing.NewInvoiceTransactionWriter(&txRunner{s: s})

	_, err := w.Persist(context.Background(), providerResponse("ext-1", "processando"), billing.MovementContext{
		MovementID: "mov-1",
		Payload:    builtPayload(),
	})

	require.Error(t, err)
	assert.Empty(t, s.invoices)
	assert.Empty(t, s.nfses)
}

func TestInvoiceTransactionWriter_RejectsResponseWithoutID(t *testing.T) {
	s := newStore()
	tx := &txRunner{s: s}
	w := billing.NewInvoiceTransactionWriter(tx)

	_, err := w.Persist(context.Background(), providerResponse("", "processando"), billing.MovementContext{
		MovementID: "mov-1",
		Payload:    builtPayload(),
	})

	assert.ErrorIs(t, err, domain.ErrIntegration)
	assert.Zero(t, tx.runs)
}

func TestInvoiceTransactionWriter_DefaultsStatusAndUsesProviderMessage(t *testing.T) {
	s := newStore()
	w := billing.NewInvoiceTransactionWriter(&txRunner{s: s})
	resp := providerResponse("ext-2", "", infranfse.Message{Codigo: "A1", Descricao: "Recebida para processamento"})
	resp.Referencia = "ref-externa"

	res, err := w.Persist(context.Background(), resp, billing.MovementContext{MovementID: "mov-1", Payload: builtPayload()})

	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusProcessando, res.Invoice.Status)
	assert.Equal(t, "ref-externa", res.Invoice.ReferenceID)
	assert.Equal(t, "Recebida para processamento", res.Event.Message)
}
