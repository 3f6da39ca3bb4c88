package billing_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderleymp/finance-api-sub001/internal/application/billing"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/cache"
	infranfse "github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
)

type reconcilerFixture struct {
	store    *store
	tx       *txRunner
	provider *fakeProvider
	cache    *recordingCache
}

func newReconcilerFixture() *reconcilerFixture {
	s := newStore()
	return &reconcilerFixture{store: s, tx: &txRunner{s: s}, provider: &fakeProvider{}, cache: &recordingCache{}}
}

func (f *reconcilerFixture) reconciler(cfg billing.ReconcilerConfig) *billing.StatusReconciler {
	return billing.NewStatusReconciler(
		nfseRepo{f.store}, invoiceRepo{f.store}, eventRepo{f.store},
		f.provider, f.tx, f.cache, cfg, zerolog.Nop(),
	)
}

func TestStatusReconciler_UnchangedWritesNothing(t *testing.T) {
	f := newReconcilerFixture()
	_, nf := f.store.seedNfse(entity.InvoiceStatusAutorizado, "ext-1", &entity.InvoiceEvent{
		EventType: entity.EventNFSeStatusUpdate,
		Status:    entity.InvoiceStatusAutorizado,
		EventData: []byte(`{"status":"autorizado"}`),
	})
	f.provider.queryResp = providerResponse("ext-1", "autorizado")
	writesBefore := f.store.writes

	res, err := f.reconciler(billing.ReconcilerConfig{}).Reconcile(context.Background(), nf.ID)

	require.NoError(t, err)
	assert.Equal(t, billing.ReconcileUnchanged, res.Status)
	assert.Nil(t, res.Event)
	assert.Equal(t, writesBefore, f.store.writes)
	assert.Zero(t, f.tx.runs)
	assert.Empty(t, f.cache.deleted)
}

func TestStatusReconciler_StatusChangeAppendsOneEvent(t *testing.T) {
	f := newReconcilerFixture()
	inv, nf := f.store.seedNfse(entity.InvoiceStatusProcessando, "ext-1", nil)
	f.provider.queryResp = providerResponse("ext-1", "Autorizado")

	res, err := f.reconciler(billing.ReconcilerConfig{}).Reconcile(context.Background(), nf.ID)

	require.NoError(t, err)
	assert.Equal(t, billing.ReconcileUpdated, res.Status)
	assert.Equal(t, entity.InvoiceStatusAutorizado, res.Invoice.Status)

	stored, _ := f.store.invoice(inv.ID)
	assert.Equal(t, entity.InvoiceStatusAutorizado, stored.Status)

	events := f.store.eventsOf(inv.ID, entity.EventNFSeStatusUpdate)
	require.Len(t, events, 1)
	assert.Equal(t, "Nota Fiscal autorizada com sucesso", events[0].Message)
	assert.Equal(t, entity.InvoiceStatusAutorizado, events[0].Status)
	assert.JSONEq(t, string(f.provider.queryResp.Raw), string(events[0].EventData))
	assert.Equal(t, []string{cache.MovementInvoicesKey("mov-1")}, f.cache.deleted)
}

func TestStatusReconciler_FirstCheckRecordsEventEvenWithSameStatus(t *testing.T) {
	f := newReconcilerFixture()
	inv, nf := f.store.seedNfse(entity.InvoiceStatusProcessando, "ext-1", nil)
	f.provider.queryResp = providerResponse("ext-1", "processando")

	res, err := f.reconciler(billing.ReconcilerConfig{}).Reconcile(context.Background(), nf.ID)

	require.NoError(t, err)
	assert.Equal(t, billing.ReconcileUpdated, res.Status)
	assert.Len(t, f.store.eventsOf(inv.ID, entity.EventNFSeStatusUpdate), 1)
}

func TestStatusReconciler_ErrorStatusUsesProviderMessage(t *testing.T) {
	f := newReconcilerFixture()
	inv, nf := f.store.seedNfse(entity.InvoiceStatusProcessando, "ext-1", nil)
	f.provider.queryResp = providerResponse("ext-1", "erro", infranfse.Message{Codigo: "E160", Descricao: "CNPJ do prestador inválido"})

	_, err := f.reconciler(billing.ReconcilerConfig{}).Reconcile(context.Background(), nf.ID)

	require.NoError(t, err)
	events := f.store.eventsOf(inv.ID, entity.EventNFSeStatusUpdate)
	require.Len(t, events, 1)
	assert.Equal(t, "CNPJ do prestador inválido", events[0].Message)
}

func TestStatusReconciler_MessageOnlyChange(t *testing.T) {
	seed := &entity.InvoiceEvent{
		EventType: entity.EventNFSeStatusUpdate,
		Status:    entity.InvoiceStatusErro,
		EventData: []byte(`{"status":"erro","mensagens":[{"codigo":"E1","descricao":"primeira"}]}`),
	}
	remote := providerResponse("ext-1", "erro", infranfse.Message{Codigo: "E2", Descricao: "segunda"})

	t.Run("ignorada por padrão", func(t *testing.T) {
		f := newReconcilerFixture()
		_, nf := f.store.seedNfse(entity.InvoiceStatusErro, "ext-1", seed)
		f.provider.queryResp = remote

		res, err := f.reconciler(billing.ReconcilerConfig{}).Reconcile(context.Background(), nf.ID)

		require.NoError(t, err)
		assert.Equal(t, billing.ReconcileUnchanged, res.Status)
		assert.Zero(t, f.tx.runs)
	})

	t.Run("registrada quando habilitada", func(t *testing.T) {
		f := newReconcilerFixture()
		inv, nf := f.store.seedNfse(entity.InvoiceStatusErro, "ext-1", seed)
		f.provider.queryResp = remote

		res, err := f.reconciler(billing.ReconcilerConfig{TrackMessageOnlyChanges: true}).Reconcile(context.Background(), nf.ID)

		require.NoError(t, err)
		assert.Equal(t, billing.ReconcileUpdated, res.Status)
		events := f.store.eventsOf(inv.ID, entity.EventNFSeStatusUpdate)
		require.Len(t, events, 2)
		assert.Equal(t, "segunda", events[1].Message)
	})

	t.Run("mesmas mensagens continuam inalteradas", func(t *testing.T) {
		f := newReconcilerFixture()
		_, nf := f.store.seedNfse(entity.InvoiceStatusErro, "ext-1", seed)
		f.provider.queryResp = providerResponse("ext-1", "erro", infranfse.Message{Codigo: "E1", Descricao: "primeira"})

		res, err := f.reconciler(billing.ReconcilerConfig{TrackMessageOnlyChanges: true}).Reconcile(context.Background(), nf.ID)

		require.NoError(t, err)
		assert.Equal(t, billing.ReconcileUnchanged, res.Status)
	})
}

func TestStatusReconciler_NotFound(t *testing.T) {
	f := newReconcilerFixture()

	_, err := f.reconciler(billing.ReconcilerConfig{}).Reconcile(context.Background(), "nao-existe")

	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nfse", nf.Resource)
	assert.Zero(t, f.provider.queryCalls)
}

func TestStatusReconciler_ProviderErrorIsNotRetried(t *testing.T) {
	f := newReconcilerFixture()
	_, nf := f.store.seedNfse(entity.InvoiceStatusProcessando, "ext-1", nil)
	f.provider.queryErr = &domain.AuthenticationError{Operation: "consultar"}

	_, err := f.reconciler(billing.ReconcilerConfig{}).Reconcile(context.Background(), nf.ID)

	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.Equal(t, 1, f.provider.queryCalls)
	assert.Zero(t, f.tx.runs)
}

func TestStatusReconciler_ReconcilePending(t *testing.T) {
	f := newReconcilerFixture()
	f.store.seedNfse(entity.InvoiceStatusProcessando, "ext-1", nil)
	f.store.seedNfse(entity.InvoiceStatusProcessando, "ext-2", nil)
	f.store.seedNfse(entity.InvoiceStatusAutorizado, "ext-3", nil)
	f.provider.queryResp = providerResponse("ext", "autorizado")

	res, err := f.reconciler(billing.ReconcilerConfig{}).ReconcilePending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 2, res.Updated)
	assert.Zero(t, res.Failed)
}

func TestStatusReconciler_ReconcilePendingCollectsFailures(t *testing.T) {
	f := newReconcilerFixture()
	f.store.seedNfse(entity.InvoiceStatusProcessando, "ext-1", nil)
	f.provider.queryErr = &domain.IntegrationError{Operation: "consultar", StatusCode: 503}

	res, err := f.reconciler(billing.ReconcilerConfig{}).ReconcilePending(context.Background(), 10)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIntegration)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, res.Failed)
}
