package billing_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
	infranfse "github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
)

// ──────────────────────────────────────────────────────────────────────────────
// Store em memória para invoice, nfse e eventos
// ──────────────────────────────────────────────────────────────────────────────

type store struct {
	mu       sync.Mutex
	seq      int
	invoices map[string]entity.Invoice
	invOrder []string
	nfses    map[string]entity.Nfse
	events   []entity.InvoiceEvent
	writes   int

	failNfseCreate  error
	failEventCreate error
}

func newStore() *store {
	return &store{invoices: map[string]entity.Invoice{}, nfses: map[string]entity.Nfse{}}
}

func (s *store) clone() *store {
	c := newStore()
	c.seq = s.seq
	c.writes = s.writes
	c.failNfseCreate = s.failNfseCreate
	c.failEventCreate = s.failEventCreate
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	c.invOrder = append([]string(nil), s.invOrder...)
	for k, v := range s.nfses {
		c.nfses[k] = v
	}
	c.events = append([]entity.InvoiceEvent(nil), s.events...)
	return c
}

func (s *store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *store) eventsOf(invoiceID, eventType string) []entity.InvoiceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.InvoiceEvent
	for _, e := range s.events {
		if e.InvoiceID == invoiceID && (eventType == "" || e.EventType == eventType) {
			out = append(out, e)
		}
	}
	return out
}

func (s *store) invoice(id string) (entity.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	return inv, ok
}

// seedNfse grava invoice + nfse (+ evento opcional) direto no store.
func (s *store) seedNfse(status, externalID string, lastEvent *entity.InvoiceEvent) (*entity.Invoice, *entity.Nfse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	inv := entity.Invoice{
		ID:          s.nextID("inv"),
		ReferenceID: "mov-1",
		Type:        entity.InvoiceTypeNFSE,
		Status:      status,
		Environment: entity.EnvironmentHomologacao,
		MovementID:  "mov-1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.invoices[inv.ID] = inv
	s.invOrder = append(s.invOrder, inv.ID)
	nf := entity.Nfse{ID: s.nextID("nfse"), InvoiceID: inv.ID, IntegrationNfseID: externalID, CreatedAt: now}
	s.nfses[nf.ID] = nf
	if lastEvent != nil {
		e := *lastEvent
		e.ID = s.nextID("evt")
		e.InvoiceID = inv.ID
		s.events = append(s.events, e)
	}
	return &inv, &nf
}

type invoiceRepo struct{ s *store }

func (r invoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = r.s.nextID("inv")
	}
	r.s.invoices[inv.ID] = *inv
	r.s.invOrder = append(r.s.invOrder, inv.ID)
	r.s.writes++
	return nil
}

func (r invoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (r invoiceRepo) UpdateStatus(_ context.Context, id, status string, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return &domain.NotFoundError{Resource: "invoice", ID: id}
	}
	inv.Status = status
	inv.UpdatedAt = updatedAt
	r.s.invoices[id] = inv
	r.s.writes++
	return nil
}

func (r invoiceRepo) ListByMovement(_ context.Context, movementID string) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Invoice
	for i := len(r.s.invOrder) - 1; i >= 0; i-- {
		inv := r.s.invoices[r.s.invOrder[i]]
		if inv.MovementID == movementID {
			out = append(out, &inv)
		}
	}
	return out, nil
}

type nfseRepo struct{ s *store }

func (r nfseRepo) Create(_ context.Context, n *entity.Nfse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failNfseCreate != nil {
		return r.s.failNfseCreate
	}
	if n.ID == "" {
		n.ID = r.s.nextID("nfse")
	}
	r.s.nfses[n.ID] = *n
	r.s.writes++
	return nil
}

func (r nfseRepo) GetByID(_ context.Context, id string) (*entity.Nfse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.nfses[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r nfseRepo) GetByInvoiceID(_ context.Context, invoiceID string) (*entity.Nfse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.nfses {
		if n.InvoiceID == invoiceID {
			return &n, nil
		}
	}
	return nil, nil
}

func (r nfseRepo) ListIDsByInvoiceStatus(_ context.Context, status string, limit int) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for _, n := range r.s.nfses {
		if r.s.invoices[n.InvoiceID].Status == status {
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type eventRepo struct{ s *store }

func (r eventRepo) Create(_ context.Context, e *entity.InvoiceEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failEventCreate != nil {
		return r.s.failEventCreate
	}
	if e.ID == "" {
		e.ID = r.s.nextID("evt")
	}
	r.s.events = append(r.s.events, *e)
	r.s.writes++
	return nil
}

func (r eventRepo) LatestByType(_ context.Context, invoiceID, eventType string) (*entity.InvoiceEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.events) - 1; i >= 0; i-- {
		e := r.s.events[i]
		if e.InvoiceID == invoiceID && e.EventType == eventType {
			return &e, nil
		}
	}
	return nil, nil
}

func (r eventRepo) ListByInvoice(_ context.Context, invoiceID string) ([]*entity.InvoiceEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.InvoiceEvent
	for _, e := range r.s.events {
		if e.InvoiceID == invoiceID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

// txRunner executa fn sobre uma cópia do store e só aplica as mudanças se fn devolver nil.
type txRunner struct {
	s    *store
	runs int
}

func (t *txRunner) RunNFSe(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	nfseRepo repository.NfseRepository,
	eventRepo repository.InvoiceEventRepository,
) error) error {
	t.runs++
	t.s.mu.Lock()
	work := t.s.clone()
	t.s.mu.Unlock()

	if err := fn(invoiceRepo{work}, nfseRepo{work}, eventRepo{work}); err != nil {
		return err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.seq = work.seq
	t.s.writes = work.writes
	t.s.invoices = work.invoices
	t.s.invOrder = work.invOrder
	t.s.nfses = work.nfses
	t.s.events = work.events
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Provedor fiscal
// ──────────────────────────────────────────────────────────────────────────────

type fakeProvider struct {
	mu sync.Mutex

	emitResults []providerResult
	emitCalls   int
	lastDPS     *infranfse.DPS

	queryResp  *infranfse.Response
	queryErr   error
	queryCalls int

	cancelResp   *infranfse.Response
	cancelErr    error
	cancelReason string
	cancelCalls  int

	pdf      []byte
	pdfErr   error
	pdfForID string
}

type providerResult struct {
	resp *infranfse.Response
	err  error
}

func (p *fakeProvider) Emit(_ context.Context, dps *infranfse.DPS, environment string) (*infranfse.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitCalls++
	p.lastDPS = dps
	if len(p.emitResults) == 0 {
		return nil, fmt.Errorf("emit não configurado")
	}
	r := p.emitResults[0]
	if len(p.emitResults) > 1 {
		p.emitResults = p.emitResults[1:]
	}
	return r.resp, r.err
}

func (p *fakeProvider) Query(_ context.Context, _ string) (*infranfse.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryCalls++
	return p.queryResp, p.queryErr
}

func (p *fakeProvider) Cancel(_ context.Context, _ string, reason string) (*infranfse.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelCalls++
	p.cancelReason = reason
	return p.cancelResp, p.cancelErr
}

func (p *fakeProvider) DownloadPDF(_ context.Context, externalID string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pdfForID = externalID
	return p.pdf, p.pdfErr
}

// providerResponse monta uma resposta com Raw preenchido como o cliente real faz.
func providerResponse(id, status string, msgs ...infranfse.Message) *infranfse.Response {
	r := &infranfse.Response{ID: id, Status: status, Ambiente: entity.EnvironmentHomologacao, Mensagens: msgs}
	raw := fmt.Sprintf(`{"id":%q,"status":%q,"mensagens":[`, id, status)
	for i, m := range msgs {
		if i > 0 {
			raw += ","
		}
		raw += fmt.Sprintf(`{"codigo":%q,"descricao":%q}`, m.Codigo, m.Descricao)
	}
	r.Raw = []byte(raw + "]}")
	return r
}

// ──────────────────────────────────────────────────────────────────────────────
// Cache e tokens
// ──────────────────────────────────────────────────────────────────────────────

type recordingCache struct {
	mu      sync.Mutex
	deleted []string
}

func (c *recordingCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, keys...)
}

type credentialRepo struct {
	byName map[string]*entity.Credential
	err    error
}

func (r *credentialRepo) GetBySystemName(_ context.Context, name string) (*entity.Credential, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.byName[name], nil
}

type tokenRepo struct {
	mu        sync.Mutex
	tokens    []entity.TemporaryToken
	findCalls int
	onFind    func(call int, r *tokenRepo)
	creates   int
}

func (r *tokenRepo) FindValid(_ context.Context, credentialID string, now time.Time) (*entity.TemporaryToken, error) {
	r.mu.Lock()
	r.findCalls++
	hook, call := r.onFind, r.findCalls
	r.mu.Unlock()
	if hook != nil {
		hook(call, r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.tokens) - 1; i >= 0; i-- {
		t := r.tokens[i]
		if t.CredentialID == credentialID && t.ValidAt(now) {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *tokenRepo) Create(_ context.Context, t *entity.TemporaryToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	t.ID = fmt.Sprintf("tok-row-%d", r.creates)
	r.tokens = append(r.tokens, *t)
	return nil
}

func (r *tokenRepo) ExpireByCredential(_ context.Context, credentialID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tokens {
		if r.tokens[i].CredentialID == credentialID && r.tokens[i].ValidAt(now) {
			r.tokens[i].ExpiresAt = now
		}
	}
	return nil
}

func (r *tokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.tokens[:0]
	var n int64
	for _, t := range r.tokens {
		if t.ValidAt(now) {
			kept = append(kept, t)
			continue
		}
		n++
	}
	r.tokens = kept
	return n, nil
}

func (r *tokenRepo) add(t entity.TemporaryToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, t)
}

type fakeAuthenticator struct {
	mu        sync.Mutex
	calls     int
	prefix    string
	expiresIn time.Duration
	err       error
	// started recebe um sinal por chamada; gate, quando não nil, segura a chamada até ser fechado.
	started chan struct{}
	gate    chan struct{}
}

func (a *fakeAuthenticator) RequestToken(_ context.Context, _ *entity.Credential) (*infranfse.AccessToken, error) {
	if a.started != nil {
		select {
		case a.started <- struct{}{}:
		default:
		}
	}
	if a.gate != nil {
		<-a.gate
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &infranfse.AccessToken{Value: fmt.Sprintf("%stoken-%d", a.prefix, a.calls), ExpiresIn: a.expiresIn}, nil
}

type fakeLocker struct {
	acquired bool
	err      error
	locks    int
	releases int
	keys     []string
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.locks++
	l.keys = append(l.keys, key)
	return "owner", l.acquired, l.err
}

func (l *fakeLocker) Release(_ context.Context, _, _ string) error {
	l.releases++
	return nil
}

type fakeInvalidator struct {
	calls  int
	system string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, system string) error {
	f.calls++
	f.system = system
	return nil
}
