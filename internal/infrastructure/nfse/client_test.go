package nfse_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
)

type staticTokens struct {
	token string
	calls int
}

func (s *staticTokens) GetToken(context.Context, string) (string, error) {
	s.calls++
	return s.token, nil
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*nfse.Client, *staticTokens) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tokens := &staticTokens{token: "abc123"}
	c := nfse.NewClient(nfse.ClientConfig{BaseURL: srv.URL + "/", SystemName: "nuvem_fiscal"}, tokens, srv.Client(), zerolog.Nop())
	return c, tokens
}

func sampleDPS() *nfse.DPS {
	return &nfse.DPS{
		Provedor:   "padrao",
		Referencia: "mov-1",
		InfDPS: nfse.InfDPS{
			TpAmb: 2,
			Valores: nfse.Valores{
				VServPrest: nfse.ValorServico{VServ: nfse.NewAmount(decimal.RequireFromString("150"))},
			},
		},
	}
}

func TestClient_EmitSendsBearerAndJSON(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ext-1","status":"Processando","referencia":"mov-1","mensagens":[]}`))
	})

	resp, err := c.Emit(context.Background(), sampleDPS(), "homologacao")

	require.NoError(t, err)
	assert.Equal(t, "Bearer abc123", gotAuth)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/nfse/dps", gotPath)
	assert.Equal(t, "homologacao", body["ambiente"])
	assert.Equal(t, "ext-1", resp.ID)
	assert.Equal(t, "processando", resp.Status)
	assert.JSONEq(t, `{"id":"ext-1","status":"Processando","referencia":"mov-1","mensagens":[]}`, string(resp.Raw))
}

func TestClient_QueryParsesMessages(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nfse/ext-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"ext-1","status":"erro","mensagens":[{"codigo":"E1","descricao":"falhou"}]}`))
	})

	resp, err := c.Query(context.Background(), "ext-1")

	require.NoError(t, err)
	assert.Equal(t, "erro", resp.NormalizedStatus())
	assert.Equal(t, "falhou", resp.FirstMessage())
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		call   func(c *nfse.Client) error
		check  func(t *testing.T, err error)
	}{
		{
			name:   "401 vira AuthenticationError",
			status: http.StatusUnauthorized,
			call: func(c *nfse.Client) error {
				_, err := c.Emit(context.Background(), sampleDPS(), "")
				return err
			},
			check: func(t *testing.T, err error) {
				var authErr *domain.AuthenticationError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, "token inválido/expirado", authErr.Error())
			},
		},
		{
			name:   "404 na consulta vira NotFoundError",
			status: http.StatusNotFound,
			call: func(c *nfse.Client) error {
				_, err := c.Query(context.Background(), "ext-404")
				return err
			},
			check: func(t *testing.T, err error) {
				var nf *domain.NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "ext-404", nf.ID)
			},
		},
		{
			name:   "404 na emissão é erro de integração",
			status: http.StatusNotFound,
			call: func(c *nfse.Client) error {
				_, err := c.Emit(context.Background(), sampleDPS(), "")
				return err
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrIntegration)
			},
		},
		{
			name:   "500 carrega status e corpo",
			status: http.StatusInternalServerError,
			call: func(c *nfse.Client) error {
				_, err := c.Cancel(context.Background(), "ext-1", "motivo")
				return err
			},
			check: func(t *testing.T, err error) {
				var ie *domain.IntegrationError
				require.ErrorAs(t, err, &ie)
				assert.Equal(t, http.StatusInternalServerError, ie.StatusCode)
				assert.Equal(t, "cancelar", ie.Operation)
				assert.Contains(t, ie.Body, "boom")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"boom"}`))
			})
			tt.check(t, tt.call(c))
		})
	}
}

func TestClient_InvalidJSONIsIntegrationError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>ok</html>`))
	})

	_, err := c.Query(context.Background(), "ext-1")

	assert.ErrorIs(t, err, domain.ErrIntegration)
}

func TestClient_NetworkErrorIsIntegrationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	c := nfse.NewClient(nfse.ClientConfig{BaseURL: url, SystemName: "x"}, &staticTokens{token: "t"}, nil, zerolog.Nop())

	_, err := c.Query(context.Background(), "ext-1")

	var ie *domain.IntegrationError
	require.ErrorAs(t, err, &ie)
	assert.Zero(t, ie.StatusCode)
	assert.Error(t, ie.Unwrap())
}

func TestClient_CancelAndPDF(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/nfse/ext-1/cancelamento":
			raw, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"motivo":"duplicada"}`, string(raw))
			_, _ = w.Write([]byte(`{"id":"c-1","status":"concluido"}`))
		case "/nfse/ext-1/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	resp, err := c.Cancel(context.Background(), "ext-1", "duplicada")
	require.NoError(t, err)
	assert.Equal(t, "concluido", resp.Status)

	pdf, err := c.DownloadPDF(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), pdf)
}

func TestClient_DownloadPDFRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 conteudo longo"))
	}))
	t.Cleanup(srv.Close)
	c := nfse.NewClient(nfse.ClientConfig{BaseURL: srv.URL, SystemName: "nuvem_fiscal", MaxPDFBytes: 8},
		&staticTokens{token: "abc123"}, srv.Client(), zerolog.Nop())

	pdf, err := c.DownloadPDF(context.Background(), "ext-1")

	assert.Nil(t, pdf)
	var ie *domain.IntegrationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "baixar_pdf", ie.Operation)
	assert.Equal(t, http.StatusOK, ie.StatusCode)
	assert.Contains(t, ie.Error(), "excede 8 bytes")
}

func TestClient_DownloadPDFAcceptsBodyAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	t.Cleanup(srv.Close)
	c := nfse.NewClient(nfse.ClientConfig{BaseURL: srv.URL, SystemName: "nuvem_fiscal", MaxPDFBytes: 8},
		&staticTokens{token: "abc123"}, srv.Client(), zerolog.Nop())

	pdf, err := c.DownloadPDF(context.Background(), "ext-1")

	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), pdf)
}
