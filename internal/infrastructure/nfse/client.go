package nfse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
)

const (
	maxResponseBytes = 1 << 20
	maxPDFBytes      = 20 << 20
)

// HTTPClient permite injetar *http.Client ou um cliente instrumentado.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenProvider fonte de tokens de acesso (valor cru, sem "Bearer ").
type TokenProvider interface {
	GetToken(ctx context.Context, systemName string) (string, error)
}

// ClientConfig parâmetros do cliente do provedor.
type ClientConfig struct {
	BaseURL     string
	SystemName  string
	Timeout     time.Duration
	MaxPDFBytes int64 // 0 usa 20 MiB
}

// Client cliente REST do provedor fiscal (emissão, consulta, cancelamento e PDF).
type Client struct {
	baseURL    string
	systemName string
	tokens     TokenProvider
	http       HTTPClient
	maxPDF     int64
	log        zerolog.Logger
}

// NewClient constrói o cliente. httpClient nil usa *http.Client com cfg.Timeout.
func NewClient(cfg ClientConfig, tokens TokenProvider, httpClient HTTPClient, log zerolog.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxPDF := cfg.MaxPDFBytes
	if maxPDF <= 0 {
		maxPDF = maxPDFBytes
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		systemName: cfg.SystemName,
		tokens:     tokens,
		http:       httpClient,
		maxPDF:     maxPDF,
		log:        log.With().Str("component", "nfse_client").Logger(),
	}
}

// Emit envia a DPS. A resposta costuma vir com status "processando"; não espera finalização.
func (c *Client) Emit(ctx context.Context, payload *DPS, environment string) (*Response, error) {
	if environment != "" {
		payload.Ambiente = environment
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serializar DPS: %w", err)
	}
	raw, err := c.do(ctx, "emitir", http.MethodPost, "/nfse/dps", body, maxResponseBytes)
	if err != nil {
		return nil, err
	}
	return decodeResponse("emitir", raw)
}

// Query consulta o estado atual do documento no provedor.
func (c *Client) Query(ctx context.Context, externalID string) (*Response, error) {
	raw, err := c.do(ctx, "consultar", http.MethodGet, "/nfse/"+url.PathEscape(externalID), nil, maxResponseBytes)
	if err != nil {
		return nil, withResource(err, externalID)
	}
	return decodeResponse("consultar", raw)
}

// Cancel solicita o cancelamento do documento.
func (c *Client) Cancel(ctx context.Context, externalID, reason string) (*Response, error) {
	body, err := json.Marshal(cancelRequest{Motivo: reason})
	if err != nil {
		return nil, fmt.Errorf("serializar cancelamento: %w", err)
	}
	raw, err := c.do(ctx, "cancelar", http.MethodPost, "/nfse/"+url.PathEscape(externalID)+"/cancelamento", body, maxResponseBytes)
	if err != nil {
		return nil, withResource(err, externalID)
	}
	return decodeResponse("cancelar", raw)
}

// DownloadPDF baixa o DANFSe em PDF.
func (c *Client) DownloadPDF(ctx context.Context, externalID string) ([]byte, error) {
	raw, err := c.do(ctx, "baixar_pdf", http.MethodGet, "/nfse/"+url.PathEscape(externalID)+"/pdf", nil, c.maxPDF)
	if err != nil {
		return nil, withResource(err, externalID)
	}
	return raw, nil
}

// do executa a chamada autenticada e traduz status não-2xx em erros de domínio.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte, limit int64) ([]byte, error) {
	token, err := c.tokens.GetToken(ctx, c.systemName)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: criar requisição: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("op", op).Str("path", path).Msg("falha de rede no provedor")
		return nil, &domain.IntegrationError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	// Lê um byte além do limite para distinguir corpo completo de corpo truncado.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &domain.IntegrationError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("ler resposta: %w", err)}
	}
	truncated := int64(len(raw)) > limit
	if truncated {
		raw = raw[:limit]
	}

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("chamada ao provedor")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if truncated {
			return nil, &domain.IntegrationError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("resposta excede %d bytes", limit)}
		}
		return raw, nil
	}

	c.log.Error().
		Str("op", op).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("body", string(raw)).
		Msg("provedor respondeu com erro")

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, &domain.AuthenticationError{Operation: op, Body: string(raw)}
	case http.StatusNotFound:
		if method == http.MethodGet || op == "cancelar" {
			return nil, &domain.NotFoundError{Resource: "nfse"}
		}
	}
	return nil, &domain.IntegrationError{Operation: op, StatusCode: resp.StatusCode, Body: string(raw)}
}

func decodeResponse(op string, raw []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &domain.IntegrationError{Operation: op, StatusCode: http.StatusOK, Body: string(raw), Err: fmt.Errorf("resposta inválida: %w", err)}
	}
	r.Status = r.NormalizedStatus()
	r.Raw = json.RawMessage(raw)
	return &r, nil
}

func withResource(err error, id string) error {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		nf.ID = id
	}
	return err
}
