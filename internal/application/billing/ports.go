package billing

import (
	"context"
	"time"

	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
	infranfse "github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
)

// NFSeTxRunner executa fn numa transação com os repos de invoice, nfse e eventos.
// Se fn devolver erro nada é persistido.
type NFSeTxRunner interface {
	RunNFSe(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		nfseRepo repository.NfseRepository,
		eventRepo repository.InvoiceEventRepository,
	) error) error
}

// FiscalProvider porta de saída para o provedor de NFSe.
type FiscalProvider interface {
	Emit(ctx context.Context, payload *infranfse.DPS, environment string) (*infranfse.Response, error)
	Query(ctx context.Context, externalID string) (*infranfse.Response, error)
	Cancel(ctx context.Context, externalID, reason string) (*infranfse.Response, error)
	DownloadPDF(ctx context.Context, externalID string) ([]byte, error)
}

// Authenticator executa o grant client_credentials (uma chamada por invocação).
type Authenticator interface {
	RequestToken(ctx context.Context, cred *entity.Credential) (*infranfse.AccessToken, error)
}

// Locker trava consultiva entre processos (emissão de token e de NFSe).
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// TokenInvalidator descarta o token em cache de um sistema.
type TokenInvalidator interface {
	Invalidate(ctx context.Context, systemName string) error
}

// CacheInvalidator remoção best-effort de chaves de leitura.
type CacheInvalidator interface {
	Delete(ctx context.Context, keys ...string)
}
