package billing

import (
	"context"
	"fmt"

	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
)

// NFSeDetail NFSe local com a invoice e a trilha de eventos.
type NFSeDetail struct {
	Nfse    *entity.Nfse
	Invoice *entity.Invoice
	Events  []*entity.InvoiceEvent
}

// NFSeQueryUseCase leituras da NFSe: detalhe local e PDF do provedor.
type NFSeQueryUseCase struct {
	nfses    repository.NfseRepository
	invoices repository.InvoiceRepository
	events   repository.InvoiceEventRepository
	provider FiscalProvider
}

// NewNFSeQueryUseCase constrói o caso de uso.
func NewNFSeQueryUseCase(
	nfses repository.NfseRepository,
	invoices repository.InvoiceRepository,
	events repository.InvoiceEventRepository,
	provider FiscalProvider,
) *NFSeQueryUseCase {
	return &NFSeQueryUseCase{nfses: nfses, invoices: invoices, events: events, provider: provider}
}

// Get devolve a NFSe com invoice e eventos, sem consultar o provedor.
func (uc *NFSeQueryUseCase) Get(ctx context.Context, nfseID string) (*NFSeDetail, error) {
	nf, inv, err := loadNfse(ctx, uc.nfses, uc.invoices, nfseID)
	if err != nil {
		return nil, err
	}
	events, err := uc.events.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("listar eventos: %w", err)
	}
	return &NFSeDetail{Nfse: nf, Invoice: inv, Events: events}, nil
}

// DownloadPDF repassa o PDF do provedor. Devolve os bytes e um nome de arquivo sugerido.
func (uc *NFSeQueryUseCase) DownloadPDF(ctx context.Context, nfseID string) ([]byte, string, error) {
	nf, _, err := loadNfse(ctx, uc.nfses, uc.invoices, nfseID)
	if err != nil {
		return nil, "", err
	}
	pdf, err := uc.provider.DownloadPDF(ctx, nf.IntegrationNfseID)
	if err != nil {
		return nil, "", err
	}
	return pdf, fmt.Sprintf("nfse-%s.pdf", nf.IntegrationNfseID), nil
}
