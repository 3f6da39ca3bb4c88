package repository

import (
	"context"
	"time"

	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
)

// InvoiceRepository porta de persistência de Invoice.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error
	// ListByMovement devolve as invoices do movimento, mais recente primeiro.
	ListByMovement(ctx context.Context, movementID string) ([]*entity.Invoice, error)
}

// NfseRepository porta de persistência de Nfse.
type NfseRepository interface {
	Create(ctx context.Context, nfse *entity.Nfse) error
	GetByID(ctx context.Context, id string) (*entity.Nfse, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.Nfse, error)
	// ListIDsByInvoiceStatus ids de NFSe cuja invoice está no status indicado (mais antigas primeiro).
	ListIDsByInvoiceStatus(ctx context.Context, status string, limit int) ([]string, error)
}

// InvoiceEventRepository trilha de auditoria append-only.
type InvoiceEventRepository interface {
	Create(ctx context.Context, event *entity.InvoiceEvent) error
	// LatestByType devolve o evento mais recente do tipo, ou (nil, nil).
	LatestByType(ctx context.Context, invoiceID, eventType string) (*entity.InvoiceEvent, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.InvoiceEvent, error)
}
