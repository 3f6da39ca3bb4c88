package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceTypeNFSE tipo de documento fiscal.
const InvoiceTypeNFSE = "NFSE"

// Status espelhados do provedor fiscal.
const (
	InvoiceStatusProcessando = "processando"
	InvoiceStatusAutorizado  = "autorizado"
	InvoiceStatusErro        = "erro"
	InvoiceStatusCancelado   = "cancelado"
	InvoiceStatusRejeitado   = "rejeitado"
)

// Ambientes do provedor.
const (
	EnvironmentProducao    = "producao"
	EnvironmentHomologacao = "homologacao"
)

// Invoice cabeçalho do documento fiscal emitido para um movimento.
type Invoice struct {
	ID          string
	ReferenceID string // chave de correlação externa (id do movimento)
	Type        string
	Status      string // texto livre espelhado do provedor
	Environment string
	MovementID  string
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reissuable indica se o movimento pode receber uma nova emissão.
func (i *Invoice) Reissuable() bool {
	return i.Status == InvoiceStatusErro || i.Status == InvoiceStatusCancelado || i.Status == InvoiceStatusRejeitado
}
