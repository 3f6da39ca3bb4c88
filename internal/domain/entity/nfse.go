package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Nfse dados fiscais da nota de serviço (1:1 com Invoice).
type Nfse struct {
	ID                string
	InvoiceID         string
	IntegrationNfseID string // id do documento no provedor
	ServiceValue      decimal.Decimal
	IssValue          decimal.Decimal
	AliquotaService   decimal.Decimal
	CreatedAt         time.Time
}
