package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Movement movimento financeiro (venda de serviço) que origina a NFSe.
type Movement struct {
	ID           string
	PersonID     string // tomador
	LicenseID    string // prestador
	Description  string
	TotalAmount  decimal.Decimal
	Status       string
	MovementDate time.Time
	Items        []MovementItem
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MovementItem linha do movimento. TotalPrice e Aliquota podem ser nulos.
type MovementItem struct {
	ID          string
	MovementID  string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalPrice  *decimal.Decimal
	Aliquota    *decimal.Decimal
	ServiceCode string // item da lista LC 116
	CNAE        string
}
