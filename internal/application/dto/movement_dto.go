package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementResponse movimento com itens (forma guardada no cache).
type MovementResponse struct {
	ID           string                 `json:"id"`
	PersonID     string                 `json:"person_id"`
	LicenseID    string                 `json:"license_id"`
	Description  string                 `json:"description,omitempty"`
	TotalAmount  decimal.Decimal        `json:"total_amount"`
	Status       string                 `json:"status"`
	MovementDate time.Time              `json:"movement_date"`
	Items        []MovementItemResponse `json:"items"`
}

// MovementItemResponse item do movimento.
type MovementItemResponse struct {
	ID          string           `json:"id"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TotalPrice  *decimal.Decimal `json:"total_price"`
	Aliquota    *decimal.Decimal `json:"aliquota,omitempty"`
	ServiceCode string           `json:"service_code,omitempty"`
	CNAE        string           `json:"cnae,omitempty"`
}
