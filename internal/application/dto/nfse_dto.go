package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
)

// CancelNFSeRequest corpo de POST /api/nfse/:id/cancel.
type CancelNFSeRequest struct {
	Reason string `json:"reason"`
}

// InvoiceResponse invoice exposta na API.
type InvoiceResponse struct {
	ID          string          `json:"id"`
	ReferenceID string          `json:"reference_id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Environment string          `json:"environment"`
	MovementID  string          `json:"movement_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NfseResponse dados fiscais da NFSe.
type NfseResponse struct {
	ID                string          `json:"id"`
	InvoiceID         string          `json:"invoice_id"`
	IntegrationNfseID string          `json:"integration_nfse_id"`
	ServiceValue      decimal.Decimal `json:"service_value"`
	IssValue          decimal.Decimal `json:"iss_value"`
	AliquotaService   decimal.Decimal `json:"aliquota_service"`
	CreatedAt         time.Time       `json:"created_at"`
}

// InvoiceEventResponse evento da trilha de auditoria.
type InvoiceEventResponse struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	EventDate time.Time       `json:"event_date"`
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	EventData json.RawMessage `json:"event_data,omitempty"`
}

// NFSeResponse resposta de emissão, consulta e cancelamento.
type NFSeResponse struct {
	Status  string                 `json:"status,omitempty"` // updated | unchanged (reconciliação)
	Invoice *InvoiceResponse       `json:"invoice"`
	Nfse    *NfseResponse          `json:"nfse,omitempty"`
	Event   *InvoiceEventResponse  `json:"event,omitempty"`
	Events  []InvoiceEventResponse `json:"events,omitempty"`
}

// ToInvoiceResponse converte a entidade.
func ToInvoiceResponse(i *entity.Invoice) *InvoiceResponse {
	if i == nil {
		return nil
	}
	return &InvoiceResponse{
		ID:          i.ID,
		ReferenceID: i.ReferenceID,
		Type:        i.Type,
		Status:      i.Status,
		Environment: i.Environment,
		MovementID:  i.MovementID,
		TotalAmount: i.TotalAmount,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

// ToNfseResponse converte a entidade.
func ToNfseResponse(n *entity.Nfse) *NfseResponse {
	if n == nil {
		return nil
	}
	return &NfseResponse{
		ID:                n.ID,
		InvoiceID:         n.InvoiceID,
		IntegrationNfseID: n.IntegrationNfseID,
		ServiceValue:      n.ServiceValue,
		IssValue:          n.IssValue,
		AliquotaService:   n.AliquotaService,
		CreatedAt:         n.CreatedAt,
	}
}

// ToInvoiceEventResponse converte a entidade.
func ToInvoiceEventResponse(e *entity.InvoiceEvent) *InvoiceEventResponse {
	if e == nil {
		return nil
	}
	return &InvoiceEventResponse{
		ID:        e.ID,
		EventType: e.EventType,
		EventDate: e.EventDate,
		Status:    e.Status,
		Message:   e.Message,
		EventData: e.EventData,
	}
}
