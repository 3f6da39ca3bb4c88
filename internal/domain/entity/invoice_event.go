package entity

import (
	"encoding/json"
	"time"
)

// Tipos de evento da trilha de auditoria.
const (
	EventNFSeCreated      = "NFSE_CREATED"
	EventNFSeStatusUpdate = "ATUALIZACAO_STATUS_NFSE"
	EventNFSeCancelled    = "NFSE_CANCELADA"
)

// InvoiceEvent evento append-only de uma Invoice. EventData guarda a resposta crua do provedor.
type InvoiceEvent struct {
	ID        string
	InvoiceID string
	EventType string
	EventDate time.Time
	EventData json.RawMessage
	Status    string
	Message   string
}
