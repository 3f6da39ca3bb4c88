package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
)

var _ repository.InvoiceEventRepository = (*InvoiceEventRepo)(nil)

// InvoiceEventRepo trilha de auditoria em invoice_events.
type InvoiceEventRepo struct {
	q Querier
}

// NewInvoiceEventRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewInvoiceEventRepository(q Querier) *InvoiceEventRepo {
	return &InvoiceEventRepo{q: q}
}

// Create insere um evento. event_data é JSONB; vazio vira NULL.
func (r *InvoiceEventRepo) Create(ctx context.Context, e *entity.InvoiceEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	var data []byte
	if len(e.EventData) > 0 {
		data = e.EventData
	}
	query := `
		INSERT INTO invoice_events (id, invoice_id, event_type, event_date, event_data, status, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.InvoiceID, e.EventType, e.EventDate, data, e.Status, nullIfEmpty(e.Message),
	)
	if err != nil {
		return fmt.Errorf("insert invoice event: %w", err)
	}
	return nil
}

// LatestByType evento mais recente do tipo para a invoice.
func (r *InvoiceEventRepo) LatestByType(ctx context.Context, invoiceID, eventType string) (*entity.InvoiceEvent, error) {
	query := `
		SELECT id, invoice_id, event_type, event_date, event_data, status, message
		FROM invoice_events
		WHERE invoice_id = $1 AND event_type = $2
		ORDER BY event_date DESC, id DESC
		LIMIT 1`
	e, err := scanEvent(r.q.QueryRow(ctx, query, invoiceID, eventType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest invoice event: %w", err)
	}
	return e, nil
}

// ListByInvoice eventos em ordem cronológica.
func (r *InvoiceEventRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.InvoiceEvent, error) {
	query := `
		SELECT id, invoice_id, event_type, event_date, event_data, status, message
		FROM invoice_events WHERE invoice_id = $1 ORDER BY event_date ASC, id ASC`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice events: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice event: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func scanEvent(row pgx.Row) (*entity.InvoiceEvent, error) {
	var e entity.InvoiceEvent
	var data []byte
	var message *string
	if err := row.Scan(&e.ID, &e.InvoiceID, &e.EventType, &e.EventDate, &data, &e.Status, &message); err != nil {
		return nil, err
	}
	e.EventData = data
	e.Message = derefStr(message)
	return &e, nil
}
