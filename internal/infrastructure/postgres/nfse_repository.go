package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
)

var _ repository.NfseRepository = (*NfseRepo)(nil)

// NfseRepo implementação de NfseRepository.
type NfseRepo struct {
	q Querier
}

// NewNfseRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewNfseRepository(q Querier) *NfseRepo {
	return &NfseRepo{q: q}
}

// Create persiste a NFSe vinculada à invoice.
func (r *NfseRepo) Create(ctx context.Context, n *entity.Nfse) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	query := `
		INSERT INTO nfse (id, invoice_id, integration_nfse_id, service_value, iss_value, aliquota_service, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		n.ID, n.InvoiceID, n.IntegrationNfseID, n.ServiceValue, n.IssValue, n.AliquotaService, n.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("nfse da invoice %s: %w", n.InvoiceID, domain.ErrDuplicate)
		}
		if isForeignKeyViolation(err) {
			return &domain.NotFoundError{Resource: "invoice", ID: n.InvoiceID}
		}
		return fmt.Errorf("insert nfse: %w", err)
	}
	return nil
}

// GetByID obtém a NFSe pelo id local.
func (r *NfseRepo) GetByID(ctx context.Context, id string) (*entity.Nfse, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByInvoiceID obtém a NFSe da invoice.
func (r *NfseRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.Nfse, error) {
	return r.getOne(ctx, `WHERE invoice_id = $1`, invoiceID)
}

func (r *NfseRepo) getOne(ctx context.Context, where string, arg string) (*entity.Nfse, error) {
	query := `
		SELECT id, invoice_id, integration_nfse_id, service_value, iss_value, aliquota_service, created_at
		FROM nfse ` + where
	var n entity.Nfse
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&n.ID, &n.InvoiceID, &n.IntegrationNfseID, &n.ServiceValue, &n.IssValue, &n.AliquotaService, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get nfse: %w", err)
	}
	return &n, nil
}

// ListIDsByInvoiceStatus usado pela varredura de reconciliação.
func (r *NfseRepo) ListIDsByInvoiceStatus(ctx context.Context, status string, limit int) ([]string, error) {
	query := `
		SELECT n.id
		FROM nfse n
		JOIN invoices i ON i.id = n.invoice_id
		WHERE i.status = $1
		ORDER BY i.updated_at ASC
		LIMIT $2`
	rows, err := r.q.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list nfse by status: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan nfse id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
