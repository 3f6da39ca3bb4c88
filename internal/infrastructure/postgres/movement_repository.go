package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo leitura de movimentos financeiros.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// GetByID obtém o movimento com seus itens.
func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	query := `
		SELECT id, person_id, license_id, COALESCE(description, ''), total_amount, status,
		       movement_date, created_at, updated_at
		FROM movements WHERE id = $1`
	var m entity.Movement
	err := r.q.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.PersonID, &m.LicenseID, &m.Description, &m.TotalAmount, &m.Status,
		&m.MovementDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	if m.Items, err = r.GetItems(ctx, id); err != nil {
		return nil, err
	}
	return &m, nil
}

// movementItemsQuery ordena pela posição de lançamento; id só desempata.
const movementItemsQuery = `
	SELECT id, movement_id, description, quantity, unit_price, total_price, aliquota,
	       COALESCE(service_code, ''), COALESCE(cnae, '')
	FROM movement_items WHERE movement_id = $1
	ORDER BY position, created_at, id`

// GetItems itens do movimento. total_price e aliquota podem vir nulos.
func (r *MovementRepo) GetItems(ctx context.Context, movementID string) ([]entity.MovementItem, error) {
	rows, err := r.q.Query(ctx, movementItemsQuery, movementID)
	if err != nil {
		return nil, fmt.Errorf("list movement items: %w", err)
	}
	defer rows.Close()
	var list []entity.MovementItem
	for rows.Next() {
		var it entity.MovementItem
		if err := rows.Scan(&it.ID, &it.MovementID, &it.Description, &it.Quantity, &it.UnitPrice,
			&it.TotalPrice, &it.Aliquota, &it.ServiceCode, &it.CNAE); err != nil {
			return nil, fmt.Errorf("scan movement item: %w", err)
		}
		list = append(list, it)
	}
	return list, rows.Err()
}
