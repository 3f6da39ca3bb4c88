package repository

import (
	"context"

	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
)

// MovementRepository porta de leitura de movimentos e seus itens.
type MovementRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Movement, error)
	GetItems(ctx context.Context, movementID string) ([]entity.MovementItem, error)
}
