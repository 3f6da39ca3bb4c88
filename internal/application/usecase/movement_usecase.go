package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/application/dto"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/cache"
)

// MovementUseCase leituras de movimentos e das invoices de um movimento.
type MovementUseCase struct {
	movements repository.MovementRepository
	invoices  repository.InvoiceRepository
	cache     ReadCache
	log       zerolog.Logger
}

// NewMovementUseCase constrói o caso de uso. c nil desliga o cache.
func NewMovementUseCase(movements repository.MovementRepository, invoices repository.InvoiceRepository, c ReadCache, log zerolog.Logger) *MovementUseCase {
	if c == nil {
		c = cache.Nop{}
	}
	return &MovementUseCase{movements: movements, invoices: invoices, cache: c, log: log}
}

// GetByID obtém o movimento com itens.
func (uc *MovementUseCase) GetByID(ctx context.Context, id string) (*dto.MovementResponse, error) {
	key := cache.MovementKey(id)
	var cached dto.MovementResponse
	res, err := readThrough(ctx, uc.cache, uc.log, key, &cached)
	if err != nil {
		return nil, err
	}
	if res == cache.Hit {
		return &cached, nil
	}

	m, err := uc.movements.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("consultar movimento: %w", err)
	}
	if m == nil {
		return nil, &domain.NotFoundError{Resource: "movimento", ID: id}
	}
	out := toMovementResponse(m)
	writeBack(ctx, uc.cache, res, key, out, cache.TTLMovement)
	return out, nil
}

// ListInvoices invoices do movimento, mais recente primeiro.
func (uc *MovementUseCase) ListInvoices(ctx context.Context, movementID string) ([]dto.InvoiceResponse, error) {
	key := cache.MovementInvoicesKey(movementID)
	var cached []dto.InvoiceResponse
	res, err := readThrough(ctx, uc.cache, uc.log, key, &cached)
	if err != nil {
		return nil, err
	}
	if res == cache.Hit {
		return cached, nil
	}

	m, err := uc.movements.GetByID(ctx, movementID)
	if err != nil {
		return nil, fmt.Errorf("consultar movimento: %w", err)
	}
	if m == nil {
		return nil, &domain.NotFoundError{Resource: "movimento", ID: movementID}
	}
	list, err := uc.invoices.ListByMovement(ctx, movementID)
	if err != nil {
		return nil, fmt.Errorf("listar invoices: %w", err)
	}
	out := make([]dto.InvoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, *dto.ToInvoiceResponse(inv))
	}
	writeBack(ctx, uc.cache, res, key, out, cache.TTLInvoices)
	return out, nil
}

func toMovementResponse(m *entity.Movement) *dto.MovementResponse {
	out := &dto.MovementResponse{
		ID:           m.ID,
		PersonID:     m.PersonID,
		LicenseID:    m.LicenseID,
		Description:  m.Description,
		TotalAmount:  m.TotalAmount,
		Status:       m.Status,
		MovementDate: m.MovementDate,
		Items:        make([]dto.MovementItemResponse, 0, len(m.Items)),
	}
	for _, it := range m.Items {
		out.Items = append(out.Items, dto.MovementItemResponse{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
			Aliquota:    it.Aliquota,
			ServiceCode: it.ServiceCode,
			CNAE:        it.CNAE,
		})
	}
	return out
}

// readThrough consulta o cache. Valor corrompido é removido e o erro sobe.
func readThrough(ctx context.Context, c ReadCache, log zerolog.Logger, key string, dest any) (cache.Result, error) {
	res, err := c.Get(ctx, key, dest)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("valor corrompido no cache")
		c.Delete(ctx, key)
		return res, err
	}
	return res, nil
}

// writeBack popula a chave só quando o cache respondeu; com Redis fora, a fonte basta.
func writeBack(ctx context.Context, c ReadCache, res cache.Result, key string, value any, ttl time.Duration) {
	if res == cache.Unavailable {
		return
	}
	c.Set(ctx, key, value, ttl)
}
