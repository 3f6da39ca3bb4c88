package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/cache"
	infranfse "github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
)

// emitLockTTL cobre timeout do provedor mais a gravação local.
const emitLockTTL = 2 * time.Minute

// EmitNFSeDeps dependências da emissão.
type EmitNFSeDeps struct {
	Movements   repository.MovementRepository
	Persons     repository.PersonRepository
	Licenses    repository.LicenseRepository
	Invoices    repository.InvoiceRepository
	Builder     *PayloadBuilder
	Provider    FiscalProvider
	Tokens      TokenInvalidator
	SystemName  string
	Writer      *InvoiceTransactionWriter
	Cache       CacheInvalidator // opcional
	Locker      Locker           // opcional; sem ele duas emissões simultâneas do mesmo movimento não são barradas
	Environment string
}

// EmitNFSeUseCase emite a NFSe de um movimento: carrega dados, monta a DPS, envia e persiste.
type EmitNFSeUseCase struct {
	d   EmitNFSeDeps
	log zerolog.Logger
}

// NewEmitNFSeUseCase constrói o caso de uso.
func NewEmitNFSeUseCase(d EmitNFSeDeps, log zerolog.Logger) *EmitNFSeUseCase {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	return &EmitNFSeUseCase{d: d, log: log.With().Str("component", "emit_nfse").Logger()}
}

// Emit emite a NFSe do movimento. Um 401 do provedor invalida o token e tenta exatamente mais uma vez.
// Com Locker configurado, verificação, envio e gravação rodam sob trava por movimento.
func (uc *EmitNFSeUseCase) Emit(ctx context.Context, movementID string) (*PersistResult, error) {
	unlock, err := uc.lock(ctx, movementID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return uc.emitMovement(ctx, movementID)
}

func (uc *EmitNFSeUseCase) lock(ctx context.Context, movementID string) (func(), error) {
	if uc.d.Locker == nil {
		return func() {}, nil
	}
	key := "nfse:emit:" + movementID
	owner, acquired, err := uc.d.Locker.TryLock(ctx, key, emitLockTTL)
	if err != nil {
		uc.log.Warn().Err(err).Str("movement_id", movementID).Msg("trava de emissão indisponível")
		return func() {}, nil
	}
	if !acquired {
		return nil, &domain.ValidationError{
			Code:    domain.CodeEmitInProgress,
			Message: "emissão de NFSe em andamento para o movimento",
			Details: map[string]any{"movement_id": movementID},
		}
	}
	return func() {
		if err := uc.d.Locker.Release(context.WithoutCancel(ctx), key, owner); err != nil {
			uc.log.Warn().Err(err).Str("movement_id", movementID).Msg("liberar trava de emissão")
		}
	}, nil
}

func (uc *EmitNFSeUseCase) emitMovement(ctx context.Context, movementID string) (*PersistResult, error) {
	movement, err := uc.d.Movements.GetByID(ctx, movementID)
	if err != nil {
		return nil, fmt.Errorf("consultar movimento: %w", err)
	}
	if movement == nil {
		return nil, &domain.NotFoundError{Resource: "movimento", ID: movementID}
	}

	existing, err := uc.d.Invoices.ListByMovement(ctx, movementID)
	if err != nil {
		return nil, fmt.Errorf("consultar invoices do movimento: %w", err)
	}
	if len(existing) > 0 && !existing[0].Reissuable() {
		return nil, &domain.ValidationError{
			Code:    domain.CodeAlreadyEmitted,
			Message: "movimento já possui NFSe ativa",
			Details: map[string]any{"invoice_id": existing[0].ID, "status": existing[0].Status},
		}
	}

	tomador, err := uc.d.Persons.GetByID(ctx, movement.PersonID)
	if err != nil {
		return nil, fmt.Errorf("consultar tomador: %w", err)
	}
	license, err := uc.d.Licenses.GetByID(ctx, movement.LicenseID)
	if err != nil {
		return nil, fmt.Errorf("consultar licença: %w", err)
	}
	items := movement.Items
	if len(items) == 0 {
		if items, err = uc.d.Movements.GetItems(ctx, movementID); err != nil {
			return nil, fmt.Errorf("consultar itens: %w", err)
		}
	}

	built, err := uc.d.Builder.Build(movement, tomador, license, items)
	if err != nil {
		return nil, err
	}

	resp, err := uc.emit(ctx, built.DPS)
	if err != nil {
		return nil, err
	}

	result, err := uc.d.Writer.Persist(ctx, resp, MovementContext{
		MovementID:  movementID,
		Environment: uc.d.Environment,
		Payload:     built,
	})
	if err != nil {
		// O documento existe no provedor mas não localmente: registrar o id para conciliação manual.
		uc.log.Error().Err(err).
			Str("movement_id", movementID).
			Str("integration_nfse_id", resp.ID).
			Msg("NFSe emitida no provedor e não persistida")
		return nil, err
	}

	uc.d.Cache.Delete(ctx, cache.MovementInvoicesKey(movementID), cache.MovementKey(movementID))
	uc.log.Info().
		Str("movement_id", movementID).
		Str("invoice_id", result.Invoice.ID).
		Str("integration_nfse_id", resp.ID).
		Str("status", result.Invoice.Status).
		Msg("NFSe emitida")
	return result, nil
}

func (uc *EmitNFSeUseCase) emit(ctx context.Context, dps *infranfse.DPS) (*infranfse.Response, error) {
	resp, err := uc.d.Provider.Emit(ctx, dps, uc.d.Environment)
	var authErr *domain.AuthenticationError
	if err == nil || !errors.As(err, &authErr) || uc.d.Tokens == nil {
		return resp, err
	}
	uc.log.Warn().Str("referencia", dps.Referencia).Msg("token rejeitado pelo provedor, renovando")
	if ierr := uc.d.Tokens.Invalidate(ctx, uc.d.SystemName); ierr != nil {
		return nil, errors.Join(err, ierr)
	}
	return uc.d.Provider.Emit(ctx, dps, uc.d.Environment)
}
