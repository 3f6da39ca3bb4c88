package repository

import (
	"context"

	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
)

// PersonRepository porta de leitura de pessoas com documentos, endereços e contatos.
type PersonRepository interface {
	// GetByID devolve (nil, nil) quando a pessoa não existe.
	GetByID(ctx context.Context, id string) (*entity.Person, error)
}

// LicenseRepository porta de leitura de licenças (empresa emissora).
type LicenseRepository interface {
	// GetByID carrega também a pessoa da licença com seus documentos.
	GetByID(ctx context.Context, id string) (*entity.License, error)
}
