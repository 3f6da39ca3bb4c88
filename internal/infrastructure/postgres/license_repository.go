package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
)

var _ repository.LicenseRepository = (*LicenseRepo)(nil)

// LicenseRepo leitura de licenças.
type LicenseRepo struct {
	q       Querier
	persons *PersonRepo
}

// NewLicenseRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewLicenseRepository(q Querier) *LicenseRepo {
	return &LicenseRepo{q: q, persons: NewPersonRepository(q)}
}

// GetByID carrega a licença e a pessoa emissora.
func (r *LicenseRepo) GetByID(ctx context.Context, id string) (*entity.License, error) {
	var l entity.License
	err := r.q.QueryRow(ctx,
		`SELECT id, person_id, name, status, created_at FROM licenses WHERE id = $1`, id,
	).Scan(&l.ID, &l.PersonID, &l.Name, &l.Status, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get license: %w", err)
	}
	person, err := r.persons.GetByID(ctx, l.PersonID)
	if err != nil {
		return nil, fmt.Errorf("get license person: %w", err)
	}
	l.Person = person
	return &l, nil
}
