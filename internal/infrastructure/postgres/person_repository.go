package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
)

var _ repository.PersonRepository = (*PersonRepo)(nil)

// PersonRepo leitura de pessoas com documentos, endereços e contatos.
type PersonRepo struct {
	q Querier
}

// NewPersonRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewPersonRepository(q Querier) *PersonRepo {
	return &PersonRepo{q: q}
}

// GetByID carrega a pessoa e suas coleções na ordem de cadastro.
func (r *PersonRepo) GetByID(ctx context.Context, id string) (*entity.Person, error) {
	var p entity.Person
	err := r.q.QueryRow(ctx,
		`SELECT id, name, type, created_at, updated_at FROM persons WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Type, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	if p.Documents, err = r.documents(ctx, id); err != nil {
		return nil, err
	}
	if p.Addresses, err = r.addresses(ctx, id); err != nil {
		return nil, err
	}
	if p.Contacts, err = r.contacts(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PersonRepo) documents(ctx context.Context, personID string) ([]entity.PersonDocument, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, person_id, type, value FROM person_documents WHERE person_id = $1 ORDER BY created_at, id`, personID)
	if err != nil {
		return nil, fmt.Errorf("list person documents: %w", err)
	}
	defer rows.Close()
	var list []entity.PersonDocument
	for rows.Next() {
		var d entity.PersonDocument
		var value *string
		if err := rows.Scan(&d.ID, &d.PersonID, &d.Type, &value); err != nil {
			return nil, fmt.Errorf("scan person document: %w", err)
		}
		d.Value = derefStr(value)
		list = append(list, d)
	}
	return list, rows.Err()
}

func (r *PersonRepo) addresses(ctx context.Context, personID string) ([]entity.Address, error) {
	query := `
		SELECT id, person_id, street, number, COALESCE(complement, ''), neighborhood,
		       city, state, postal_code, COALESCE(ibge, 0)
		FROM addresses WHERE person_id = $1 ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, personID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()
	var list []entity.Address
	for rows.Next() {
		var a entity.Address
		if err := rows.Scan(&a.ID, &a.PersonID, &a.Street, &a.Number, &a.Complement, &a.Neighborhood,
			&a.City, &a.State, &a.PostalCode, &a.IBGE); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *PersonRepo) contacts(ctx context.Context, personID string) ([]entity.Contact, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, person_id, type, value FROM contacts WHERE person_id = $1 ORDER BY created_at, id`, personID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()
	var list []entity.Contact
	for rows.Next() {
		var c entity.Contact
		if err := rows.Scan(&c.ID, &c.PersonID, &c.Type, &c.Value); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
