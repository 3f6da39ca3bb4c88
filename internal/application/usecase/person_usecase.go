package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/application/dto"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/cache"
)

// PersonUseCase leitura de pessoas.
type PersonUseCase struct {
	persons repository.PersonRepository
	cache   ReadCache
	log     zerolog.Logger
}

// NewPersonUseCase constrói o caso de uso. c nil desliga o cache.
func NewPersonUseCase(persons repository.PersonRepository, c ReadCache, log zerolog.Logger) *PersonUseCase {
	if c == nil {
		c = cache.Nop{}
	}
	return &PersonUseCase{persons: persons, cache: c, log: log}
}

// GetByID obtém a pessoa com documentos, endereços e contatos.
func (uc *PersonUseCase) GetByID(ctx context.Context, id string) (*dto.PersonResponse, error) {
	key := cache.PersonKey(id)
	var cached dto.PersonResponse
	res, err := readThrough(ctx, uc.cache, uc.log, key, &cached)
	if err != nil {
		return nil, err
	}
	if res == cache.Hit {
		return &cached, nil
	}

	p, err := uc.persons.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("consultar pessoa: %w", err)
	}
	if p == nil {
		return nil, &domain.NotFoundError{Resource: "pessoa", ID: id}
	}
	out := toPersonResponse(p)
	writeBack(ctx, uc.cache, res, key, out, cache.TTLPerson)
	return out, nil
}

func toPersonResponse(p *entity.Person) *dto.PersonResponse {
	out := &dto.PersonResponse{
		ID:        p.ID,
		Name:      p.Name,
		Type:      p.Type,
		Documents: make([]dto.DocumentResponse, 0, len(p.Documents)),
		Addresses: make([]dto.AddressResponse, 0, len(p.Addresses)),
		Contacts:  make([]dto.ContactResponse, 0, len(p.Contacts)),
	}
	for _, d := range p.Documents {
		out.Documents = append(out.Documents, dto.DocumentResponse{ID: d.ID, Type: d.Type, Value: d.Value})
	}
	for _, a := range p.Addresses {
		out.Addresses = append(out.Addresses, dto.AddressResponse{
			ID:           a.ID,
			Street:       a.Street,
			Number:       a.Number,
			Complement:   a.Complement,
			Neighborhood: a.Neighborhood,
			City:         a.City,
			State:        a.State,
			PostalCode:   a.PostalCode,
			IBGE:         a.IBGE,
		})
	}
	for _, c := range p.Contacts {
		out.Contacts = append(out.Contacts, dto.ContactResponse{ID: c.ID, Type: c.Type, Value: c.Value})
	}
	return out
}
