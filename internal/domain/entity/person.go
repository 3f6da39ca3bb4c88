package entity

import (
	"strings"
	"time"
)

// Tipos de documento da pessoa.
const (
	DocumentTypeCPF  = "CPF"
	DocumentTypeCNPJ = "CNPJ"
)

// Tipos de contato.
const (
	ContactTypeEmail = "EMAIL"
	ContactTypePhone = "PHONE"
)

// Person representa uma pessoa física ou jurídica (tomador ou prestador).
type Person struct {
	ID        string
	Name      string
	Type      string // PF ou PJ
	Documents []PersonDocument
	Addresses []Address
	Contacts  []Contact
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PersonDocument documento fiscal da pessoa (CPF, CNPJ, IE...).
type PersonDocument struct {
	ID       string
	PersonID string
	Type     string
	Value    string
}

// Address endereço da pessoa. IBGE é o código numérico do município.
type Address struct {
	ID           string
	PersonID     string
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	PostalCode   string
	IBGE         int
}

// Contact contato da pessoa (email, telefone).
type Contact struct {
	ID       string
	PersonID string
	Type     string
	Value    string
}

// DocumentByType devolve o primeiro documento do tipo indicado ou nil.
func (p *Person) DocumentByType(docType string) *PersonDocument {
	for i := range p.Documents {
		if strings.EqualFold(p.Documents[i].Type, docType) {
			return &p.Documents[i]
		}
	}
	return nil
}

// FirstDocument devolve o primeiro documento cadastrado, sem filtro de tipo.
func (p *Person) FirstDocument() *PersonDocument {
	if len(p.Documents) == 0 {
		return nil
	}
	return &p.Documents[0]
}

// PrimaryAddress devolve o primeiro endereço cadastrado.
func (p *Person) PrimaryAddress() *Address {
	if len(p.Addresses) == 0 {
		return nil
	}
	return &p.Addresses[0]
}

// Email devolve o primeiro contato do tipo EMAIL ("" se não houver).
func (p *Person) Email() string {
	for _, c := range p.Contacts {
		if strings.EqualFold(c.Type, ContactTypeEmail) {
			return c.Value
		}
	}
	return ""
}
