package entity

import "time"

// License empresa emissora (prestador). Person é carregada junto com documentos.
type License struct {
	ID        string
	PersonID  string
	Name      string
	Status    string
	Person    *Person
	CreatedAt time.Time
}
