package dto

// PersonResponse pessoa com documentos, endereços e contatos.
type PersonResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Type      string             `json:"type"`
	Documents []DocumentResponse `json:"documents"`
	Addresses []AddressResponse  `json:"addresses"`
	Contacts  []ContactResponse  `json:"contacts"`
}

type DocumentResponse struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type AddressResponse struct {
	ID           string `json:"id"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	IBGE         int    `json:"ibge"`
}

type ContactResponse struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}
