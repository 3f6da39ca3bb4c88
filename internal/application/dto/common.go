package dto

// ErrorResponse corpo de erro HTTP. Details carrega contexto de rastreabilidade (ex: person_id).
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
