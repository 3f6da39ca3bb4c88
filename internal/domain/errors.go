package domain

import (
	"errors"
	"fmt"
)

// Erros de domínio (sem dependências externas).
var (
	ErrNotFound       = errors.New("recurso não encontrado")
	ErrInvalidInput   = errors.New("entrada inválida")
	ErrDuplicate      = errors.New("recurso duplicado")
	ErrConflict       = errors.New("conflito com o estado atual")
	ErrAuthentication = errors.New("falha de autenticação no provedor")
	ErrIntegration    = errors.New("falha de integração com o provedor")
)

// Códigos de validação expostos na API.
const (
	CodeMissingDocument = "MISSING_DOCUMENT"
	CodeInvalidDocument = "INVALID_DOCUMENT"
	CodeMissingAddress  = "MISSING_ADDRESS"
	CodeMissingItems    = "MISSING_ITEMS"
	CodeMissingMovement = "MISSING_MOVEMENT"
	CodeMissingLicense  = "MISSING_LICENSE"
	CodeMissingPerson   = "MISSING_PERSON"
	CodeInvalidPayload  = "INVALID_PAYLOAD"
	CodeAlreadyEmitted  = "NFSE_ALREADY_EMITTED"
	CodeInvalidStatus   = "INVALID_STATUS"
	CodeEmitInProgress  = "NFSE_EMISSION_IN_PROGRESS"
)

// ValidationError dados incompletos ou inválidos (classe 400).
// Details carrega contexto de rastreabilidade, ex: person_id.
type ValidationError struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is permite errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// NewValidationError atalho para o caso comum com person_id.
func NewValidationError(code, message, personID string) *ValidationError {
	ve := &ValidationError{Code: code, Message: message}
	if personID != "" {
		ve.Details = map[string]any{"person_id": personID}
	}
	return ve
}

// NotFoundError recurso ausente (classe 404).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s não encontrado", e.Resource)
	}
	return fmt.Sprintf("%s %s não encontrado", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CredentialsNotFoundError não existe credencial para o sistema integrado.
type CredentialsNotFoundError struct {
	System string
}

func (e *CredentialsNotFoundError) Error() string {
	return fmt.Sprintf("credenciais não encontradas para o sistema %q", e.System)
}

func (e *CredentialsNotFoundError) Is(target error) bool { return target == ErrNotFound }

// IncompleteCredentialsError credencial sem client_id ou client_secret.
type IncompleteCredentialsError struct {
	System string
}

func (e *IncompleteCredentialsError) Error() string {
	return fmt.Sprintf("credenciais incompletas para o sistema %q", e.System)
}

func (e *IncompleteCredentialsError) Is(target error) bool { return target == ErrInvalidInput }

// AuthenticationError o provedor rejeitou o token (401).
// O chamador decide se invalida o token e tenta de novo.
type AuthenticationError struct {
	Operation string
	Body      string
}

func (e *AuthenticationError) Error() string {
	return "token inválido/expirado"
}

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// IntegrationError falha opaca do provedor; status e corpo preservados para diagnóstico.
type IntegrationError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *IntegrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s: provedor respondeu %d", e.Operation, e.StatusCode)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

func (e *IntegrationError) Is(target error) bool { return target == ErrIntegration }
