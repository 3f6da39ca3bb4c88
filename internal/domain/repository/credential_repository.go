package repository

import (
	"context"
	"time"

	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
)

// CredentialRepository leitura de credenciais de integração (somente leitura neste fluxo).
type CredentialRepository interface {
	GetBySystemName(ctx context.Context, systemName string) (*entity.Credential, error)
}

// TemporaryTokenRepository cache persistente de tokens OAuth2.
type TemporaryTokenRepository interface {
	// FindValid devolve o token mais recente com expires_at > now, ou (nil, nil).
	FindValid(ctx context.Context, credentialID string, now time.Time) (*entity.TemporaryToken, error)
	Create(ctx context.Context, token *entity.TemporaryToken) error
	// ExpireByCredential marca como expirados os tokens válidos da credencial.
	ExpireByCredential(ctx context.Context, credentialID string, now time.Time) error
	// DeleteExpired remove tokens vencidos e devolve quantos foram apagados.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
