package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
)

var (
	_ repository.CredentialRepository     = (*CredentialRepo)(nil)
	_ repository.TemporaryTokenRepository = (*TemporaryTokenRepo)(nil)
)

// CredentialRepo leitura de integration_credentials.
type CredentialRepo struct {
	q Querier
}

// NewCredentialRepository constrói o adaptador.
func NewCredentialRepository(q Querier) *CredentialRepo {
	return &CredentialRepo{q: q}
}

// GetBySystemName busca a credencial do sistema (case-insensitive).
func (r *CredentialRepo) GetBySystemName(ctx context.Context, systemName string) (*entity.Credential, error) {
	query := `
		SELECT id, system_name, COALESCE(client_id, ''), COALESCE(client_secret, ''), COALESCE(scope, ''), created_at
		FROM integration_credentials WHERE lower(system_name) = lower($1)`
	var c entity.Credential
	err := r.q.QueryRow(ctx, query, systemName).Scan(
		&c.ID, &c.SystemName, &c.ClientID, &c.ClientSecret, &c.Scope, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

// TemporaryTokenRepo cache de tokens em temporary_tokens.
type TemporaryTokenRepo struct {
	q Querier
}

// NewTemporaryTokenRepository constrói o adaptador.
func NewTemporaryTokenRepository(q Querier) *TemporaryTokenRepo {
	return &TemporaryTokenRepo{q: q}
}

// FindValid token mais recente ainda válido em now.
func (r *TemporaryTokenRepo) FindValid(ctx context.Context, credentialID string, now time.Time) (*entity.TemporaryToken, error) {
	query := `
		SELECT id, token, credential_id, generated_at, expires_at
		FROM temporary_tokens
		WHERE credential_id = $1 AND expires_at > $2
		ORDER BY expires_at DESC
		LIMIT 1`
	var t entity.TemporaryToken
	err := r.q.QueryRow(ctx, query, credentialID, now).Scan(
		&t.ID, &t.Token, &t.CredentialID, &t.GeneratedAt, &t.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find valid token: %w", err)
	}
	return &t, nil
}

// Create persiste um token recém-emitido.
func (r *TemporaryTokenRepo) Create(ctx context.Context, t *entity.TemporaryToken) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO temporary_tokens (id, token, credential_id, generated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Token, t.CredentialID, t.GeneratedAt, t.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// ExpireByCredential antecipa o vencimento dos tokens válidos.
func (r *TemporaryTokenRepo) ExpireByCredential(ctx context.Context, credentialID string, now time.Time) error {
	_, err := r.q.Exec(ctx,
		`UPDATE temporary_tokens SET expires_at = $2 WHERE credential_id = $1 AND expires_at > $2`,
		credentialID, now)
	if err != nil {
		return fmt.Errorf("expire tokens: %w", err)
	}
	return nil
}

// DeleteExpired remove tokens vencidos.
func (r *TemporaryTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM temporary_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
