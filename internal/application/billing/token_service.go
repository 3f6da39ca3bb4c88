package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
	"golang.org/x/sync/singleflight"
)

const (
	tokenLockTTL      = 15 * time.Second
	tokenWaitAttempts = 10
	tokenWaitInterval = 200 * time.Millisecond
	tokenMintTimeout  = 30 * time.Second
)

// TokenServiceConfig parâmetros do cache de tokens.
type TokenServiceConfig struct {
	DefaultTTL time.Duration // quando o provedor não informa expires_in
}

// TokenService obtém e guarda em temporary_tokens o token OAuth2 do provedor.
// Acerto no cache não faz chamada externa; cada falta faz uma chamada e uma escrita.
type TokenService struct {
	credentials repository.CredentialRepository
	tokens      repository.TemporaryTokenRepository
	auth        Authenticator
	locker      Locker // opcional
	group       singleflight.Group
	defaultTTL  time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// TokenOption configura dependências opcionais.
type TokenOption func(*TokenService)

// WithTokenLocker ativa a trava por credencial entre processos.
func WithTokenLocker(l Locker) TokenOption {
	return func(s *TokenService) { s.locker = l }
}

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService constrói o serviço.
func NewTokenService(
	credentials repository.CredentialRepository,
	tokens repository.TemporaryTokenRepository,
	auth Authenticator,
	cfg TokenServiceConfig,
	log zerolog.Logger,
	opts ...TokenOption,
) *TokenService {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &TokenService{
		credentials: credentials,
		tokens:      tokens,
		auth:        auth,
		defaultTTL:  ttl,
		now:         time.Now,
		log:         log.With().Str("component", "token_service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetToken devolve o token cru (sem "Bearer ") válido para systemName.
func (s *TokenService) GetToken(ctx context.Context, systemName string) (string, error) {
	cred, err := s.credential(ctx, systemName)
	if err != nil {
		return "", err
	}

	if tok, err := s.tokens.FindValid(ctx, cred.ID, s.now()); err != nil {
		return "", fmt.Errorf("consultar token em cache: %w", err)
	} else if tok != nil {
		return rawToken(tok.Token), nil
	}

	// Requisições concorrentes do mesmo processo compartilham uma única emissão.
	// A emissão não herda o cancelamento de quem a iniciou; cada chamador espera pelo próprio ctx.
	ch := s.group.DoChan(cred.ID, func() (any, error) {
		mintCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenMintTimeout)
		defer cancel()
		return s.mint(mintCtx, cred)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate expira os tokens guardados do sistema; o próximo GetToken emite um novo.
func (s *TokenService) Invalidate(ctx context.Context, systemName string) error {
	cred, err := s.credential(ctx, systemName)
	if err != nil {
		return err
	}
	if err := s.tokens.ExpireByCredential(ctx, cred.ID, s.now()); err != nil {
		return err
	}
	s.log.Info().Str("system", systemName).Msg("token invalidado")
	return nil
}

// PurgeExpired remove tokens vencidos (varredura periódica).
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("removed", n).Msg("tokens expirados removidos")
	}
	return n, nil
}

func (s *TokenService) credential(ctx context.Context, systemName string) (*entity.Credential, error) {
	cred, err := s.credentials.GetBySystemName(ctx, systemName)
	if err != nil {
		return nil, fmt.Errorf("consultar credencial: %w", err)
	}
	if cred == nil {
		return nil, &domain.CredentialsNotFoundError{System: systemName}
	}
	if !cred.Complete() {
		return nil, &domain.IncompleteCredentialsError{System: systemName}
	}
	return cred, nil
}

func (s *TokenService) mint(ctx context.Context, cred *entity.Credential) (string, error) {
	if s.locker != nil {
		key := "nfse:token:" + cred.ID
		owner, acquired, err := s.locker.TryLock(ctx, key, tokenLockTTL)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("credential_id", cred.ID).Msg("trava de token indisponível")
		case acquired:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, owner); err != nil {
					s.log.Warn().Err(err).Str("credential_id", cred.ID).Msg("liberar trava de token")
				}
			}()
			// Outro processo pode ter gravado entre a consulta e a trava.
			if tok, err := s.tokens.FindValid(ctx, cred.ID, s.now()); err == nil && tok != nil {
				return rawToken(tok.Token), nil
			}
		default:
			if tok := s.waitForToken(ctx, cred.ID); tok != "" {
				return tok, nil
			}
		}
	}
	return s.requestAndStore(ctx, cred)
}

// waitForToken aguarda o dono da trava gravar o token. Devolve "" se esgotar.
func (s *TokenService) waitForToken(ctx context.Context, credentialID string) string {
	ticker := time.NewTicker(tokenWaitInterval)
	defer ticker.Stop()
	for i := 0; i < tokenWaitAttempts; i++ {
		select {
		case <-ctx.Done():
			return ""
		case <-ticker.C:
		}
		if tok, err := s.tokens.FindValid(ctx, credentialID, s.now()); err == nil && tok != nil {
			return rawToken(tok.Token)
		}
	}
	return ""
}

func (s *TokenService) requestAndStore(ctx context.Context, cred *entity.Credential) (string, error) {
	access, err := s.auth.RequestToken(ctx, cred)
	if err != nil {
		s.log.Error().Err(err).Str("system", cred.SystemName).Msg("falha ao obter token do provedor")
		return "", err
	}

	now := s.now()
	ttl := access.ExpiresIn
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	tok := &entity.TemporaryToken{
		Token:        rawToken(access.Value),
		CredentialID: cred.ID,
		GeneratedAt:  now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.tokens.Create(ctx, tok); err != nil {
		return "", fmt.Errorf("gravar token: %w", err)
	}
	s.log.Info().
		Str("system", cred.SystemName).
		Time("expires_at", tok.ExpiresAt).
		Msg("novo token emitido")
	return tok.Token, nil
}

// rawToken remove o esquema "Bearer " se vier gravado ou devolvido pelo provedor.
func rawToken(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return v
}
