package nfse

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wanderleymp/finance-api-sub001/internal/domain/entity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AccessToken token devolvido pelo endpoint OAuth2. ExpiresIn zero = não informado.
type AccessToken struct {
	Value     string
	ExpiresIn time.Duration
}

// OAuthAuthenticator executa o grant client_credentials no endpoint /oauth/token.
type OAuthAuthenticator struct {
	tokenURL string
	client   *http.Client
}

// NewOAuthAuthenticator client nil usa http.DefaultClient com timeout.
func NewOAuthAuthenticator(tokenURL string, client *http.Client) *OAuthAuthenticator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuthAuthenticator{tokenURL: tokenURL, client: client}
}

// RequestToken faz exatamente uma requisição ao endpoint de autenticação.
// Credenciais vão no corpo (form), não em Basic auth.
func (a *OAuthAuthenticator) RequestToken(ctx context.Context, cred *entity.Credential) (*AccessToken, error) {
	cfg := clientcredentials.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		TokenURL:     a.tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if cred.Scope != "" {
		cfg.Scopes = strings.Fields(cred.Scope)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth client_credentials (%s): %w", cred.SystemName, err)
	}

	out := &AccessToken{Value: tok.AccessToken}
	if !tok.Expiry.IsZero() {
		out.ExpiresIn = time.Until(tok.Expiry)
	}
	return out, nil
}
