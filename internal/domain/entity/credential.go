package entity

import "time"

// Credential credencial OAuth2 de um sistema integrado (uma por sistema).
type Credential struct {
	ID           string
	SystemName   string
	ClientID     string
	ClientSecret string
	Scope        string
	CreatedAt    time.Time
}

// Complete indica se a credencial pode ser usada para pedir token.
func (c *Credential) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// TemporaryToken token de acesso em cache no banco. Token é sempre o valor cru, sem "Bearer ".
type TemporaryToken struct {
	ID           string
	Token        string
	CredentialID string
	GeneratedAt  time.Time
	ExpiresAt    time.Time
}

// ValidAt informa se o token ainda não expirou em now.
func (t *TemporaryToken) ValidAt(now time.Time) bool {
	return t.ExpiresAt.After(now)
}
