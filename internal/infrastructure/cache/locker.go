package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker trava consultiva por chave (SET NX + liberação condicionada ao dono).
type Locker struct {
	client redis.UniversalClient
	prefix string
	script *redis.Script
}

// NewLocker constrói a trava. client nil devolve nil.
func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client, prefix: prefix, script: redis.NewScript(lockReleaseScript)}
}

// TryLock tenta adquirir key por ttl. Devolve o token de posse e se adquiriu.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("chave de trava vazia")
	}
	if ttl <= 0 {
		return "", false, errors.New("ttl da trava deve ser positivo")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release libera a trava somente se token ainda for o dono.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
}
