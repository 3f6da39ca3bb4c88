package usecase

import (
	"context"
	"time"

	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/cache"
)

// ReadCache cache-aside das leituras. Get só devolve erro para dado corrompido.
type ReadCache interface {
	Get(ctx context.Context, key string, dest any) (cache.Result, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}
