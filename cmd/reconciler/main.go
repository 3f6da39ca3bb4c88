// Command reconciler concilia com o provedor as NFSe ainda em processamento.
// Pensado para rodar via cron.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wanderleymp/finance-api-sub001/internal/application/billing"
	"github.com/wanderleymp/finance-api-sub001/internal/application/usecase"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/cache"
	infranfse "github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/postgres"
	"github.com/wanderleymp/finance-api-sub001/pkg/config"
	"github.com/wanderleymp/finance-api-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	limit := flag.Int("limit", cfg.NFSe.ReconcileBatch, "máximo de NFSe por execução")
	purge := flag.Bool("purge-tokens", false, "remove tokens expirados antes de conciliar")
	flag.Parse()

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name + "-reconciler",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão com PostgreSQL")
	}
	defer pool.Close()

	var invalidator usecase.ReadCache = cache.Nop{}
	var tokenOpts []billing.TokenOption
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewClient(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("configuração do Redis")
		}
		defer rdb.Close()
		invalidator = cache.NewRedisCache(rdb, cfg.App.Name+":", log.Zerolog())
		tokenOpts = append(tokenOpts, billing.WithTokenLocker(cache.NewLocker(rdb, cfg.App.Name+":lock:")))
	}

	httpClient := &http.Client{Timeout: cfg.NFSe.Timeout}
	tokenSvc := billing.NewTokenService(
		postgres.NewCredentialRepository(pool),
		postgres.NewTemporaryTokenRepository(pool),
		infranfse.NewOAuthAuthenticator(cfg.NFSe.AuthURL, httpClient),
		billing.TokenServiceConfig{DefaultTTL: cfg.NFSe.TokenTTL},
		log.Zerolog(),
		tokenOpts...,
	)

	if *purge {
		n, err := tokenSvc.PurgeExpired(ctx)
		if err != nil {
			log.Error().Err(err).Msg("limpeza de tokens expirados")
		} else {
			log.Info().Int64("removidos", n).Msg("tokens expirados removidos")
		}
	}

	provider := infranfse.NewClient(infranfse.ClientConfig{
		BaseURL:    cfg.NFSe.BaseURL,
		SystemName: cfg.NFSe.SystemName,
		Timeout:    cfg.NFSe.Timeout,
	}, tokenSvc, httpClient, log.Zerolog())

	reconciler := billing.NewStatusReconciler(
		postgres.NewNfseRepository(pool),
		postgres.NewInvoiceRepository(pool),
		postgres.NewInvoiceEventRepository(pool),
		provider,
		postgres.NewTxRunner(pool),
		invalidator,
		billing.ReconcilerConfig{TrackMessageOnlyChanges: cfg.NFSe.TrackMessageOnlyChanges},
		log.Zerolog(),
	)

	res, err := reconciler.ReconcilePending(ctx, *limit)
	if res != nil {
		log.Info().
			Int("verificadas", res.Checked).
			Int("atualizadas", res.Updated).
			Int("falhas", res.Failed).
			Msg("conciliação concluída")
	}
	if err != nil {
		log.Error().Err(err).Msg("conciliação com falhas")
		pool.Close()
		os.Exit(1)
	}
}
