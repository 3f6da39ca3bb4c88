package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/wanderleymp/finance-api-sub001/internal/application/billing"
	"github.com/wanderleymp/finance-api-sub001/internal/application/usecase"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/cache"
	infranfse "github.com/wanderleymp/finance-api-sub001/internal/infrastructure/nfse"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/postgres"
	httpRouter "github.com/wanderleymp/finance-api-sub001/internal/interfaces/http"
	"github.com/wanderleymp/finance-api-sub001/pkg/config"
	"github.com/wanderleymp/finance-api-sub001/pkg/logger"
)

const tokenPurgeInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("nfse_environment", cfg.NFSe.Environment).
		Msg("iniciando aplicação")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão com PostgreSQL")
	}
	defer pool.Close()

	if cfg.DB.Migrate {
		if err := postgres.RunMigrations(pool); err != nil {
			log.Fatal().Err(err).Msg("migrações")
		}
	}

	// Redis é opcional: sem REDIS_URL as leituras vão direto ao banco.
	var readCache usecase.ReadCache = cache.Nop{}
	var tokenOpts []billing.TokenOption
	var locker billing.Locker
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewClient(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("configuração do Redis")
		}
		defer rdb.Close()
		readCache = cache.NewRedisCache(rdb, cfg.App.Name+":", log.Zerolog())
		locker = cache.NewLocker(rdb, cfg.App.Name+":lock:")
		tokenOpts = append(tokenOpts, billing.WithTokenLocker(locker))
	}

	personRepo := postgres.NewPersonRepository(pool)
	licenseRepo := postgres.NewLicenseRepository(pool)
	movementRepo := postgres.NewMovementRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	nfseRepo := postgres.NewNfseRepository(pool)
	eventRepo := postgres.NewInvoiceEventRepository(pool)
	credentialRepo := postgres.NewCredentialRepository(pool)
	tokenRepo := postgres.NewTemporaryTokenRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	httpClient := &http.Client{Timeout: cfg.NFSe.Timeout}
	tokenSvc := billing.NewTokenService(
		credentialRepo, tokenRepo,
		infranfse.NewOAuthAuthenticator(cfg.NFSe.AuthURL, httpClient),
		billing.TokenServiceConfig{DefaultTTL: cfg.NFSe.TokenTTL},
		log.Zerolog(),
		tokenOpts...,
	)
	provider := infranfse.NewClient(infranfse.ClientConfig{
		BaseURL:    cfg.NFSe.BaseURL,
		SystemName: cfg.NFSe.SystemName,
		Timeout:    cfg.NFSe.Timeout,
	}, tokenSvc, httpClient, log.Zerolog())

	builder := billing.NewPayloadBuilder(billing.PayloadConfig{
		Environment:     cfg.NFSe.Environment,
		DefaultAliquota: cfg.NFSe.DefaultAliquota,
		ServiceCode:     cfg.NFSe.ServiceCode,
	})
	emitUC := billing.NewEmitNFSeUseCase(billing.EmitNFSeDeps{
		Movements:   movementRepo,
		Persons:     personRepo,
		Licenses:    licenseRepo,
		Invoices:    invoiceRepo,
		Builder:     builder,
		Provider:    provider,
		Tokens:      tokenSvc,
		SystemName:  cfg.NFSe.SystemName,
		Writer:      billing.NewInvoiceTransactionWriter(txRunner),
		Cache:       readCache,
		Locker:      locker,
		Environment: cfg.NFSe.Environment,
	}, log.Zerolog())
	reconciler := billing.NewStatusReconciler(
		nfseRepo, invoiceRepo, eventRepo, provider, txRunner, readCache,
		billing.ReconcilerConfig{TrackMessageOnlyChanges: cfg.NFSe.TrackMessageOnlyChanges},
		log.Zerolog(),
	)
	cancelUC := billing.NewCancelNFSeUseCase(nfseRepo, invoiceRepo, provider, txRunner, readCache, log.Zerolog())
	queryUC := billing.NewNFSeQueryUseCase(nfseRepo, invoiceRepo, eventRepo, provider)
	movementUC := usecase.NewMovementUseCase(movementRepo, invoiceRepo, readCache, log.Zerolog())
	personUC := usecase.NewPersonUseCase(personRepo, readCache, log.Zerolog())

	go purgeTokens(ctx, tokenSvc, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.NFSe.Timeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log.Component("http")))

	// Swagger UI: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Finance API - NFSe",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Emitter:    emitUC,
		Reconciler: reconciler,
		Canceller:  cancelUC,
		NFSeReader: queryUC,
		Movements:  movementUC,
		Persons:    personUC,
		Log:        log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("desligamento do servidor")
	}

	log.Info().Msg("aplicação finalizada")
}

// purgeTokens remove periodicamente os tokens expirados de temporary_tokens.
func purgeTokens(ctx context.Context, svc *billing.TokenService, log *logger.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("limpeza de tokens expirados")
				continue
			}
			if n > 0 {
				log.Info().Int64("removidos", n).Msg("tokens expirados removidos")
			}
		}
	}
}
