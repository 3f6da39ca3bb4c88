package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RouterDeps dependências do router.
type RouterDeps struct {
	Emitter    NFSeEmitter
	Reconciler NFSeReconciler
	Canceller  NFSeCanceller
	NFSeReader NFSeReader
	Movements  MovementReader
	Persons    PersonReader
	Log        zerolog.Logger
}

// Router registra as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	nfseHandler := NewNFSeHandler(deps.Emitter, deps.Reconciler, deps.Canceller, deps.NFSeReader, deps.Log)
	movementHandler := NewMovementHandler(deps.Movements, deps.Log)
	personHandler := NewPersonHandler(deps.Persons, deps.Log)

	// Movimentos
	movements := api.Group("/movements")
	movements.Get("/:id", movementHandler.GetByID)
	movements.Get("/:id/invoices", movementHandler.ListInvoices)
	movements.Post("/:id/nfse", nfseHandler.Emit)

	// Pessoas
	api.Get("/persons/:id", personHandler.GetByID)

	// NFSe
	nfse := api.Group("/nfse")
	nfse.Get("/:id", nfseHandler.GetByID)
	nfse.Get("/:id/pdf", nfseHandler.PDF)
	nfse.Post("/:id/reconcile", nfseHandler.Reconcile)
	nfse.Post("/:id/cancel", nfseHandler.Cancel)
}
