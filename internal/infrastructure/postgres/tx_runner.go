package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wanderleymp/finance-api-sub001/internal/application/billing"
	"github.com/wanderleymp/finance-api-sub001/internal/domain/repository"
)

var _ billing.NFSeTxRunner = (*TxRunner)(nil)

// TxRunner executa callbacks dentro de uma transação PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner constrói o runner com o pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunNFSe abre uma transação, entrega a fn os repos de invoice, nfse e eventos atados à tx
// e faz Commit se fn devolver nil. Em qualquer outro caminho o Rollback adiado libera a conexão.
func (r *TxRunner) RunNFSe(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	nfseRepo repository.NfseRepository,
	eventRepo repository.InvoiceEventRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewInvoiceRepository(tx), NewNfseRepository(tx), NewInvoiceEventRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
