package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/phrazzld/tasklink/internal/platform/logger"
)

// TxFn runs inside a transaction. Returning an error rolls the transaction back.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction executes fn in a transaction, committing on success and
// rolling back on error or panic. A panic is re-raised after rollback.
func RunInTransaction(ctx context.Context, db TxBeginner, fn TxFn) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", "error", err)
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to roll back transaction after panic", "error", rbErr, "panic", p)
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction",
				"rollback_error", rbErr,
				"original_error", err)
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", "error", err)
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	return nil
}
