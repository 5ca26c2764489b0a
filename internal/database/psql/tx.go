package psql

import (
	"b2bcart/pkg/lib/logger/sl"
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

type txState struct {
	tx         *sqlx.Tx
	savepoints int
}

func txFromContext(ctx context.Context) *txState {
	state, _ := ctx.Value(txKey{}).(*txState)
	return state
}

// ext returns the transaction bound to ctx, or the pool when there is none.
func (s *Storage) ext(ctx context.Context) sqlx.ExtContext {
	if state := txFromContext(ctx); state != nil {
		return state.tx
	}

	return s.db
}

// WithinTx runs fn in one transaction. Storage calls made with the ctx passed to fn
// join that transaction. Nested calls reuse the outer transaction.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	const op = "database.psql.WithinTx"
	log := s.log.With("op", op)

	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	if err := alive(ctx, log); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error("Failed to begin transaction", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, &txState{tx: tx})); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("Failed to commit transaction", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Isolate runs fn behind a savepoint. When fn fails only its own writes are undone and
// the surrounding transaction stays usable. Outside a transaction fn runs as is.
func (s *Storage) Isolate(ctx context.Context, fn func(ctx context.Context) error) error {
	const op = "database.psql.Isolate"
	log := s.log.With("op", op)

	state := txFromContext(ctx)
	if state == nil {
		return fn(ctx)
	}

	state.savepoints++
	name := fmt.Sprintf("sp_%d", state.savepoints)

	if _, err := state.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		log.Error("Failed to create savepoint", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if fnErr := fn(ctx); fnErr != nil {
		if _, err := state.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
			log.Error("Failed to roll back to savepoint", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
		return fnErr
	}

	if _, err := state.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		log.Error("Failed to release savepoint", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
