package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

// ErrUnavailable sinaliza falha de conectividade com o store (Postgres)
// Diferencia erro de infraestrutura (retryable) de violação de regra de negócio
var ErrUnavailable = errors.New("store unavailable")

func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// WithTx executa fn dentro de uma transação
// Commit se fn retornar nil, rollback caso contrário
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Classify(fmt.Errorf("begin tx: %w", err))
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return Classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// Classify envelopa erros de conexão como ErrUnavailable
// Erros de negócio (sentinelas dos repos) passam direto
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// classe 08 = connection exception
		if pqErr.Code.Class() == "08" {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}
