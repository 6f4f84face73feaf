package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Jiang6021/PickleBet/internal/ledger"
	sharedb "github.com/Jiang6021/PickleBet/internal/shared/db"
)

// Postgres implementa o Account Manager sobre o store
// Toda mutação de saldo do sistema passa por ApplyDelta/ApplyDeltaTx
type Postgres struct {
	db           *sql.DB
	initialStake int64
	adminName    string
}

func NewPostgres(db *sql.DB, initialStake int64, adminName string) *Postgres {
	return &Postgres{db: db, initialStake: initialStake, adminName: adminName}
}

const accountCols = `id, display_name, balance, is_privileged, bankruptcy_count, created_at`

// GetOrCreate busca a conta por nome (case-insensitive) criando se não existir
// Criação concorrente do mesmo nome resolve pra uma conta só:
// índice único em lower(display_name) + releitura no conflito
func (p *Postgres) GetOrCreate(ctx context.Context, name string) (*ledger.Account, error) {
	name = strings.TrimSpace(name)

	if acc, err := p.getByName(ctx, name); err == nil {
		return acc, nil
	} else if err != ledger.ErrNotFound {
		return nil, err
	}

	acc := &ledger.Account{
		ID:           uuid.NewString(),
		DisplayName:  name,
		Balance:      p.initialStake,
		IsPrivileged: strings.EqualFold(name, p.adminName),
		CreatedAt:    time.Now().UTC(),
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO accounts (id, display_name, balance, is_privileged, bankruptcy_count, created_at)
		VALUES ($1,$2,$3,$4,0,$5)`,
		acc.ID, acc.DisplayName, acc.Balance, acc.IsPrivileged, acc.CreatedAt,
	)
	if err != nil {
		// 23505 = unique_violation: outro caller criou primeiro; relê e devolve
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return p.getByName(ctx, name)
		}
		return nil, sharedb.Classify(err)
	}
	return acc, nil
}

// Get carrega a conta pelo id
func (p *Postgres) Get(ctx context.Context, accountID string) (*ledger.Account, error) {
	return p.scan(p.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id=$1`, accountID))
}

// ApplyDelta aplica um delta atômico ao saldo da conta
// Débito que deixaria o saldo negativo aborta com ErrInsufficientFunds
func (p *Postgres) ApplyDelta(ctx context.Context, accountID string, delta int64) (newBalance int64, err error) {
	err = sharedb.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		newBalance, err = p.ApplyDeltaTx(ctx, tx, accountID, delta)
		return err
	})
	return newBalance, err
}

// ApplyDeltaTx é o ApplyDelta dentro de uma transação do caller
// Lock pessimista na linha da conta: dois débitos simultâneos serializam
// e só passa o que ainda couber no saldo
func (p *Postgres) ApplyDeltaTx(ctx context.Context, tx *sql.Tx, accountID string, delta int64) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id=$1 FOR UPDATE`, accountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ledger.ErrNotFound
	}
	if err != nil {
		return 0, sharedb.Classify(err)
	}

	if delta < 0 && balance+delta < 0 {
		return 0, ledger.ErrInsufficientFunds
	}

	newBalance := balance + delta
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance=$1 WHERE id=$2`, newBalance, accountID); err != nil {
		return 0, sharedb.Classify(err)
	}
	return newBalance, nil
}

// ResetAfterBankruptcy volta o saldo ao valor inicial e conta mais uma falência
// Cada chamada é um evento de falência; a operação em si é atômica
func (p *Postgres) ResetAfterBankruptcy(ctx context.Context, accountID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE accounts SET balance=$1, bankruptcy_count = bankruptcy_count + 1
		WHERE id=$2`, p.initialStake, accountID)
	if err != nil {
		return sharedb.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sharedb.Classify(err)
	}
	if n != 1 {
		return ledger.ErrNotFound
	}
	return nil
}

// Leaderboard lista contas por saldo decrescente, sem as privilegiadas
func (p *Postgres) Leaderboard(ctx context.Context) ([]*ledger.Account, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+accountCols+` FROM accounts
		WHERE NOT is_privileged
		ORDER BY balance DESC, display_name ASC`)
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	defer rows.Close()

	var out []*ledger.Account
	for rows.Next() {
		acc, err := p.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedb.Classify(err)
	}
	return out, nil
}

func (p *Postgres) getByName(ctx context.Context, name string) (*ledger.Account, error) {
	return p.scan(p.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE lower(display_name)=lower($1)`, name))
}

type rowScanner interface{ Scan(dest ...any) error }

func (p *Postgres) scan(row rowScanner) (*ledger.Account, error) {
	var acc ledger.Account
	err := row.Scan(&acc.ID, &acc.DisplayName, &acc.Balance, &acc.IsPrivileged, &acc.BankruptcyCount, &acc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	return &acc, nil
}
