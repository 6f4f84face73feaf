package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/Jiang6021/PickleBet/internal/settlement"
	sharedb "github.com/Jiang6021/PickleBet/internal/shared/db"
)

// Postgres persiste intents de liquidação e seus payouts
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// InsertTx grava a intent e todos os payouts na transação da fase 1
// settlements.match_id é UNIQUE: dois resolves concorrentes na mesma partida
// colidem aqui e o segundo falha com ErrAlreadySettling
func (p *Postgres) InsertTx(ctx context.Context, tx *sql.Tx, s *settlement.Settlement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settlements (id, match_id, status, created_at)
		VALUES ($1,$2,$3,$4)`,
		s.ID, s.MatchID, string(s.Status), s.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return settlement.ErrAlreadySettling
		}
		return sharedb.Classify(err)
	}

	for _, po := range s.Payouts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settlement_payouts (id, settlement_id, wager_id, account_id, amount, refund, applied)
			VALUES ($1,$2,$3,$4,$5,$6,false)`,
			po.ID, po.SettlementID, po.WagerID, po.AccountID, po.Amount, po.Refund,
		)
		if err != nil {
			return sharedb.Classify(err)
		}
	}
	return nil
}

// ListPending carrega intents PENDING com seus payouts, pro replay do boot
func (p *Postgres) ListPending(ctx context.Context) ([]*settlement.Settlement, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, match_id, status, created_at
		FROM settlements WHERE status=$1 ORDER BY created_at`,
		string(settlement.StatusPending))
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	defer rows.Close()

	var out []*settlement.Settlement
	for rows.Next() {
		var s settlement.Settlement
		var status string
		if err := rows.Scan(&s.ID, &s.MatchID, &status, &s.CreatedAt); err != nil {
			return nil, sharedb.Classify(err)
		}
		s.Status = settlement.Status(status)
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedb.Classify(err)
	}

	for _, s := range out {
		if s.Payouts, err = p.payouts(ctx, s.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ClaimPayoutTx marca o payout como aplicado, uma única vez
// O guard applied=false torna o replay idempotente: quem não conseguiu a
// linha não credita de novo
func (p *Postgres) ClaimPayoutTx(ctx context.Context, tx *sql.Tx, payoutID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE settlement_payouts SET applied=true WHERE id=$1 AND applied=false`, payoutID)
	if err != nil {
		return false, sharedb.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, sharedb.Classify(err)
	}
	return n == 1, nil
}

// MarkAppliedTx fecha a intent depois que todos os créditos foram aplicados
func (p *Postgres) MarkAppliedTx(ctx context.Context, tx *sql.Tx, settlementID string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE settlements SET status=$1, applied_at=$2 WHERE id=$3`,
		string(settlement.StatusApplied), at, settlementID)
	return sharedb.Classify(err)
}

// Get carrega uma liquidação já gravada (histórico/auditoria)
func (p *Postgres) Get(ctx context.Context, matchID string) (*settlement.Settlement, error) {
	var s settlement.Settlement
	var status string
	var appliedAt sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT id, match_id, status, created_at, applied_at
		FROM settlements WHERE match_id=$1`, matchID).
		Scan(&s.ID, &s.MatchID, &status, &s.CreatedAt, &appliedAt)
	if err == sql.ErrNoRows {
		return nil, settlement.ErrNotFound
	}
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	s.Status = settlement.Status(status)
	if appliedAt.Valid {
		s.AppliedAt = &appliedAt.Time
	}
	if s.Payouts, err = p.payouts(ctx, s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) payouts(ctx context.Context, settlementID string) ([]settlement.Payout, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, settlement_id, wager_id, account_id, amount, refund, applied
		FROM settlement_payouts WHERE settlement_id=$1`, settlementID)
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	defer rows.Close()

	var out []settlement.Payout
	for rows.Next() {
		var po settlement.Payout
		if err := rows.Scan(&po.ID, &po.SettlementID, &po.WagerID, &po.AccountID, &po.Amount, &po.Refund, &po.Applied); err != nil {
			return nil, sharedb.Classify(err)
		}
		out = append(out, po)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedb.Classify(err)
	}
	return out, nil
}
