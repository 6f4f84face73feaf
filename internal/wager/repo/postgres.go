package repo

import (
	"context"
	"database/sql"

	"github.com/Jiang6021/PickleBet/internal/market"
	sharedb "github.com/Jiang6021/PickleBet/internal/shared/db"
	"github.com/Jiang6021/PickleBet/internal/wager"
)

// Postgres persiste o registro imutável de apostas
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// InsertTx grava a aposta dentro da transação que também debita a conta
// Nunca é chamado fora dessa transação: débito e registro são uma unidade só
func (p *Postgres) InsertTx(ctx context.Context, tx *sql.Tx, w *wager.Wager) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wagers (id, account_id, match_id, market_index, selection, amount, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		w.ID, w.AccountID, w.MatchID, w.MarketIndex, string(w.Selection), w.Amount, w.PlacedAt,
	)
	return sharedb.Classify(err)
}

// ListByMarket retorna as apostas de um mercado (matchId + índice)
func (p *Postgres) ListByMarket(ctx context.Context, matchID string, marketIndex int) ([]wager.Wager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, match_id, market_index, selection, amount, placed_at
		FROM wagers WHERE match_id=$1 AND market_index=$2 ORDER BY placed_at`,
		matchID, marketIndex)
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ListByMatch retorna todas as apostas da partida
func (p *Postgres) ListByMatch(ctx context.Context, matchID string) ([]wager.Wager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, match_id, market_index, selection, amount, placed_at
		FROM wagers WHERE match_id=$1 ORDER BY market_index, placed_at`, matchID)
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ListByMatchTx idem, dentro da transação de liquidação
// Roda depois do lock da partida: o conjunto lido é final
func (p *Postgres) ListByMatchTx(ctx context.Context, tx *sql.Tx, matchID string) ([]wager.Wager, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, account_id, match_id, market_index, selection, amount, placed_at
		FROM wagers WHERE match_id=$1 ORDER BY market_index, placed_at`, matchID)
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func scanAll(rows *sql.Rows) ([]wager.Wager, error) {
	var out []wager.Wager
	for rows.Next() {
		var w wager.Wager
		var sel string
		if err := rows.Scan(&w.ID, &w.AccountID, &w.MatchID, &w.MarketIndex, &sel, &w.Amount, &w.PlacedAt); err != nil {
			return nil, sharedb.Classify(err)
		}
		w.Selection = market.Prediction(sel)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedb.Classify(err)
	}
	return out, nil
}
