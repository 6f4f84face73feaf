package repo

import (
	"context"
	"database/sql"

	"github.com/Jiang6021/PickleBet/internal/market"
	sharedb "github.com/Jiang6021/PickleBet/internal/shared/db"
)

// Postgres implementa a persistência de partidas e mercados
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Create grava a partida e seus mercados numa única transação
// (equivale ao writeMany do store: partida + mercados juntos)
func (p *Postgres) Create(ctx context.Context, m *market.Match) error {
	return sharedb.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO matches (id, venue, team_a1, team_a2, team_b1, team_b2, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			m.ID, m.Venue, m.TeamA[0], m.TeamA[1], m.TeamB[0], m.TeamB[1], string(m.Status), m.CreatedAt,
		)
		if err != nil {
			return sharedb.Classify(err)
		}
		for i, mk := range m.Markets {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO markets (match_id, idx, question, kind, option_a, option_b)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				m.ID, i, mk.Question, string(mk.Kind), string(mk.Options[0]), string(mk.Options[1]),
			)
			if err != nil {
				return sharedb.Classify(err)
			}
		}
		return nil
	})
}

// Get carrega a partida com os mercados na ordem de índice
func (p *Postgres) Get(ctx context.Context, matchID string) (*market.Match, error) {
	m, err := p.scanMatch(p.db.QueryRowContext(ctx, `
		SELECT id, venue, team_a1, team_a2, team_b1, team_b2, status, created_at
		FROM matches WHERE id=$1`, matchID))
	if err != nil {
		return nil, err
	}
	if err := p.loadMarkets(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// List retorna todas as partidas, mais recentes primeiro
func (p *Postgres) List(ctx context.Context) ([]*market.Match, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, venue, team_a1, team_a2, team_b1, team_b2, status, created_at
		FROM matches ORDER BY created_at DESC`)
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	defer rows.Close()

	var out []*market.Match
	for rows.Next() {
		m, err := p.scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedb.Classify(err)
	}
	for _, m := range out {
		if err := p.loadMarkets(ctx, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Lock executa a transição OPEN -> LOCKED de forma guardada
// UPDATE condicionado ao status de origem: corrida entre admins resolve no banco
func (p *Postgres) Lock(ctx context.Context, matchID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE matches SET status=$1 WHERE id=$2 AND status=$3`,
		string(market.StatusLocked), matchID, string(market.StatusOpen))
	if err != nil {
		return sharedb.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sharedb.Classify(err)
	}
	if n == 1 {
		return nil
	}

	// 0 linhas: distingue partida inexistente de transição ilegal
	var status string
	err = p.db.QueryRowContext(ctx, `SELECT status FROM matches WHERE id=$1`, matchID).Scan(&status)
	if err == sql.ErrNoRows {
		return market.ErrNotFound
	}
	if err != nil {
		return sharedb.Classify(err)
	}
	return market.ErrInvalidTransition
}

// GetForUpdateTx carrega e trava a linha da partida dentro da transação do caller
// Usado pela liquidação pra serializar resolve com placeBet concorrente
func (p *Postgres) GetForUpdateTx(ctx context.Context, tx *sql.Tx, matchID string) (*market.Match, error) {
	m, err := p.scanMatch(tx.QueryRowContext(ctx, `
		SELECT id, venue, team_a1, team_a2, team_b1, team_b2, status, created_at
		FROM matches WHERE id=$1 FOR UPDATE`, matchID))
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT question, kind, option_a, option_b, result
		FROM markets WHERE match_id=$1 ORDER BY idx`, matchID)
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	defer rows.Close()
	m.Markets, err = scanMarkets(rows)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// StatusForShareTx lê o status segurando FOR SHARE até o fim da transação
// Fecha a janela check-then-act do placeBet contra o lock/resolve do admin
func (p *Postgres) StatusForShareTx(ctx context.Context, tx *sql.Tx, matchID string) (market.MatchStatus, error) {
	var s string
	err := tx.QueryRowContext(ctx, `SELECT status FROM matches WHERE id=$1 FOR SHARE`, matchID).Scan(&s)
	if err == sql.ErrNoRows {
		return "", market.ErrNotFound
	}
	if err != nil {
		return "", sharedb.Classify(err)
	}
	return market.MatchStatus(s), nil
}

// SetResultsTx grava o resultado de cada mercado dentro da transação de liquidação
func (p *Postgres) SetResultsTx(ctx context.Context, tx *sql.Tx, matchID string, results map[int]market.Prediction) error {
	for idx, res := range results {
		if _, err := tx.ExecContext(ctx,
			`UPDATE markets SET result=$1 WHERE match_id=$2 AND idx=$3`,
			string(res), matchID, idx); err != nil {
			return sharedb.Classify(err)
		}
	}
	return nil
}

// FinishTx efetiva LOCKED -> FINISHED, guardado pelo status de origem
func (p *Postgres) FinishTx(ctx context.Context, tx *sql.Tx, matchID string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE matches SET status=$1 WHERE id=$2 AND status=$3`,
		string(market.StatusFinished), matchID, string(market.StatusLocked))
	if err != nil {
		return sharedb.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sharedb.Classify(err)
	}
	if n != 1 {
		return market.ErrInvalidTransition
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func (p *Postgres) scanMatch(row rowScanner) (*market.Match, error) {
	var m market.Match
	var status string
	err := row.Scan(&m.ID, &m.Venue, &m.TeamA[0], &m.TeamA[1], &m.TeamB[0], &m.TeamB[1], &status, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, market.ErrNotFound
	}
	if err != nil {
		return nil, sharedb.Classify(err)
	}
	m.Status = market.MatchStatus(status)
	return &m, nil
}

func (p *Postgres) loadMarkets(ctx context.Context, m *market.Match) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT question, kind, option_a, option_b, result
		FROM markets WHERE match_id=$1 ORDER BY idx`, m.ID)
	if err != nil {
		return sharedb.Classify(err)
	}
	defer rows.Close()
	m.Markets, err = scanMarkets(rows)
	return err
}

func scanMarkets(rows *sql.Rows) ([]market.Market, error) {
	var out []market.Market
	for rows.Next() {
		var mk market.Market
		var kind, optA, optB string
		var result sql.NullString
		if err := rows.Scan(&mk.Question, &kind, &optA, &optB, &result); err != nil {
			return nil, sharedb.Classify(err)
		}
		mk.Kind = market.MarketKind(kind)
		mk.Options = [2]market.Prediction{market.Prediction(optA), market.Prediction(optB)}
		if result.Valid {
			r := market.Prediction(result.String)
			mk.Result = &r
		}
		out = append(out, mk)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedb.Classify(err)
	}
	return out, nil
}
