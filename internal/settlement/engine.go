package settlement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/market"
	sharedb "github.com/Jiang6021/PickleBet/internal/shared/db"
	"github.com/Jiang6021/PickleBet/internal/wager"
	"github.com/Jiang6021/PickleBet/pkg/contracts/events"
)

// MatchStore é a fatia do Market Engine usada pela liquidação
type MatchStore interface {
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, matchID string) (*market.Match, error)
	SetResultsTx(ctx context.Context, tx *sql.Tx, matchID string, results map[int]market.Prediction) error
	FinishTx(ctx context.Context, tx *sql.Tx, matchID string) error
}

// WagerStore lê o conjunto final de apostas dentro da transação de intent
type WagerStore interface {
	ListByMatchTx(ctx context.Context, tx *sql.Tx, matchID string) ([]wager.Wager, error)
}

// AccountStore credita payouts; cada crédito é um ApplyDelta atômico
type AccountStore interface {
	ApplyDeltaTx(ctx context.Context, tx *sql.Tx, accountID string, delta int64) (int64, error)
}

// IntentStore persiste a intent write-ahead e controla o replay
type IntentStore interface {
	InsertTx(ctx context.Context, tx *sql.Tx, s *Settlement) error
	Get(ctx context.Context, matchID string) (*Settlement, error)
	ListPending(ctx context.Context) ([]*Settlement, error)
	ClaimPayoutTx(ctx context.Context, tx *sql.Tx, payoutID string) (bool, error)
	MarkAppliedTx(ctx context.Context, tx *sql.Tx, settlementID string, at time.Time) error
}

// Publisher anuncia a liquidação concluída (best-effort, pós-commit)
type Publisher interface {
	MatchSettled(ctx context.Context, ev events.MatchSettled)
	MatchChanged(ctx context.Context, ev events.MatchChanged)
}

// Engine liquida partidas LOCKED em três fases:
//  1. intent: tx única trava a partida, valida os resultados, grava os
//     resultados dos mercados e a intent com todos os payouts (PENDING)
//  2. apply: cada payout vira uma tx própria — claim do payout + crédito na
//     conta juntos; reexecução pula payouts já aplicados
//  3. finish: marca a intent APPLIED e efetiva LOCKED -> FINISHED
//
// A partida só vira FINISHED depois de todo crédito durável; queda entre as
// fases deixa uma intent PENDING que o RecoverPending reaplica no boot
type Engine struct {
	log      *zap.Logger
	db       *sql.DB
	matches  MatchStore
	wagers   WagerStore
	accounts AccountStore
	intents  IntentStore
	publ     Publisher

	OnSettled func()      // métricas
	OnPayout  func(int64) // métricas, valor creditado
}

func NewEngine(log *zap.Logger, db *sql.DB, m MatchStore, w WagerStore, a AccountStore, i IntentStore, p Publisher) *Engine {
	return &Engine{log: log, db: db, matches: m, wagers: w, accounts: a, intents: i, publ: p}
}

// Resolve liquida a partida com um resultado por mercado
// Falha sem efeito se a partida não estiver LOCKED (ErrInvalidTransition),
// se faltar resultado pra algum mercado (ErrIncompleteResolution) ou se
// alguma opção não for legal pro seu mercado (ErrInvalidSelection)
// Liquidação é final: não existe reabertura nem re-resolução; se a partida
// já tem intent PENDING de uma chamada interrompida, retoma a aplicação
func (e *Engine) Resolve(ctx context.Context, matchID string, results map[int]market.Prediction) error {
	var intent *Settlement

	err := sharedb.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		m, err := e.matches.GetForUpdateTx(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if m.Status != market.StatusLocked {
			return market.ErrInvalidTransition
		}
		if err := validateResults(m, results); err != nil {
			return err
		}

		ws, err := e.wagers.ListByMatchTx(ctx, tx, matchID)
		if err != nil {
			return err
		}

		intent = &Settlement{
			ID:        uuid.NewString(),
			MatchID:   matchID,
			Status:    StatusPending,
			CreatedAt: time.Now().UTC(),
			Payouts:   Compute(m, ws, results),
		}
		for i := range intent.Payouts {
			intent.Payouts[i].ID = uuid.NewString()
			intent.Payouts[i].SettlementID = intent.ID
		}

		if err := e.matches.SetResultsTx(ctx, tx, matchID, results); err != nil {
			return err
		}
		return e.intents.InsertTx(ctx, tx, intent)
	})
	if errors.Is(err, ErrAlreadySettling) {
		// a partida já tem intent: retoma em vez de falhar se ficou PENDING
		// (apply interrompido numa chamada anterior); os payouts da intent
		// original valem, não os results desta chamada
		return e.resume(ctx, matchID, err)
	}
	if err != nil {
		return err
	}

	if err := e.apply(ctx, intent); err != nil {
		// intent já é durável; o replay do boot termina o serviço da partida
		return err
	}

	e.announce(ctx, intent, results)
	return nil
}

// resume termina o serviço de uma intent PENDING da mesma partida
// Intent já APPLIED devolve o erro original: a liquidação foi concluída
func (e *Engine) resume(ctx context.Context, matchID string, orig error) error {
	existing, err := e.intents.Get(ctx, matchID)
	if err != nil {
		return orig
	}
	if existing.Status != StatusPending {
		return orig
	}

	e.log.Warn("resuming pending settlement",
		zap.String("settlementId", existing.ID),
		zap.String("matchId", matchID),
	)
	if err := e.apply(ctx, existing); err != nil {
		return err
	}
	e.announce(ctx, existing, nil)
	return nil
}

// RecoverPending reaplica intents que ficaram PENDING (queda no meio da fase 2/3)
// Chamado no boot do ledger-service; payouts já aplicados são pulados pelo claim
func (e *Engine) RecoverPending(ctx context.Context) error {
	pending, err := e.intents.ListPending(ctx)
	if err != nil {
		return err
	}
	for _, s := range pending {
		e.log.Warn("replaying pending settlement",
			zap.String("settlementId", s.ID),
			zap.String("matchId", s.MatchID),
		)
		if err := e.apply(ctx, s); err != nil {
			return err
		}
		e.announce(ctx, s, nil)
	}
	return nil
}

// apply executa as fases 2 e 3 sobre uma intent durável
func (e *Engine) apply(ctx context.Context, s *Settlement) error {
	for _, po := range s.Payouts {
		po := po
		err := sharedb.WithTx(ctx, e.db, func(tx *sql.Tx) error {
			claimed, err := e.intents.ClaimPayoutTx(ctx, tx, po.ID)
			if err != nil {
				return err
			}
			if !claimed {
				return nil // já aplicado numa execução anterior
			}
			if _, err := e.accounts.ApplyDeltaTx(ctx, tx, po.AccountID, po.Amount); err != nil {
				return err
			}
			if e.OnPayout != nil {
				e.OnPayout(po.Amount)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return sharedb.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if err := e.intents.MarkAppliedTx(ctx, tx, s.ID, time.Now().UTC()); err != nil {
			return err
		}
		if err := e.finish(ctx, tx, s.MatchID); err != nil {
			return err
		}
		if e.OnSettled != nil {
			e.OnSettled()
		}
		return nil
	})
}

// finish efetiva LOCKED -> FINISHED; partida já FINISHED conta como feito
// (replay concorrente da mesma intent: o outro caller venceu a fase 3)
func (e *Engine) finish(ctx context.Context, tx *sql.Tx, matchID string) error {
	err := e.matches.FinishTx(ctx, tx, matchID)
	if err == nil || !errors.Is(err, market.ErrInvalidTransition) {
		return err
	}
	m, gerr := e.matches.GetForUpdateTx(ctx, tx, matchID)
	if gerr != nil || m.Status != market.StatusFinished {
		return err
	}
	return nil
}

func (e *Engine) announce(ctx context.Context, s *Settlement, results map[int]market.Prediction) {
	if e.publ == nil {
		return
	}
	ev := events.MatchSettled{
		MatchID:      s.MatchID,
		SettlementID: s.ID,
		Ts:           time.Now(),
	}
	if results != nil {
		ev.Results = make(map[int]string, len(results))
		for idx, r := range results {
			ev.Results[idx] = string(r)
		}
	}
	for _, po := range s.Payouts {
		ev.Payouts = append(ev.Payouts, events.PayoutLine{
			AccountID: po.AccountID,
			Amount:    po.Amount,
			Refund:    po.Refund,
		})
	}
	e.publ.MatchSettled(ctx, ev)
	e.publ.MatchChanged(ctx, events.MatchChanged{
		MatchID:  s.MatchID,
		Status:   string(market.StatusFinished),
		TsUnixMs: time.Now().UnixMilli(),
	})
}

// validateResults exige exatamente um resultado legal por mercado
func validateResults(m *market.Match, results map[int]market.Prediction) error {
	if len(results) != len(m.Markets) {
		return ErrIncompleteResolution
	}
	for idx, res := range results {
		if idx < 0 || idx >= len(m.Markets) {
			return market.ErrMarketNotFound
		}
		if !m.Markets[idx].Accepts(res) {
			return market.ErrInvalidSelection
		}
	}
	return nil
}
