package wager

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/ledger"
	"github.com/Jiang6021/PickleBet/internal/market"
	sharedb "github.com/Jiang6021/PickleBet/internal/shared/db"
	"github.com/Jiang6021/PickleBet/pkg/contracts/events"
)

// MatchStore é a fatia do Market Engine consultada na admissão de apostas
type MatchStore interface {
	Get(ctx context.Context, matchID string) (*market.Match, error)
	StatusForShareTx(ctx context.Context, tx *sql.Tx, matchID string) (market.MatchStatus, error)
}

// AccountStore é a fatia do Account Manager usada no débito da aposta
type AccountStore interface {
	Get(ctx context.Context, accountID string) (*ledger.Account, error)
	ApplyDeltaTx(ctx context.Context, tx *sql.Tx, accountID string, delta int64) (int64, error)
}

// WagerStore grava a aposta dentro da transação do débito
type WagerStore interface {
	InsertTx(ctx context.Context, tx *sql.Tx, w *Wager) error
}

// Publisher anuncia a aposta admitida (Kafka + feed Redis), pós-commit
type Publisher interface {
	WagerPlaced(ctx context.Context, ev events.WagerPlaced)
}

// Processor valida e admite apostas contra um mercado
// Não calcula odds; leitores consultam o Market Engine pra isso
type Processor struct {
	log      *zap.Logger
	db       *sql.DB
	matches  MatchStore
	accounts AccountStore
	wagers   WagerStore
	publ     Publisher

	OnAdmitted func()            // métricas (counter++)
	OnRejected func(kind string) // métricas por motivo de rejeição
}

func NewProcessor(log *zap.Logger, db *sql.DB, m MatchStore, a AccountStore, w WagerStore, p Publisher) *Processor {
	return &Processor{log: log, db: db, matches: m, accounts: a, wagers: w, publ: p}
}

// Validate aplica as pré-condições de admissão, na ordem do contrato:
// mercado existe -> partida aberta -> opção válida -> valor válido ->
// apostador não joga a partida -> conta privilegiada não aposta
// Saldo é conferido depois, dentro da transação de débito
func Validate(m *market.Match, acc *ledger.Account, marketIndex int, selection market.Prediction, amount int64) error {
	if marketIndex < 0 || marketIndex >= len(m.Markets) {
		return market.ErrMarketNotFound
	}
	if m.Status != market.StatusOpen {
		return ErrMarketClosed
	}
	if !m.Markets[marketIndex].Accepts(selection) {
		return market.ErrInvalidSelection
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if m.HasPlayer(acc.DisplayName) {
		return ErrSelfBetting
	}
	if acc.IsPrivileged {
		return ErrPrivilegedBettor
	}
	return nil
}

// PlaceBet debita a conta e registra a aposta como unidade atômica
// Nenhum leitor concorrente observa "debitado sem registro" nem o inverso:
// os dois efeitos commitam (ou abortam) na mesma transação
// O status da partida é relido sob FOR SHARE dentro da transação, fechando
// a corrida entre a checagem de OPEN e o débito
func (p *Processor) PlaceBet(ctx context.Context, accountID, matchID string, marketIndex int, selection market.Prediction, amount int64) (*Wager, error) {
	m, err := p.matches.Get(ctx, matchID)
	if err != nil {
		return nil, p.rejected(err)
	}
	acc, err := p.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, p.rejected(err)
	}
	if err := Validate(m, acc, marketIndex, selection, amount); err != nil {
		return nil, p.rejected(err)
	}

	w := &Wager{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		MatchID:     matchID,
		MarketIndex: marketIndex,
		Selection:   selection,
		Amount:      amount,
		PlacedAt:    time.Now().UTC(),
	}

	err = sharedb.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		status, err := p.matches.StatusForShareTx(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if status != market.StatusOpen {
			return ErrMarketClosed
		}
		if _, err := p.accounts.ApplyDeltaTx(ctx, tx, accountID, -amount); err != nil {
			return err
		}
		return p.wagers.InsertTx(ctx, tx, w)
	})
	if err != nil {
		return nil, p.rejected(err)
	}

	if p.OnAdmitted != nil {
		p.OnAdmitted()
	}
	p.log.Info("wager admitted",
		zap.String("wagerId", w.ID),
		zap.String("matchId", matchID),
		zap.Int("marketIndex", marketIndex),
		zap.String("selection", string(selection)),
		zap.Int64("amount", amount),
	)

	if p.publ != nil {
		p.publ.WagerPlaced(ctx, events.WagerPlaced{
			WagerID:     w.ID,
			AccountID:   w.AccountID,
			MatchID:     w.MatchID,
			MarketIndex: w.MarketIndex,
			Selection:   string(w.Selection),
			Amount:      w.Amount,
			TsUnixMs:    w.PlacedAt.UnixMilli(),
		})
	}
	return w, nil
}

// rejected repassa o erro intocado, só alimentando a métrica de rejeição
// A métrica recebe o motivo normalizado, nunca a mensagem do erro:
// texto livre (detalhe de rede dos erros de store) explodiria a
// cardinalidade do label
func (p *Processor) rejected(err error) error {
	if p.OnRejected != nil {
		p.OnRejected(RejectionReason(err))
	}
	return err
}

// RejectionReason reduz o erro da admissão ao conjunto fechado de motivos
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, market.ErrNotFound):
		return "match_not_found"
	case errors.Is(err, market.ErrMarketNotFound):
		return "market_not_found"
	case errors.Is(err, market.ErrInvalidSelection):
		return "invalid_selection"
	case errors.Is(err, ErrMarketClosed):
		return "market_closed"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrSelfBetting):
		return "self_betting"
	case errors.Is(err, ErrPrivilegedBettor):
		return "privileged_bettor"
	case errors.Is(err, ledger.ErrNotFound):
		return "account_not_found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, sharedb.ErrUnavailable):
		return "store_unavailable"
	default:
		return "other"
	}
}
