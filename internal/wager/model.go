package wager

import (
	"errors"
	"time"

	"github.com/Jiang6021/PickleBet/internal/market"
)

var (
	ErrMarketClosed     = errors.New("betting is closed for this match")
	ErrInvalidAmount    = errors.New("invalid bet amount")
	ErrSelfBetting      = errors.New("players cannot bet on their own match")
	ErrPrivilegedBettor = errors.New("privileged accounts cannot bet")
)

// Wager é uma aposta registrada: imutável depois de criada
// O débito do valor e o registro formam uma unidade atômica no store
type Wager struct {
	ID          string            `json:"id"`
	AccountID   string            `json:"account_id"`
	MatchID     string            `json:"match_id"`
	MarketIndex int               `json:"market_index"`
	Selection   market.Prediction `json:"selection"`
	Amount      int64             `json:"amount"`
	PlacedAt    time.Time         `json:"placed_at"`
}

// Stakes projeta apostas na visão mínima usada pelos agregados do Market Engine
func Stakes(ws []Wager) []market.Stake {
	out := make([]market.Stake, len(ws))
	for i, w := range ws {
		out[i] = market.Stake{Selection: w.Selection, Amount: w.Amount}
	}
	return out
}
