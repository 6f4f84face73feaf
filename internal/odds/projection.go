package odds

import (
	"sync"
	"time"

	"github.com/Jiang6021/PickleBet/internal/market"
	"github.com/Jiang6021/PickleBet/internal/wager"
	"github.com/Jiang6021/PickleBet/pkg/contracts/events"
)

// Projection é a visão em memória dos pools das partidas abertas,
// reconstruída do store no boot e mantida viva pelo feed de apostas
// Serve só preview de odds, nunca decisão de saldo: staleness é aceitável
// porque toda decisão vinculante relê o store
type Projection struct {
	mu    sync.RWMutex
	pools map[string]map[int][]market.Stake // matchID -> marketIndex -> stakes
}

func NewProjection() *Projection {
	return &Projection{pools: make(map[string]map[int][]market.Stake)}
}

// Rebuild repõe o estado de uma partida a partir do store (warm start)
func (p *Projection) Rebuild(matchID string, ws []wager.Wager) {
	byMarket := make(map[int][]market.Stake)
	for _, w := range ws {
		byMarket[w.MarketIndex] = append(byMarket[w.MarketIndex], market.Stake{
			Selection: w.Selection,
			Amount:    w.Amount,
		})
	}

	p.mu.Lock()
	p.pools[matchID] = byMarket
	p.mu.Unlock()
}

// Apply incorpora uma aposta nova vinda do feed
func (p *Projection) Apply(ev events.WagerPlaced) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byMarket, ok := p.pools[ev.MatchID]
	if !ok {
		byMarket = make(map[int][]market.Stake)
		p.pools[ev.MatchID] = byMarket
	}
	byMarket[ev.MarketIndex] = append(byMarket[ev.MarketIndex], market.Stake{
		Selection: market.Prediction(ev.Selection),
		Amount:    ev.Amount,
	})
}

// Drop descarta a partida da projeção (liquidada: conjunto de apostas morreu)
func (p *Projection) Drop(matchID string) {
	p.mu.Lock()
	delete(p.pools, matchID)
	p.mu.Unlock()
}

// Snapshot monta o PoolUpdate de um mercado com odds projetadas atuais
func (p *Projection) Snapshot(matchID string, marketIndex int) events.PoolUpdate {
	p.mu.RLock()
	stakes := p.pools[matchID][marketIndex]
	// cópia rasa basta: stakes são imutáveis depois de anexados
	view := make([]market.Stake, len(stakes))
	copy(view, stakes)
	p.mu.RUnlock()

	total, counts := market.PoolStats(view)
	odds := market.ProjectedOdds(view)

	upd := events.PoolUpdate{
		MatchID:     matchID,
		MarketIndex: marketIndex,
		TotalPool:   total,
		WagerCounts: make(map[string]int, len(counts)),
		Odds:        make(map[string]float64, len(odds)),
		TsUnixMs:    time.Now().UnixMilli(),
	}
	for opt, n := range counts {
		upd.WagerCounts[string(opt)] = n
	}
	for opt, r := range odds {
		upd.Odds[string(opt)] = r
	}
	return upd
}
