package settlement

import (
	"github.com/Jiang6021/PickleBet/internal/market"
	"github.com/Jiang6021/PickleBet/internal/wager"
)

// ComputeMarket calcula os payouts parimutuel de um mercado isolado
//
// Caso normal: razão = totalPool / winningPool; cada aposta vencedora recebe
// floor(valor * razão) — a divisão inteira fica com o resto fracionário não
// alocado, então a soma dos payouts nunca passa do pool
// Pool sem vencedores: devolve o valor exato de cada aposta do mercado
// Mercado vazio: nenhum payout
func ComputeMarket(wagers []wager.Wager, winning market.Prediction) []Payout {
	var totalPool, winningPool int64
	for _, w := range wagers {
		totalPool += w.Amount
		if w.Selection == winning {
			winningPool += w.Amount
		}
	}

	if totalPool == 0 {
		return nil
	}

	var out []Payout
	if winningPool == 0 {
		// ninguém acertou: odds 1.0 pra todo mundo, a casa não fica com nada
		for _, w := range wagers {
			out = append(out, Payout{
				WagerID:   w.ID,
				AccountID: w.AccountID,
				Amount:    w.Amount,
				Refund:    true,
			})
		}
		return out
	}

	for _, w := range wagers {
		if w.Selection != winning {
			continue // aposta perdedora perde o stake, nada a creditar
		}
		// divisão inteira = floor(valor * total / vencedor), sem float
		out = append(out, Payout{
			WagerID:   w.ID,
			AccountID: w.AccountID,
			Amount:    w.Amount * totalPool / winningPool,
		})
	}
	return out
}

// Compute roda o ComputeMarket por mercado, de forma independente
// wagers já vem agrupável por MarketIndex; results cobre todos os índices
func Compute(m *market.Match, wagers []wager.Wager, results map[int]market.Prediction) []Payout {
	byMarket := make(map[int][]wager.Wager)
	for _, w := range wagers {
		byMarket[w.MarketIndex] = append(byMarket[w.MarketIndex], w)
	}

	var out []Payout
	for idx := range m.Markets {
		winning, ok := results[idx]
		if !ok {
			continue // Resolve valida cobertura total antes de chamar Compute
		}
		out = append(out, ComputeMarket(byMarket[idx], winning)...)
	}
	return out
}
