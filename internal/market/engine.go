package market

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WinnerQuestion é a pergunta fixa do mercado 0 de toda partida
const WinnerQuestion = "Winner"

// NewMatch monta uma partida OPEN com o mercado WINNER no índice 0
// e um SIDE_BET por pergunta, na ordem recebida
// Falha com ErrDuplicatePlayer se os quatro nomes não forem distintos
func NewMatch(venue string, teamA, teamB [2]string, sideBetQuestions []string) (*Match, error) {
	players := [4]string{teamA[0], teamA[1], teamB[0], teamB[1]}
	for i := 0; i < len(players); i++ {
		for j := i + 1; j < len(players); j++ {
			if strings.EqualFold(players[i], players[j]) {
				return nil, ErrDuplicatePlayer
			}
		}
	}

	markets := []Market{{
		Question: WinnerQuestion,
		Kind:     KindWinner,
		Options:  [2]Prediction{TeamA, TeamB},
	}}
	for _, q := range sideBetQuestions {
		markets = append(markets, Market{
			Question: q,
			Kind:     KindSideBet,
			Options:  [2]Prediction{Yes, No},
		})
	}

	return &Match{
		ID:        uuid.NewString(),
		Venue:     venue,
		TeamA:     teamA,
		TeamB:     teamB,
		Status:    StatusOpen,
		Markets:   markets,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Stake é a visão mínima de uma aposta usada pelos agregados de pool
type Stake struct {
	Selection Prediction
	Amount    int64
}

// ProjectedOdds calcula a razão projetada por opção: totalPool / pool da opção
// Opção sem aposta fica fora do mapa (sem dado, não "infinito")
// Pool vazio retorna mapa vazio
// Preview vivo e não vinculante; recalculado a cada chamada
func ProjectedOdds(stakes []Stake) map[Prediction]float64 {
	odds := make(map[Prediction]float64)
	if len(stakes) == 0 {
		return odds
	}

	var total int64
	perOption := make(map[Prediction]int64)
	for _, s := range stakes {
		total += s.Amount
		perOption[s.Selection] += s.Amount
	}
	if total == 0 {
		return odds
	}

	for opt, pool := range perOption {
		if pool > 0 {
			odds[opt] = float64(total) / float64(pool)
		}
	}
	return odds
}

// PoolStats agrega o pool total e a contagem de apostas por opção
// Só soma e conta; nenhuma regra de negócio
func PoolStats(stakes []Stake) (totalPool int64, perOptionCount map[Prediction]int) {
	perOptionCount = make(map[Prediction]int)
	for _, s := range stakes {
		totalPool += s.Amount
		perOptionCount[s.Selection]++
	}
	return totalPool, perOptionCount
}
