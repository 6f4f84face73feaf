package dto

// LoginRequest cria ou recupera a conta pelo nome (case-insensitive)
type LoginRequest struct {
	Name string `json:"name"`
}

// CreateMatchRequest abre uma partida com mercado WINNER + side bets opcionais
// ActorID precisa ser de conta privilegiada
type CreateMatchRequest struct {
	ActorID  string    `json:"actorId"`
	Venue    string    `json:"venue"`
	TeamA    [2]string `json:"teamA"`
	TeamB    [2]string `json:"teamB"`
	SideBets []string  `json:"sideBets,omitempty"`
}

// AdminActionRequest cobre lock e reset de falência: só identifica o ator
type AdminActionRequest struct {
	ActorID string `json:"actorId"`
}

// ResolveMatchRequest liquida a partida: um resultado por índice de mercado
type ResolveMatchRequest struct {
	ActorID string         `json:"actorId"`
	Results map[int]string `json:"results"`
}

// PlaceBetRequest registra uma aposta
type PlaceBetRequest struct {
	AccountID   string `json:"accountId"`
	MatchID     string `json:"matchId"`
	MarketIndex int    `json:"marketIndex"`
	Selection   string `json:"selection"`
	Amount      int64  `json:"amount"`
}
