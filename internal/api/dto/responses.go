package dto

// AccountResponse é a visão pública de uma conta
type AccountResponse struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	Balance         int64  `json:"balance"`
	IsPrivileged    bool   `json:"isPrivileged"`
	BankruptcyCount int    `json:"bankruptcyCount"`
}

// PlaceBetResponse confirma a aposta admitida com o saldo já debitado
type PlaceBetResponse struct {
	WagerID string `json:"wagerId"`
	Status  string `json:"status"`
}

// OddsResponse traz as odds projetadas por opção (preview não vinculante)
// Opção sem aposta fica fora do mapa
type OddsResponse struct {
	MatchID     string             `json:"matchId"`
	MarketIndex int                `json:"marketIndex"`
	Odds        map[string]float64 `json:"odds"`
}

// PoolStatsResponse é o agregado plano do pool por mercado
type PoolStatsResponse struct {
	MatchID     string         `json:"matchId"`
	MarketIndex int            `json:"marketIndex"`
	TotalPool   int64          `json:"totalPool"`
	WagerCounts map[string]int `json:"wagerCounts"`
}

// CatalogResponse lista quadras e perguntas de side bet pré-definidas
type CatalogResponse struct {
	Venues           []string `json:"venues"`
	SideBetQuestions []string `json:"sideBetQuestions"`
}

// ErrorResponse padroniza corpo de erro da API
type ErrorResponse struct {
	Error string `json:"error"`
}
