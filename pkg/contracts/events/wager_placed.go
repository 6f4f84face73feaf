package events

// Evento publicado no tópico "wager_placed" e no feed Redis de apostas
// a cada aposta admitida (débito + registro já confirmados no store)
type WagerPlaced struct {
	WagerID     string `json:"wager_id"`
	AccountID   string `json:"account_id"`
	MatchID     string `json:"match_id"`
	MarketIndex int    `json:"market_index"`
	Selection   string `json:"selection"` // TEAM_A | TEAM_B | YES | NO
	Amount      int64  `json:"amount"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
