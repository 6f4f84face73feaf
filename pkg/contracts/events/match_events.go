package events

import "time"

// Evento publicado no feed Redis de partidas em qualquer mudança de status
type MatchChanged struct {
	MatchID  string `json:"match_id"`
	Status   string `json:"status"` // OPEN | LOCKED | FINISHED
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// Linha de payout dentro de uma liquidação
type PayoutLine struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Refund    bool   `json:"refund"` // true quando o pool não teve vencedores
}

// Evento publicado no tópico "match_settled" após todos os créditos aplicados
type MatchSettled struct {
	MatchID      string         `json:"match_id"`
	SettlementID string         `json:"settlement_id"`
	Results      map[int]string `json:"results"` // marketIndex -> opção vencedora
	Payouts      []PayoutLine   `json:"payouts"`
	Ts           time.Time      `json:"ts"`
}
