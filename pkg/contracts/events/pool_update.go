package events

// Snapshot de pool/odds enviado aos clientes WebSocket do odds-stream-service
// Preview não vinculante; recalculado a cada aposta nova
type PoolUpdate struct {
	MatchID     string             `json:"match_id"`
	MarketIndex int                `json:"market_index"`
	TotalPool   int64              `json:"total_pool"`
	WagerCounts map[string]int     `json:"wager_counts"`
	Odds        map[string]float64 `json:"odds"` // opção -> razão projetada
	TsUnixMs    int64              `json:"ts_unix_ms"`
}
