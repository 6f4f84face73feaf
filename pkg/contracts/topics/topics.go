package topics

const (
	// Apostas
	WagerPlaced = "wager_placed"

	// Liquidações
	MatchSettled = "match_settled"

	// DLQ
	WagerPlacedDLQ = "wager_placed_dlq"
)
