package settlement

import (
	"errors"
	"time"
)

var (
	ErrIncompleteResolution = errors.New("resolution must cover every market")
	ErrAlreadySettling      = errors.New("settlement already recorded for match")
	ErrNotFound             = errors.New("settlement not found")
)

type Status string

const (
	StatusPending Status = "PENDING" // intent gravada, créditos ainda não (todos) aplicados
	StatusApplied Status = "APPLIED" // todos os créditos aplicados, partida FINISHED
)

// Settlement é o registro write-ahead de uma liquidação
// Gravado com os payouts já calculados ANTES de qualquer crédito,
// permitindo replay idempotente se o processo cair no meio
type Settlement struct {
	ID        string     `json:"id"`
	MatchID   string     `json:"match_id"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	Payouts   []Payout   `json:"payouts"`
}

// Payout é um crédito individual calculado na liquidação
// Refund marca devolução de aposta em pool sem vencedores
type Payout struct {
	ID           string `json:"id"`
	SettlementID string `json:"settlement_id"`
	WagerID      string `json:"wager_id"`
	AccountID    string `json:"account_id"`
	Amount       int64  `json:"amount"`
	Refund       bool   `json:"refund"`
	Applied      bool   `json:"applied"`
}
