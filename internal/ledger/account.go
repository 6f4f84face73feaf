package ledger

import (
	"errors"
	"time"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("account not found")
)

// Account é a conta de um participante do bolão
// Saldo nunca fica negativo: débito que estouraria é rejeitado, não truncado
// Conta privilegiada (nome reservado) administra partidas e não aposta
type Account struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"display_name"`
	Balance         int64     `json:"balance"`
	IsPrivileged    bool      `json:"is_privileged"`
	BankruptcyCount int       `json:"bankruptcy_count"`
	CreatedAt       time.Time `json:"created_at"`
}
