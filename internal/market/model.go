package market

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("match not found")
	ErrMarketNotFound    = errors.New("market not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicatePlayer   = errors.New("duplicate player")
	ErrInvalidSelection  = errors.New("invalid selection")
)

// Prediction é o tipo fechado de resultado possível de um mercado
// WINNER aceita só TEAM_A/TEAM_B; SIDE_BET aceita só YES/NO
type Prediction string

const (
	TeamA Prediction = "TEAM_A"
	TeamB Prediction = "TEAM_B"
	Yes   Prediction = "YES"
	No    Prediction = "NO"
)

type MarketKind string

const (
	KindWinner  MarketKind = "WINNER"
	KindSideBet MarketKind = "SIDE_BET"
)

type MatchStatus string

const (
	StatusOpen     MatchStatus = "OPEN"
	StatusLocked   MatchStatus = "LOCKED"
	StatusFinished MatchStatus = "FINISHED"
)

// CanTransition valida a máquina de estados OPEN -> LOCKED -> FINISHED
// Nenhum estado é pulado nem revertido
func (s MatchStatus) CanTransition(to MatchStatus) bool {
	switch s {
	case StatusOpen:
		return to == StatusLocked
	case StatusLocked:
		return to == StatusFinished
	default:
		return false
	}
}

// Market é um dos mercados apostáveis de uma partida
// O índice dentro da partida é a chave de endereçamento usada pelas apostas
type Market struct {
	Question string        `json:"question"`
	Kind     MarketKind    `json:"kind"`
	Options  [2]Prediction `json:"options"`
	Result   *Prediction   `json:"result,omitempty"` // imutável depois da liquidação
}

// Accepts informa se a opção é válida para este mercado
func (m Market) Accepts(p Prediction) bool {
	return m.Options[0] == p || m.Options[1] == p
}

// Match é uma partida de duplas com seus mercados ordenados
// Nunca é apagada; vira histórico depois de FINISHED
type Match struct {
	ID        string      `json:"id"`
	Venue     string      `json:"venue"`
	TeamA     [2]string   `json:"team_a"`
	TeamB     [2]string   `json:"team_b"`
	Status    MatchStatus `json:"status"`
	Markets   []Market    `json:"markets"`
	CreatedAt time.Time   `json:"created_at"`
}

// Players retorna os quatro jogadores da partida
func (m *Match) Players() [4]string {
	return [4]string{m.TeamA[0], m.TeamA[1], m.TeamB[0], m.TeamB[1]}
}

// HasPlayer confere se o nome (case-insensitive) joga nesta partida
func (m *Match) HasPlayer(name string) bool {
	for _, p := range m.Players() {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}
