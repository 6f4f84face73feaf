package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/api/dto"
	"github.com/Jiang6021/PickleBet/internal/ledger"
	"github.com/Jiang6021/PickleBet/internal/market"
	"github.com/Jiang6021/PickleBet/internal/settlement"
	"github.com/Jiang6021/PickleBet/internal/shared/cache"
	sharedb "github.com/Jiang6021/PickleBet/internal/shared/db"
	"github.com/Jiang6021/PickleBet/internal/wager"
	"github.com/Jiang6021/PickleBet/pkg/contracts/events"
)

// Accounts é a fatia do Account Manager exposta pela API
type Accounts interface {
	GetOrCreate(ctx context.Context, name string) (*ledger.Account, error)
	Get(ctx context.Context, accountID string) (*ledger.Account, error)
	ResetAfterBankruptcy(ctx context.Context, accountID string) error
	Leaderboard(ctx context.Context) ([]*ledger.Account, error)
}

// Matches é a fatia do Market Engine exposta pela API
type Matches interface {
	Create(ctx context.Context, m *market.Match) error
	Get(ctx context.Context, matchID string) (*market.Match, error)
	List(ctx context.Context) ([]*market.Match, error)
	Lock(ctx context.Context, matchID string) error
}

// Wagers lista apostas registradas
type Wagers interface {
	ListByMatch(ctx context.Context, matchID string) ([]wager.Wager, error)
	ListByMarket(ctx context.Context, matchID string, marketIndex int) ([]wager.Wager, error)
}

// BetPlacer admite apostas (Wager Processor)
type BetPlacer interface {
	PlaceBet(ctx context.Context, accountID, matchID string, marketIndex int, selection market.Prediction, amount int64) (*wager.Wager, error)
}

// Resolver liquida partidas (Settlement Engine)
type Resolver interface {
	Resolve(ctx context.Context, matchID string, results map[int]market.Prediction) error
}

// Settlements consulta liquidações já gravadas
type Settlements interface {
	Get(ctx context.Context, matchID string) (*settlement.Settlement, error)
}

// Announcer publica mudanças de partida no feed (lock vindo da API)
type Announcer interface {
	MatchChanged(ctx context.Context, ev events.MatchChanged)
}

// Server expõe o conjunto de operações do bolão via HTTP/JSON
type Server struct {
	log         *zap.Logger
	accounts    Accounts
	matches     Matches
	wagers      Wagers
	bets        BetPlacer
	resolver    Resolver
	settlements Settlements
	announce    Announcer
	pool        *cache.PoolCache // opcional; nil desliga o cache de agregados
}

func NewServer(log *zap.Logger, a Accounts, m Matches, w Wagers, b BetPlacer, r Resolver, st Settlements, an Announcer, pool *cache.PoolCache) *Server {
	return &Server{log: log, accounts: a, matches: m, wagers: w, bets: b, resolver: r, settlements: st, announce: an, pool: pool}
}

// Router monta as rotas da API v1
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/v1/login", s.login)
	r.Get("/v1/accounts/{id}", s.getAccount)
	r.Get("/v1/leaderboard", s.leaderboard)
	r.Post("/v1/accounts/{id}/bankruptcy", s.resetBankruptcy)

	r.Get("/v1/catalog", s.catalog)

	r.Post("/v1/matches", s.createMatch)
	r.Get("/v1/matches", s.listMatches)
	r.Get("/v1/matches/{id}", s.getMatch)
	r.Post("/v1/matches/{id}/lock", s.lockMatch)
	r.Post("/v1/matches/{id}/resolve", s.resolveMatch)
	r.Get("/v1/matches/{id}/bets", s.listBets)
	r.Get("/v1/matches/{id}/settlement", s.getSettlement)
	r.Get("/v1/matches/{id}/markets/{idx}/odds", s.projectedOdds)
	r.Get("/v1/matches/{id}/markets/{idx}/pool", s.poolStats)

	r.Post("/v1/bets", s.placeBet)

	return r
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr mapeia os erros de negócio pro status HTTP correspondente
// Erros de negócio voltam verbatim; nada é silenciosamente corrigido
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, market.ErrNotFound),
		errors.Is(err, market.ErrMarketNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, settlement.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, market.ErrInvalidTransition),
		errors.Is(err, settlement.ErrAlreadySettling),
		errors.Is(err, wager.ErrMarketClosed):
		status = http.StatusConflict
	case errors.Is(err, market.ErrDuplicatePlayer),
		errors.Is(err, market.ErrInvalidSelection),
		errors.Is(err, wager.ErrInvalidAmount),
		errors.Is(err, settlement.ErrIncompleteResolution):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, wager.ErrSelfBetting),
		errors.Is(err, wager.ErrPrivilegedBettor),
		errors.Is(err, errNotPrivileged):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, sharedb.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.log.Error("unexpected api error", zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
}

var errNotPrivileged = errors.New("operation requires a privileged account")

// requirePrivileged confere se o ator existe e é privilegiado
func (s *Server) requirePrivileged(ctx context.Context, actorID string) error {
	if actorID == "" {
		return errNotPrivileged
	}
	acc, err := s.accounts.Get(ctx, actorID)
	if err != nil {
		return err
	}
	if !acc.IsPrivileged {
		return errNotPrivileged
	}
	return nil
}
