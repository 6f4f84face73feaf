package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Jiang6021/PickleBet/internal/api/dto"
	"github.com/Jiang6021/PickleBet/internal/ledger"
	"github.com/Jiang6021/PickleBet/internal/market"
	"github.com/Jiang6021/PickleBet/internal/wager"
	"github.com/Jiang6021/PickleBet/pkg/contracts/events"
)

// Venues são as quadras conhecidas do grupo
var Venues = []string{"Court 1", "Court 2"}

// SideBetQuestions é o catálogo de perguntas prontas pros side bets
var SideBetQuestions = []string{
	"Will the total score go over 15 points?",
	"Will the game reach deuce?",
	"Will a serve hit the net more than twice?",
	"Will anyone pull off an ATP (around the post)?",
	"Will a player throw their paddle?",
	"Will the game run longer than 20 minutes?",
}

// login cria (ou recupera) a conta pelo nome, com o stake inicial
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	acc, err := s.accounts.GetOrCreate(r.Context(), req.Name)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

// leaderboard lista contas por saldo; contas privilegiadas ficam de fora
func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	accs, err := s.accounts.Leaderboard(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]dto.AccountResponse, 0, len(accs))
	for _, acc := range accs {
		out = append(out, toAccountResponse(acc))
	}
	writeJSON(w, http.StatusOK, out)
}

// resetBankruptcy devolve o stake inicial e soma uma falência (ação de admin)
func (s *Server) resetBankruptcy(w http.ResponseWriter, r *http.Request) {
	var req dto.AdminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.requirePrivileged(r.Context(), req.ActorID); err != nil {
		s.writeErr(w, err)
		return
	}

	if err := s.accounts.ResetAfterBankruptcy(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	acc, err := s.accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (s *Server) catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.CatalogResponse{
		Venues:           Venues,
		SideBetQuestions: SideBetQuestions,
	})
}

// createMatch abre uma partida OPEN (ação de admin)
func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.requirePrivileged(r.Context(), req.ActorID); err != nil {
		s.writeErr(w, err)
		return
	}

	m, err := market.NewMatch(req.Venue, req.TeamA, req.TeamB, req.SideBets)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.matches.Create(r.Context(), m); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	out, err := s.matches.List(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.matches.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// lockMatch fecha as apostas: OPEN -> LOCKED (ação de admin)
func (s *Server) lockMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.AdminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.requirePrivileged(r.Context(), req.ActorID); err != nil {
		s.writeErr(w, err)
		return
	}

	matchID := chi.URLParam(r, "id")
	if err := s.matches.Lock(r.Context(), matchID); err != nil {
		s.writeErr(w, err)
		return
	}
	if s.announce != nil {
		s.announce.MatchChanged(r.Context(), events.MatchChanged{
			MatchID:  matchID,
			Status:   string(market.StatusLocked),
			TsUnixMs: time.Now().UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(market.StatusLocked)})
}

// resolveMatch liquida a partida: exige um resultado legal por mercado
func (s *Server) resolveMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.requirePrivileged(r.Context(), req.ActorID); err != nil {
		s.writeErr(w, err)
		return
	}

	results := make(map[int]market.Prediction, len(req.Results))
	for idx, sel := range req.Results {
		results[idx] = market.Prediction(sel)
	}

	if err := s.resolver.Resolve(r.Context(), chi.URLParam(r, "id"), results); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(market.StatusFinished)})
}

// getSettlement devolve a liquidação gravada da partida, com os payouts
func (s *Server) getSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := s.settlements.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	ws, err := s.wagers.ListByMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if ws == nil {
		ws = []wager.Wager{}
	}
	writeJSON(w, http.StatusOK, ws)
}

// placeBet admite a aposta: débito + registro numa unidade atômica
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" || req.MatchID == "" || req.Selection == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	wg, err := s.bets.PlaceBet(r.Context(), req.AccountID, req.MatchID, req.MarketIndex,
		market.Prediction(req.Selection), req.Amount)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{WagerID: wg.ID, Status: "ACCEPTED"})
}

// projectedOdds calcula as odds ao vivo direto do conjunto atual de apostas
func (s *Server) projectedOdds(w http.ResponseWriter, r *http.Request) {
	matchID, idx, ok := s.marketRef(w, r)
	if !ok {
		return
	}

	ws, err := s.wagers.ListByMarket(r.Context(), matchID, idx)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	odds := market.ProjectedOdds(wager.Stakes(ws))
	resp := dto.OddsResponse{MatchID: matchID, MarketIndex: idx, Odds: make(map[string]float64, len(odds))}
	for opt, ratio := range odds {
		resp.Odds[string(opt)] = ratio
	}
	writeJSON(w, http.StatusOK, resp)
}

// poolStats agrega pool total e contagens por opção, com cache curto no Redis
func (s *Server) poolStats(w http.ResponseWriter, r *http.Request) {
	matchID, idx, ok := s.marketRef(w, r)
	if !ok {
		return
	}

	if s.pool != nil {
		var cached dto.PoolStatsResponse
		if hit, err := s.pool.Get(r.Context(), matchID, idx, &cached); err == nil && hit {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	ws, err := s.wagers.ListByMarket(r.Context(), matchID, idx)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	total, counts := market.PoolStats(wager.Stakes(ws))
	resp := dto.PoolStatsResponse{
		MatchID:     matchID,
		MarketIndex: idx,
		TotalPool:   total,
		WagerCounts: make(map[string]int, len(counts)),
	}
	for opt, n := range counts {
		resp.WagerCounts[string(opt)] = n
	}

	if s.pool != nil {
		_ = s.pool.Set(r.Context(), matchID, idx, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

// marketRef resolve {id}/{idx} e valida que o mercado existe na partida
func (s *Server) marketRef(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	matchID := chi.URLParam(r, "id")
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		http.Error(w, "invalid market index", http.StatusBadRequest)
		return "", 0, false
	}

	m, err := s.matches.Get(r.Context(), matchID)
	if err != nil {
		s.writeErr(w, err)
		return "", 0, false
	}
	if idx < 0 || idx >= len(m.Markets) {
		s.writeErr(w, market.ErrMarketNotFound)
		return "", 0, false
	}
	return matchID, idx, true
}

func toAccountResponse(acc *ledger.Account) dto.AccountResponse {
	return dto.AccountResponse{
		ID:              acc.ID,
		DisplayName:     acc.DisplayName,
		Balance:         acc.Balance,
		IsPrivileged:    acc.IsPrivileged,
		BankruptcyCount: acc.BankruptcyCount,
	}
}
