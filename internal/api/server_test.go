package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/api"
	"github.com/Jiang6021/PickleBet/internal/api/dto"
	"github.com/Jiang6021/PickleBet/internal/ledger"
	"github.com/Jiang6021/PickleBet/internal/market"
	"github.com/Jiang6021/PickleBet/internal/settlement"
	"github.com/Jiang6021/PickleBet/internal/wager"
)

// fakes em memória pras fatias que o Server consome

type fakeAccounts struct {
	byID map[string]*ledger.Account
}

func (f *fakeAccounts) GetOrCreate(_ context.Context, name string) (*ledger.Account, error) {
	for _, acc := range f.byID {
		if acc.DisplayName == name {
			return acc, nil
		}
	}
	acc := &ledger.Account{ID: "acc-" + name, DisplayName: name, Balance: 1000}
	f.byID[acc.ID] = acc
	return acc, nil
}

func (f *fakeAccounts) Get(_ context.Context, id string) (*ledger.Account, error) {
	acc, ok := f.byID[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return acc, nil
}

func (f *fakeAccounts) ResetAfterBankruptcy(_ context.Context, id string) error {
	acc, ok := f.byID[id]
	if !ok {
		return ledger.ErrNotFound
	}
	acc.Balance = 1000
	acc.BankruptcyCount++
	return nil
}

func (f *fakeAccounts) Leaderboard(context.Context) ([]*ledger.Account, error) {
	var out []*ledger.Account
	for _, acc := range f.byID {
		if !acc.IsPrivileged {
			out = append(out, acc)
		}
	}
	return out, nil
}

type fakeMatches struct {
	byID map[string]*market.Match
}

func (f *fakeMatches) Create(_ context.Context, m *market.Match) error {
	f.byID[m.ID] = m
	return nil
}

func (f *fakeMatches) Get(_ context.Context, id string) (*market.Match, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, market.ErrNotFound
	}
	return m, nil
}

func (f *fakeMatches) List(context.Context) ([]*market.Match, error) {
	var out []*market.Match
	for _, m := range f.byID {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMatches) Lock(_ context.Context, id string) error {
	m, ok := f.byID[id]
	if !ok {
		return market.ErrNotFound
	}
	if m.Status != market.StatusOpen {
		return market.ErrInvalidTransition
	}
	m.Status = market.StatusLocked
	return nil
}

type fakeWagers struct {
	byMatch map[string][]wager.Wager
}

func (f *fakeWagers) ListByMatch(_ context.Context, matchID string) ([]wager.Wager, error) {
	return f.byMatch[matchID], nil
}

func (f *fakeWagers) ListByMarket(_ context.Context, matchID string, idx int) ([]wager.Wager, error) {
	var out []wager.Wager
	for _, w := range f.byMatch[matchID] {
		if w.MarketIndex == idx {
			out = append(out, w)
		}
	}
	return out, nil
}

type fakePlacer struct {
	err  error
	last *wager.Wager
}

func (f *fakePlacer) PlaceBet(_ context.Context, accountID, matchID string, idx int, sel market.Prediction, amount int64) (*wager.Wager, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.last = &wager.Wager{ID: "w1", AccountID: accountID, MatchID: matchID, MarketIndex: idx, Selection: sel, Amount: amount}
	return f.last, nil
}

type fakeResolver struct{ err error }

func (f *fakeResolver) Resolve(context.Context, string, map[int]market.Prediction) error {
	return f.err
}

type fakeSettlements struct {
	byMatch map[string]*settlement.Settlement
}

func (f *fakeSettlements) Get(_ context.Context, matchID string) (*settlement.Settlement, error) {
	s, ok := f.byMatch[matchID]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	return s, nil
}

type testRig struct {
	accounts    *fakeAccounts
	matches     *fakeMatches
	wagers      *fakeWagers
	placer      *fakePlacer
	resolver    *fakeResolver
	settlements *fakeSettlements
	srv         *httptest.Server
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{
		accounts:    &fakeAccounts{byID: make(map[string]*ledger.Account)},
		matches:     &fakeMatches{byID: make(map[string]*market.Match)},
		wagers:      &fakeWagers{byMatch: make(map[string][]wager.Wager)},
		placer:      &fakePlacer{},
		resolver:    &fakeResolver{},
		settlements: &fakeSettlements{byMatch: make(map[string]*settlement.Settlement)},
	}
	s := api.NewServer(zap.NewNop(), rig.accounts, rig.matches, rig.wagers, rig.placer, rig.resolver, rig.settlements, nil, nil)
	rig.srv = httptest.NewServer(s.Router())
	t.Cleanup(rig.srv.Close)
	return rig
}

func (r *testRig) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(r.srv.URL+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (r *testRig) admin() *ledger.Account {
	acc := &ledger.Account{ID: "acc-admin", DisplayName: "admin", IsPrivileged: true}
	r.accounts.byID[acc.ID] = acc
	return acc
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestLogin(t *testing.T) {
	rig := newRig(t)

	resp := rig.post(t, "/v1/login", dto.LoginRequest{Name: "eve"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	acc := decode[dto.AccountResponse](t, resp)
	if acc.DisplayName != "eve" || acc.Balance != 1000 {
		t.Errorf("got %+v, want eve with 1000", acc)
	}

	resp = rig.post(t, "/v1/login", dto.LoginRequest{Name: ""})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty name: got %d, want 400", resp.StatusCode)
	}
}

func TestCreateMatch_RequiresPrivilegedActor(t *testing.T) {
	rig := newRig(t)
	req := dto.CreateMatchRequest{
		Venue: "Court 1",
		TeamA: [2]string{"alice", "bob"},
		TeamB: [2]string{"carol", "dave"},
	}

	// sem ator
	resp := rig.post(t, "/v1/matches", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("no actor: got %d, want 403", resp.StatusCode)
	}

	// ator comum
	eve := &ledger.Account{ID: "acc-eve", DisplayName: "eve"}
	rig.accounts.byID[eve.ID] = eve
	req.ActorID = eve.ID
	resp = rig.post(t, "/v1/matches", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("ordinary actor: got %d, want 403", resp.StatusCode)
	}

	// admin
	req.ActorID = rig.admin().ID
	resp = rig.post(t, "/v1/matches", req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin: got %d, want 201", resp.StatusCode)
	}
	m := decode[market.Match](t, resp)
	if m.Status != market.StatusOpen || len(m.Markets) != 1 {
		t.Errorf("got %+v, want OPEN match with winner market", m)
	}
}

func TestCreateMatch_DuplicatePlayer(t *testing.T) {
	rig := newRig(t)
	resp := rig.post(t, "/v1/matches", dto.CreateMatchRequest{
		ActorID: rig.admin().ID,
		Venue:   "Court 1",
		TeamA:   [2]string{"alice", "alice"},
		TeamB:   [2]string{"carol", "dave"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("got %d, want 422", resp.StatusCode)
	}
}

func TestLockMatch(t *testing.T) {
	rig := newRig(t)
	admin := rig.admin()
	m, _ := market.NewMatch("Court 1", [2]string{"a", "b"}, [2]string{"c", "d"}, nil)
	rig.matches.byID[m.ID] = m

	resp := rig.post(t, "/v1/matches/"+m.ID+"/lock", dto.AdminActionRequest{ActorID: admin.ID})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	if m.Status != market.StatusLocked {
		t.Errorf("status: got %s, want LOCKED", m.Status)
	}

	// segundo lock é conflito
	resp = rig.post(t, "/v1/matches/"+m.ID+"/lock", dto.AdminActionRequest{ActorID: admin.ID})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double lock: got %d, want 409", resp.StatusCode)
	}
}

func TestPlaceBet_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient funds", ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"market closed", wager.ErrMarketClosed, http.StatusConflict},
		{"self betting", wager.ErrSelfBetting, http.StatusForbidden},
		{"privileged bettor", wager.ErrPrivilegedBettor, http.StatusForbidden},
		{"bad amount", wager.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"bad selection", market.ErrInvalidSelection, http.StatusUnprocessableEntity},
		{"missing match", market.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rig := newRig(t)
			rig.placer.err = tc.err

			resp := rig.post(t, "/v1/bets", dto.PlaceBetRequest{
				AccountID: "acc-eve", MatchID: "m1", Selection: "TEAM_A", Amount: 100,
			})
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("got %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestPlaceBet_Accepted(t *testing.T) {
	rig := newRig(t)

	resp := rig.post(t, "/v1/bets", dto.PlaceBetRequest{
		AccountID: "acc-eve", MatchID: "m1", MarketIndex: 0, Selection: "TEAM_A", Amount: 100,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("got %d, want 201", resp.StatusCode)
	}
	out := decode[dto.PlaceBetResponse](t, resp)
	if out.Status != "ACCEPTED" || out.WagerID == "" {
		t.Errorf("got %+v", out)
	}
}

func TestProjectedOdds_Endpoint(t *testing.T) {
	rig := newRig(t)
	m, _ := market.NewMatch("Court 1", [2]string{"a", "b"}, [2]string{"c", "d"}, nil)
	rig.matches.byID[m.ID] = m
	rig.wagers.byMatch[m.ID] = []wager.Wager{
		{MatchID: m.ID, MarketIndex: 0, Selection: market.TeamA, Amount: 200},
		{MatchID: m.ID, MarketIndex: 0, Selection: market.TeamB, Amount: 100},
		{MatchID: m.ID, MarketIndex: 0, Selection: market.TeamB, Amount: 100},
	}

	resp, err := http.Get(rig.srv.URL + "/v1/matches/" + m.ID + "/markets/0/odds")
	if err != nil {
		t.Fatalf("GET odds: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	out := decode[dto.OddsResponse](t, resp)
	if out.Odds["TEAM_A"] != 2.0 || out.Odds["TEAM_B"] != 2.0 {
		t.Errorf("odds: got %v, want 2.0 / 2.0", out.Odds)
	}

	// índice fora do alcance
	resp, err = http.Get(rig.srv.URL + "/v1/matches/" + m.ID + "/markets/5/odds")
	if err != nil {
		t.Fatalf("GET odds: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("bad index: got %d, want 404", resp.StatusCode)
	}
}

func TestGetSettlement(t *testing.T) {
	rig := newRig(t)

	resp, err := http.Get(rig.srv.URL + "/v1/matches/m1/settlement")
	if err != nil {
		t.Fatalf("GET settlement: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unresolved match: got %d, want 404", resp.StatusCode)
	}

	rig.settlements.byMatch["m1"] = &settlement.Settlement{
		ID:      "s1",
		MatchID: "m1",
		Status:  settlement.StatusApplied,
		Payouts: []settlement.Payout{{AccountID: "acc-bob", Amount: 200}},
	}
	resp, err = http.Get(rig.srv.URL + "/v1/matches/m1/settlement")
	if err != nil {
		t.Fatalf("GET settlement: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	out := decode[settlement.Settlement](t, resp)
	if out.Status != settlement.StatusApplied || len(out.Payouts) != 1 {
		t.Errorf("got %+v", out)
	}
}

func TestResetBankruptcy(t *testing.T) {
	rig := newRig(t)
	admin := rig.admin()
	eve := &ledger.Account{ID: "acc-eve", DisplayName: "eve", Balance: 0}
	rig.accounts.byID[eve.ID] = eve

	resp := rig.post(t, "/v1/accounts/"+eve.ID+"/bankruptcy", dto.AdminActionRequest{ActorID: admin.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want 200", resp.StatusCode)
	}
	out := decode[dto.AccountResponse](t, resp)
	if out.Balance != 1000 || out.BankruptcyCount != 1 {
		t.Errorf("got %+v, want balance 1000 and one bankruptcy", out)
	}
}
