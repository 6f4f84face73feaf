package wager_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/ledger"
	"github.com/Jiang6021/PickleBet/internal/market"
	sharedb "github.com/Jiang6021/PickleBet/internal/shared/db"
	"github.com/Jiang6021/PickleBet/internal/wager"
)

func openMatch(t *testing.T) *market.Match {
	t.Helper()
	m, err := market.NewMatch("Court 1",
		[2]string{"alice", "bob"}, [2]string{"carol", "dave"},
		[]string{"Will any game reach 11-0?"})
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return m
}

func bettor(name string) *ledger.Account {
	return &ledger.Account{ID: "acc-" + name, DisplayName: name, Balance: 1000}
}

func TestValidate_Admits(t *testing.T) {
	m := openMatch(t)
	if err := wager.Validate(m, bettor("eve"), 0, market.TeamA, 100); err != nil {
		t.Errorf("valid bet rejected: %v", err)
	}
	if err := wager.Validate(m, bettor("eve"), 1, market.Yes, 1); err != nil {
		t.Errorf("valid side bet rejected: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	m := openMatch(t)
	locked := openMatch(t)
	locked.Status = market.StatusLocked

	admin := bettor("admin")
	admin.IsPrivileged = true

	cases := []struct {
		name    string
		m       *market.Match
		acc     *ledger.Account
		idx     int
		sel     market.Prediction
		amount  int64
		wantErr error
	}{
		{"market index out of range", m, bettor("eve"), 2, market.TeamA, 100, market.ErrMarketNotFound},
		{"negative index", m, bettor("eve"), -1, market.TeamA, 100, market.ErrMarketNotFound},
		{"match not open", locked, bettor("eve"), 0, market.TeamA, 100, wager.ErrMarketClosed},
		{"selection illegal for winner", m, bettor("eve"), 0, market.Yes, 100, market.ErrInvalidSelection},
		{"selection illegal for side bet", m, bettor("eve"), 1, market.TeamA, 100, market.ErrInvalidSelection},
		{"zero amount", m, bettor("eve"), 0, market.TeamA, 0, wager.ErrInvalidAmount},
		{"negative amount", m, bettor("eve"), 0, market.TeamA, -5, wager.ErrInvalidAmount},
		{"player bets own match", m, bettor("alice"), 0, market.TeamA, 100, wager.ErrSelfBetting},
		{"player bets own match, other case", m, bettor("CAROL"), 0, market.TeamB, 100, wager.ErrSelfBetting},
		{"privileged account", m, admin, 0, market.TeamA, 100, wager.ErrPrivilegedBettor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := wager.Validate(tc.m, tc.acc, tc.idx, tc.sel, tc.amount)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_CheckOrder(t *testing.T) {
	// índice inválido ganha de qualquer outro problema da mesma requisição
	m := openMatch(t)
	m.Status = market.StatusLocked

	err := wager.Validate(m, bettor("alice"), 9, market.Yes, -1)
	if !errors.Is(err, market.ErrMarketNotFound) {
		t.Errorf("got %v, want ErrMarketNotFound first", err)
	}

	// com índice válido, status fechado vem antes de seleção/valor
	err = wager.Validate(m, bettor("alice"), 0, market.Yes, -1)
	if !errors.Is(err, wager.ErrMarketClosed) {
		t.Errorf("got %v, want ErrMarketClosed before selection/amount", err)
	}
}

func TestRejectionReason_ClosedSet(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{market.ErrNotFound, "match_not_found"},
		{market.ErrMarketNotFound, "market_not_found"},
		{market.ErrInvalidSelection, "invalid_selection"},
		{wager.ErrMarketClosed, "market_closed"},
		{wager.ErrInvalidAmount, "invalid_amount"},
		{wager.ErrSelfBetting, "self_betting"},
		{wager.ErrPrivilegedBettor, "privileged_bettor"},
		{ledger.ErrNotFound, "account_not_found"},
		{ledger.ErrInsufficientFunds, "insufficient_funds"},
		{sharedb.ErrUnavailable, "store_unavailable"},
		// erros de store vêm embrulhados com o detalhe de rede
		{fmt.Errorf("%w: dial tcp 10.0.0.7:5432: timeout", sharedb.ErrUnavailable), "store_unavailable"},
		{errors.New("anything else"), "other"},
	}
	for _, tc := range cases {
		if got := wager.RejectionReason(tc.err); got != tc.want {
			t.Errorf("%v: got %q, want %q", tc.err, got, tc.want)
		}
	}
}

type fakeMatchStore struct{ m *market.Match }

func (f *fakeMatchStore) Get(context.Context, string) (*market.Match, error) { return f.m, nil }
func (f *fakeMatchStore) StatusForShareTx(context.Context, *sql.Tx, string) (market.MatchStatus, error) {
	return f.m.Status, nil
}

type fakeAccountStore struct{ acc *ledger.Account }

func (f *fakeAccountStore) Get(context.Context, string) (*ledger.Account, error) {
	return f.acc, nil
}
func (f *fakeAccountStore) ApplyDeltaTx(context.Context, *sql.Tx, string, int64) (int64, error) {
	return 0, nil
}

func TestPlaceBet_RejectionFeedsNormalizedReason(t *testing.T) {
	m := openMatch(t)
	p := wager.NewProcessor(zap.NewNop(), nil,
		&fakeMatchStore{m: m}, &fakeAccountStore{acc: bettor("eve")}, nil, nil)

	var reasons []string
	p.OnRejected = func(reason string) { reasons = append(reasons, reason) }

	if _, err := p.PlaceBet(context.Background(), "acc-eve", m.ID, 0, market.TeamA, -10); !errors.Is(err, wager.ErrInvalidAmount) {
		t.Fatalf("got %v, want ErrInvalidAmount", err)
	}
	if len(reasons) != 1 || reasons[0] != "invalid_amount" {
		t.Errorf("reasons: got %v, want [invalid_amount]", reasons)
	}
}

func TestStakes(t *testing.T) {
	ws := []wager.Wager{
		{Selection: market.TeamA, Amount: 200},
		{Selection: market.TeamB, Amount: 100},
	}
	stakes := wager.Stakes(ws)
	if len(stakes) != 2 {
		t.Fatalf("got %d stakes, want 2", len(stakes))
	}
	if stakes[0] != (market.Stake{Selection: market.TeamA, Amount: 200}) {
		t.Errorf("stake 0: got %+v", stakes[0])
	}
}
