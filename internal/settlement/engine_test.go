package settlement_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	lrepo "github.com/Jiang6021/PickleBet/internal/ledger/repo"
	"github.com/Jiang6021/PickleBet/internal/market"
	mrepo "github.com/Jiang6021/PickleBet/internal/market/repo"
	"github.com/Jiang6021/PickleBet/internal/settlement"
	srepo "github.com/Jiang6021/PickleBet/internal/settlement/repo"
	sharedb "github.com/Jiang6021/PickleBet/internal/shared/db"
	"github.com/Jiang6021/PickleBet/internal/wager"
	wrepo "github.com/Jiang6021/PickleBet/internal/wager/repo"
)

// Testes de integração das três fases da liquidação contra um Postgres real
// com o schema migrado (cmd/migrator). Sem PICKLEBET_TEST_PG_DSN são pulados.
type rig struct {
	db       *sql.DB
	accounts *lrepo.Postgres
	matches  *mrepo.Postgres
	wagers   *wrepo.Postgres
	intents  *srepo.Postgres
	engine   *settlement.Engine
}

func newRig(t *testing.T) *rig {
	t.Helper()
	dsn := os.Getenv("PICKLEBET_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PICKLEBET_TEST_PG_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	r := &rig{
		db:       db,
		accounts: lrepo.NewPostgres(db, 1000, "admin"),
		matches:  mrepo.NewPostgres(db),
		wagers:   wrepo.NewPostgres(db),
		intents:  srepo.NewPostgres(db),
	}
	r.engine = settlement.NewEngine(zap.NewNop(), db, r.matches, r.wagers, r.accounts, r.intents, nil)
	return r
}

func (r *rig) account(t *testing.T, prefix string) string {
	t.Helper()
	acc, err := r.accounts.GetOrCreate(context.Background(),
		fmt.Sprintf("%s-%08x", prefix, rand.Uint32()))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return acc.ID
}

func (r *rig) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	acc, err := r.accounts.Get(context.Background(), accountID)
	if err != nil {
		t.Fatalf("Get account: %v", err)
	}
	return acc.Balance
}

// lockedMatch cria a partida, registra as apostas (débito+registro atômicos)
// e fecha as apostas
func (r *rig) lockedMatch(t *testing.T, bets []wager.Wager) *market.Match {
	t.Helper()
	ctx := context.Background()

	m, err := market.NewMatch("Court 1",
		[2]string{uuid.NewString(), uuid.NewString()},
		[2]string{uuid.NewString(), uuid.NewString()}, nil)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	if err := r.matches.Create(ctx, m); err != nil {
		t.Fatalf("Create match: %v", err)
	}

	for i := range bets {
		w := bets[i]
		w.ID = uuid.NewString()
		w.MatchID = m.ID
		w.PlacedAt = time.Now().UTC()
		err := sharedb.WithTx(ctx, r.db, func(tx *sql.Tx) error {
			if _, err := r.accounts.ApplyDeltaTx(ctx, tx, w.AccountID, -w.Amount); err != nil {
				return err
			}
			return r.wagers.InsertTx(ctx, tx, &w)
		})
		if err != nil {
			t.Fatalf("place wager: %v", err)
		}
	}

	if err := r.matches.Lock(ctx, m.ID); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	return m
}

// pendingIntent grava resultados + intent PENDING sem aplicar nenhum crédito,
// como se o processo tivesse caído logo depois da fase 1
func (r *rig) pendingIntent(t *testing.T, m *market.Match, results map[int]market.Prediction) *settlement.Settlement {
	t.Helper()
	ctx := context.Background()

	ws, err := r.wagers.ListByMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("ListByMatch: %v", err)
	}

	intent := &settlement.Settlement{
		ID:        uuid.NewString(),
		MatchID:   m.ID,
		Status:    settlement.StatusPending,
		CreatedAt: time.Now().UTC(),
		Payouts:   settlement.Compute(m, ws, results),
	}
	for i := range intent.Payouts {
		intent.Payouts[i].ID = uuid.NewString()
		intent.Payouts[i].SettlementID = intent.ID
	}

	err = sharedb.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.matches.SetResultsTx(ctx, tx, m.ID, results); err != nil {
			return err
		}
		return r.intents.InsertTx(ctx, tx, intent)
	})
	if err != nil {
		t.Fatalf("write intent: %v", err)
	}
	return intent
}

func TestEngine_ResolveCreditsAndFinishes(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	alice := r.account(t, "alice")
	bob := r.account(t, "bob")
	carol := r.account(t, "carol")

	m := r.lockedMatch(t, []wager.Wager{
		{AccountID: alice, MarketIndex: 0, Selection: market.TeamA, Amount: 200},
		{AccountID: bob, MarketIndex: 0, Selection: market.TeamB, Amount: 100},
		{AccountID: carol, MarketIndex: 0, Selection: market.TeamB, Amount: 100},
	})

	if err := r.engine.Resolve(ctx, m.ID, map[int]market.Prediction{0: market.TeamB}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// razão 400/200 = 2.0: bob e carol recebem 200 cada, alice nada
	if got := r.balance(t, alice); got != 800 {
		t.Errorf("alice: got %d, want 800", got)
	}
	if got := r.balance(t, bob); got != 1100 {
		t.Errorf("bob: got %d, want 1100", got)
	}
	if got := r.balance(t, carol); got != 1100 {
		t.Errorf("carol: got %d, want 1100", got)
	}

	after, err := r.matches.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get match: %v", err)
	}
	if after.Status != market.StatusFinished {
		t.Errorf("status: got %s, want FINISHED", after.Status)
	}

	s, err := r.intents.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get settlement: %v", err)
	}
	if s.Status != settlement.StatusApplied {
		t.Errorf("settlement: got %s, want APPLIED", s.Status)
	}

	// re-resolução de partida FINISHED falha sem efeito
	err = r.engine.Resolve(ctx, m.ID, map[int]market.Prediction{0: market.TeamA})
	if !errors.Is(err, market.ErrInvalidTransition) {
		t.Errorf("re-resolve: got %v, want ErrInvalidTransition", err)
	}
	if got := r.balance(t, bob); got != 1100 {
		t.Errorf("bob after re-resolve: got %d, want 1100 untouched", got)
	}
}

func TestEngine_RecoverPendingAppliesEachPayoutOnce(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	alice := r.account(t, "alice")
	bob := r.account(t, "bob")
	carol := r.account(t, "carol")

	m := r.lockedMatch(t, []wager.Wager{
		{AccountID: alice, MarketIndex: 0, Selection: market.TeamA, Amount: 300},
		{AccountID: carol, MarketIndex: 0, Selection: market.TeamA, Amount: 100},
		{AccountID: bob, MarketIndex: 0, Selection: market.TeamB, Amount: 100},
	})
	intent := r.pendingIntent(t, m, map[int]market.Prediction{0: market.TeamA})
	if len(intent.Payouts) != 2 {
		t.Fatalf("payouts: got %d, want 2", len(intent.Payouts))
	}

	// queda no meio da fase 2: um payout já foi aplicado, o resto não
	first := intent.Payouts[0]
	err := sharedb.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		claimed, err := r.intents.ClaimPayoutTx(ctx, tx, first.ID)
		if err != nil {
			return err
		}
		if !claimed {
			t.Fatal("first payout should be claimable")
		}
		_, err = r.accounts.ApplyDeltaTx(ctx, tx, first.AccountID, first.Amount)
		return err
	})
	if err != nil {
		t.Fatalf("partial apply: %v", err)
	}

	before, err := r.matches.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get match: %v", err)
	}
	if before.Status != market.StatusLocked {
		t.Fatalf("status before replay: got %s, want still LOCKED", before.Status)
	}

	if err := r.engine.RecoverPending(ctx); err != nil {
		t.Fatalf("RecoverPending: %v", err)
	}

	// razão 500/400 com floor: alice 375, carol 125; o payout pré-aplicado
	// não pode ter sido creditado de novo
	if got := r.balance(t, alice); got != 1075 {
		t.Errorf("alice: got %d, want 1075", got)
	}
	if got := r.balance(t, carol); got != 1125 {
		t.Errorf("carol: got %d, want 1125", got)
	}
	if got := r.balance(t, bob); got != 900 {
		t.Errorf("bob: got %d, want 900", got)
	}

	after, err := r.matches.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get match: %v", err)
	}
	if after.Status != market.StatusFinished {
		t.Errorf("status after replay: got %s, want FINISHED", after.Status)
	}

	// replay do replay: nada muda
	if err := r.engine.RecoverPending(ctx); err != nil {
		t.Fatalf("second RecoverPending: %v", err)
	}
	if got := r.balance(t, alice); got != 1075 {
		t.Errorf("alice after second replay: got %d, want 1075", got)
	}
	if got := r.balance(t, carol); got != 1125 {
		t.Errorf("carol after second replay: got %d, want 1125", got)
	}
	if got := r.balance(t, bob); got != 900 {
		t.Errorf("bob after second replay: got %d, want 900", got)
	}
}

func TestEngine_ResolveResumesPendingIntent(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	alice := r.account(t, "alice")
	bob := r.account(t, "bob")

	m := r.lockedMatch(t, []wager.Wager{
		{AccountID: alice, MarketIndex: 0, Selection: market.TeamA, Amount: 100},
		{AccountID: bob, MarketIndex: 0, Selection: market.TeamB, Amount: 100},
	})
	r.pendingIntent(t, m, map[int]market.Prediction{0: market.TeamA})

	// intent já existe: o resolve retoma a aplicação em vez de falhar
	if err := r.engine.Resolve(ctx, m.ID, map[int]market.Prediction{0: market.TeamA}); err != nil {
		t.Fatalf("Resolve over pending intent: %v", err)
	}

	if got := r.balance(t, alice); got != 1100 {
		t.Errorf("alice: got %d, want 1100", got)
	}
	if got := r.balance(t, bob); got != 900 {
		t.Errorf("bob: got %d, want 900", got)
	}

	after, err := r.matches.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get match: %v", err)
	}
	if after.Status != market.StatusFinished {
		t.Errorf("status: got %s, want FINISHED", after.Status)
	}
}
