package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/Jiang6021/PickleBet/internal/shared/kafka"
	"github.com/Jiang6021/PickleBet/pkg/contracts/events"
)

// Worker consome os tópicos de apostas e liquidações e grava a trilha
// de auditoria append-only no Postgres
// Mensagens que não decodificam vão pra DLQ em vez de travar o consumo
type Worker struct {
	Log           *zap.Logger
	WagerReader   *kafka.Reader
	SettledReader *kafka.Reader
	DLQWriter     *kafka.Writer
	DB            *sql.DB

	OnRecord func(kind string) // métricas (counter++)
	OnError  func(string)      // métricas por fase
}

// Run inicia os dois loops de consumo; retorna quando o contexto cair
func (w *Worker) Run(ctx context.Context) error {
	errc := make(chan error, 2)
	go func() { errc <- w.consumeWagers(ctx) }()
	go func() { errc <- w.consumeSettlements(ctx) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errc:
		return err
	}
}

func (w *Worker) consumeWagers(ctx context.Context) error {
	for {
		m, err := w.WagerReader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka read wager_placed", zap.Error(err))
			w.onError("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var ev events.WagerPlaced
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			w.Log.Warn("invalid wager_placed message", zap.Error(err))
			w.onError("decode")
			w.toDLQ(ctx, m)
			continue
		}

		_, err = w.DB.ExecContext(ctx, `
			INSERT INTO bet_audit (wager_id, account_id, match_id, market_index, selection, amount, placed_ts)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (wager_id) DO NOTHING`,
			ev.WagerID, ev.AccountID, ev.MatchID, ev.MarketIndex, ev.Selection, ev.Amount,
			time.UnixMilli(ev.TsUnixMs),
		)
		if err != nil {
			w.Log.Warn("bet_audit insert", zap.Error(err))
			w.onError("db")
			continue
		}
		if w.OnRecord != nil {
			w.OnRecord("bet")
		}
	}
}

func (w *Worker) consumeSettlements(ctx context.Context) error {
	for {
		m, err := w.SettledReader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka read match_settled", zap.Error(err))
			w.onError("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var ev events.MatchSettled
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			w.Log.Warn("invalid match_settled message", zap.Error(err))
			w.onError("decode")
			continue
		}

		// payload inteiro vai como jsonb: liquidação é histórico imutável
		_, err = w.DB.ExecContext(ctx, `
			INSERT INTO settlement_audit (settlement_id, match_id, payload, settled_ts)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (settlement_id) DO NOTHING`,
			ev.SettlementID, ev.MatchID, m.Value, ev.Ts,
		)
		if err != nil {
			w.Log.Warn("settlement_audit insert", zap.Error(err))
			w.onError("db")
			continue
		}
		if w.OnRecord != nil {
			w.OnRecord("settlement")
		}
	}
}

func (w *Worker) toDLQ(ctx context.Context, m kafka.Message) {
	if w.DLQWriter == nil {
		return
	}
	if err := sharedkafka.WriteJSON(ctx, w.DLQWriter, string(m.Key), m.Value); err != nil {
		w.Log.Warn("dlq publish", zap.Error(err))
	}
}

func (w *Worker) onError(phase string) {
	if w.OnError != nil {
		w.OnError(phase)
	}
}
