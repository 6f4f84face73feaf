package producer

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/pkg/contracts/events"
)

// FeedPublisher anuncia liquidações e mudanças de status de partida
// Kafka: tópico match_settled (auditoria); Redis Pub/Sub: feed de partidas
// Sempre pós-commit e best-effort, o store continua sendo a fonte de verdade
type FeedPublisher struct {
	log          *zap.Logger
	writer       *kafkago.Writer
	rdb          *redis.Client
	matchChannel string
}

func NewFeedPublisher(log *zap.Logger, w *kafkago.Writer, rdb *redis.Client, matchChannel string) *FeedPublisher {
	return &FeedPublisher{log: log, writer: w, rdb: rdb, matchChannel: matchChannel}
}

func (p *FeedPublisher) MatchSettled(ctx context.Context, ev events.MatchSettled) {
	if p.writer == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal match_settled", zap.Error(err))
		return
	}
	if err := p.writer.WriteMessages(ctx, kafkago.Message{Key: []byte(ev.MatchID), Value: b}); err != nil {
		p.log.Warn("kafka publish match_settled", zap.Error(err))
	}
}

func (p *FeedPublisher) MatchChanged(ctx context.Context, ev events.MatchChanged) {
	if p.rdb == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal match_changed", zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, p.matchChannel, b).Err(); err != nil {
		p.log.Warn("redis feed publish match", zap.Error(err))
	}
}
