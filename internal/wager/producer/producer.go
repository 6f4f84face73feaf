package producer

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/shared/cache"
	"github.com/Jiang6021/PickleBet/pkg/contracts/events"
)

// FeedPublisher anuncia apostas admitidas nos dois canais:
// Kafka (tópico wager_placed, trilha de auditoria) e Redis Pub/Sub
// (feed de mudanças que alimenta as projeções de odds)
// Publicação é pós-commit e best-effort: o store é a fonte de verdade
type FeedPublisher struct {
	log     *zap.Logger
	writer  *kafkago.Writer
	rdb     *redis.Client
	channel string
	pool    *cache.PoolCache
}

func NewFeedPublisher(log *zap.Logger, w *kafkago.Writer, rdb *redis.Client, channel string, pool *cache.PoolCache) *FeedPublisher {
	return &FeedPublisher{log: log, writer: w, rdb: rdb, channel: channel, pool: pool}
}

func (p *FeedPublisher) WagerPlaced(ctx context.Context, ev events.WagerPlaced) {
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal wager_placed", zap.Error(err))
		return
	}

	if p.writer != nil {
		if err := p.writer.WriteMessages(ctx, kafkago.Message{Key: []byte(ev.WagerID), Value: b}); err != nil {
			p.log.Warn("kafka publish wager_placed", zap.Error(err))
		}
	}

	if p.rdb != nil {
		if err := p.rdb.Publish(ctx, p.channel, b).Err(); err != nil {
			p.log.Warn("redis feed publish", zap.Error(err))
		}
	}

	// agregado cacheado do mercado ficou velho
	if p.pool != nil {
		if err := p.pool.Invalidate(ctx, ev.MatchID, ev.MarketIndex); err != nil {
			p.log.Warn("pool cache invalidate", zap.Error(err))
		}
	}
}
