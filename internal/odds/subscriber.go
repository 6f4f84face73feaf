package odds

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/market"
	"github.com/Jiang6021/PickleBet/pkg/contracts/events"
)

// StartFeedSubscriber escuta os dois canais do feed (apostas e partidas)
// e mantém a projeção atualizada:
// - aposta nova -> Apply + callback onPool com o snapshot recalculado
// - partida FINISHED -> Drop (o conjunto de apostas deixou de existir)
//
// Cada classe de entidade tem seu canal próprio; quem consome só partida
// não depende do feed de apostas e vice-versa
func StartFeedSubscriber(
	ctx context.Context,
	log *zap.Logger,
	r *redis.Client,
	wagerChannel, matchChannel string,
	proj *Projection,
	onPool func(events.PoolUpdate),
) {
	sub := r.Subscribe(ctx, wagerChannel, matchChannel)
	ch := sub.Channel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				switch msg.Channel {
				case wagerChannel:
					var ev events.WagerPlaced
					if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
						log.Warn("feed unmarshal wager", zap.Error(err))
						continue
					}
					proj.Apply(ev)
					if onPool != nil {
						onPool(proj.Snapshot(ev.MatchID, ev.MarketIndex))
					}
				case matchChannel:
					var ev events.MatchChanged
					if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
						log.Warn("feed unmarshal match", zap.Error(err))
						continue
					}
					if ev.Status == string(market.StatusFinished) {
						proj.Drop(ev.MatchID)
					}
				}
			}
		}
	}()
}
