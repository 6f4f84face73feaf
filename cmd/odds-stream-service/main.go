package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/market"
	mrepo "github.com/Jiang6021/PickleBet/internal/market/repo"
	"github.com/Jiang6021/PickleBet/internal/odds"
	"github.com/Jiang6021/PickleBet/internal/shared/cache"
	"github.com/Jiang6021/PickleBet/internal/shared/config"
	"github.com/Jiang6021/PickleBet/internal/shared/db"
	"github.com/Jiang6021/PickleBet/internal/shared/logger"
	"github.com/Jiang6021/PickleBet/internal/shared/metrics"
	"github.com/Jiang6021/PickleBet/internal/stream"
	wrepo "github.com/Jiang6021/PickleBet/internal/wager/repo"
)

func main() {
	cfg := config.Load()
	log := logger.Must("odds-stream-service", cfg.Env)
	defer log.Sync()
	log.Info("starting service", zap.String("env", cfg.Env))

	// Postgres só pro warm start da projeção
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: assinatura do feed de mudanças
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// hub WebSocket com gauge de conexões
	hub := stream.NewHub(func(r *http.Request) bool { return true })
	hub.OnConnect = metrics.StreamClients.Inc
	hub.OnDisconnect = metrics.StreamClients.Dec

	// projeção em memória: reconstrói do store as partidas ainda abertas
	proj := odds.NewProjection()
	matches := mrepo.NewPostgres(pg)
	wagers := wrepo.NewPostgres(pg)

	all, err := matches.List(ctx)
	if err != nil {
		log.Fatal("warm start: list matches", zap.Error(err))
	}
	for _, m := range all {
		if m.Status == market.StatusFinished {
			continue
		}
		ws, err := wagers.ListByMatch(ctx, m.ID)
		if err != nil {
			log.Fatal("warm start: list wagers", zap.Error(err))
		}
		proj.Rebuild(m.ID, ws)
	}
	log.Info("projection warmed", zap.Int("matches", len(all)))

	// feed -> projeção -> broadcast
	odds.StartFeedSubscriber(ctx, log, rdb, cfg.WagerFeedChannel, cfg.MatchFeedChannel, proj, hub.Broadcast)

	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)

	log.Info("ws listening", zap.String("addr", ":"+cfg.HTTPPort))
	if err := http.ListenAndServe(":"+cfg.HTTPPort, mux); err != nil && err != http.ErrServerClosed {
		log.Fatal("ws srv", zap.Error(err))
	}
}
