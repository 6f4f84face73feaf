package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/api"
	"github.com/Jiang6021/PickleBet/internal/ledger/repo"
	mrepo "github.com/Jiang6021/PickleBet/internal/market/repo"
	"github.com/Jiang6021/PickleBet/internal/settlement"
	sprod "github.com/Jiang6021/PickleBet/internal/settlement/producer"
	srepo "github.com/Jiang6021/PickleBet/internal/settlement/repo"
	"github.com/Jiang6021/PickleBet/internal/shared/cache"
	"github.com/Jiang6021/PickleBet/internal/shared/config"
	"github.com/Jiang6021/PickleBet/internal/shared/db"
	"github.com/Jiang6021/PickleBet/internal/shared/kafka"
	"github.com/Jiang6021/PickleBet/internal/shared/logger"
	"github.com/Jiang6021/PickleBet/internal/shared/metrics"
	"github.com/Jiang6021/PickleBet/internal/wager"
	wprod "github.com/Jiang6021/PickleBet/internal/wager/producer"
	wrepo "github.com/Jiang6021/PickleBet/internal/wager/repo"
)

func main() {
	cfg := config.Load()
	log := logger.Must("ledger-service", cfg.Env)
	defer log.Sync()
	log.Info("starting service", zap.String("env", cfg.Env))

	// Postgres: o store durável do ledger
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: feed de mudanças + cache de agregados de pool
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers: trilha de auditoria de apostas e liquidações
	wagerWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlaced)
	defer wagerWriter.Close()
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchSettled)
	defer settledWriter.Close()

	// repositórios
	accounts := repo.NewPostgres(pg, cfg.InitialStake, cfg.AdminName)
	matches := mrepo.NewPostgres(pg)
	wagers := wrepo.NewPostgres(pg)
	intents := srepo.NewPostgres(pg)
	poolCache := cache.NewPoolCache(rdb, 5*time.Second)

	// publicadores pós-commit (best-effort)
	wagerFeed := wprod.NewFeedPublisher(log, wagerWriter, rdb, cfg.WagerFeedChannel, poolCache)
	matchFeed := sprod.NewFeedPublisher(log, settledWriter, rdb, cfg.MatchFeedChannel)

	// Wager Processor com métricas de admissão
	processor := wager.NewProcessor(log, pg, matches, accounts, wagers, wagerFeed)
	processor.OnAdmitted = metrics.BetsPlaced.Inc
	processor.OnRejected = func(reason string) { metrics.BetsRejected.WithLabelValues(reason).Inc() }

	// Settlement Engine com replay de intents pendentes no boot
	engine := settlement.NewEngine(log, pg, matches, wagers, accounts, intents, matchFeed)
	engine.OnSettled = metrics.Settlements.Inc
	engine.OnPayout = func(int64) { metrics.PayoutsCredited.Inc() }

	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.RecoverPending(bootCtx); err != nil {
		log.Fatal("settlement recovery", zap.Error(err))
	}
	cancel()

	// HTTP público
	srv := api.NewServer(log, accounts, matches, wagers, processor, engine, intents, matchFeed, poolCache)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: srv.Router(),
	}

	// métricas e health em porta separada
	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
