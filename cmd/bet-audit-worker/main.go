package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/audit"
	"github.com/Jiang6021/PickleBet/internal/shared/config"
	"github.com/Jiang6021/PickleBet/internal/shared/db"
	"github.com/Jiang6021/PickleBet/internal/shared/kafka"
	"github.com/Jiang6021/PickleBet/internal/shared/logger"
	"github.com/Jiang6021/PickleBet/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log := logger.Must("bet-audit-worker", cfg.Env)
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	wagerReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicWagerPlaced, "bet-audit")
	defer wagerReader.Close()
	settledReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMatchSettled, "bet-audit")
	defer settledReader.Close()

	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlacedDLQ)
	defer dlqWriter.Close()

	metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	w := &audit.Worker{
		Log:           log,
		WagerReader:   wagerReader,
		SettledReader: settledReader,
		DLQWriter:     dlqWriter,
		DB:            pg,
		OnRecord:      func(kind string) { metrics.AuditRecords.WithLabelValues(kind).Inc() },
	}

	log.Info("bet-audit-worker started",
		zap.String("consume", cfg.TopicWagerPlaced+","+cfg.TopicMatchSettled),
	)

	if err := w.Run(context.Background()); err != nil {
		log.Fatal("worker stopped", zap.Error(err))
	}
}
