package main

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Jiang6021/PickleBet/internal/shared/config"
	"github.com/Jiang6021/PickleBet/internal/shared/db"
	"github.com/Jiang6021/PickleBet/internal/shared/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	cfg := config.Load()
	log := logger.Must("migrator", cfg.Env)
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	driver, err := postgres.WithInstance(pg, &postgres.Config{})
	if err != nil {
		log.Fatal("postgres migrate driver", zap.Error(err))
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		log.Fatal("iofs source", zap.Error(err))
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		log.Fatal("migrate instance", zap.Error(err))
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal("migrations up", zap.Error(err))
	}

	version, dirty, _ := m.Version()
	log.Info("migrations applied",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
}
