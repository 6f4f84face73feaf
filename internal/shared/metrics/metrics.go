package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Contadores de domínio do bolão, registrados no registry default
var (
	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picklebet_bets_placed_total",
		Help: "Apostas admitidas com débito confirmado",
	})
	BetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "picklebet_bets_rejected_total",
		Help: "Apostas rejeitadas por motivo",
	}, []string{"reason"})
	Settlements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picklebet_settlements_total",
		Help: "Partidas liquidadas (intent aplicada por completo)",
	})
	PayoutsCredited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picklebet_payouts_credited_total",
		Help: "Créditos individuais de payout/refund aplicados",
	})
	AuditRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "picklebet_audit_records_total",
		Help: "Registros de auditoria gravados por tipo",
	}, []string{"kind"})
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "picklebet_stream_clients",
		Help: "Conexões WebSocket ativas no odds-stream-service",
	})
)

type HealthFunc func(ctx context.Context) error

// StartServer sobe um servidor HTTP leve só pra /metrics e /healthz
// executável numa goroutine no main de cada serviço
func StartServer(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
