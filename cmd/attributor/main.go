// Package main provides the attributor invocation process: at startup it
// loads configuration, opens the configured datastore and builds the batch
// driver once; each invocation (a POST /v1/invoke request, or the single
// run made when RUN_ONCE is set) then runs one batch-driver pass over
// pending triggers (spec.md §4.1) with that same configuration. A
// minimal HTTP surface exposes health and Prometheus metrics the way the
// teacher's cmd/correlator process does, plus a manual-trigger endpoint
// for local operation outside of a cron/scheduler.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/attrib-io/attributor/internal/batch"
	"github.com/attrib-io/attributor/internal/config"
	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/datastore/memstore"
	"github.com/attrib-io/attributor/internal/datastore/postgres"
	"github.com/attrib-io/attributor/internal/debugreport"
	"github.com/attrib-io/attributor/internal/metrics"
	"github.com/attrib-io/attributor/internal/pipeline"
)

const (
	version = "0.1.0-dev"
	name    = "attributor"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logLevel := config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	attrCfg, err := config.LoadAttributionConfigFromEnv()
	if err != nil {
		logger.Error("failed to load attribution configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx)
	if err != nil {
		logger.Error("failed to open datastore", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	scheduler, closeScheduler := openScheduler()
	defer closeScheduler()

	p := pipeline.New(attrCfg, scheduler, randFloat64)
	driver := batch.New(store, p, attrCfg.MaxAttributionsPerInvocation)

	addr := config.GetEnvStr("HTTP_ADDR", ":8080")
	srv := newHTTPServer(addr, ctx, driver)

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("starting http server", slog.String("address", addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	if config.GetEnvBool("RUN_ONCE", false) {
		runInvocation(ctx, driver)

		return
	}

	select {
	case err := <-serverErrors:
		logger.Error("http server failed", slog.String("error", err.Error()))
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", slog.String("error", err.Error()))
		}
	}
}

func openStore(ctx context.Context) (datastore.Store, func(), error) {
	switch config.GetEnvStr("DATASTORE_DRIVER", "memstore") {
	case "postgres":
		store, err := postgres.NewStore(ctx, postgres.Config{
			DatabaseURL:     config.GetEnvStr("DATABASE_URL", ""),
			MaxOpenConns:    config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", 10*time.Minute),
		})
		if err != nil {
			return nil, nil, err
		}

		return store, func() { _ = store.Close() }, nil
	default:
		return memstore.New(), func() {}, nil
	}
}

func openScheduler() (debugreport.Scheduler, func()) {
	brokers := config.ParseCommaSeparatedList(config.GetEnvStr("KAFKA_BROKERS", ""))
	if len(brokers) == 0 {
		return debugreport.NoopScheduler{}, func() {}
	}

	topic := config.GetEnvStr("DEBUG_REPORT_TOPIC", "attribution-debug-reports")
	ratePerSecond := config.GetEnvInt("DEBUG_REPORT_RATE_PER_SECOND", 100)

	sched := debugreport.NewKafkaScheduler(brokers, topic, ratePerSecond)

	return sched, func() { _ = sched.Close() }
}

func runInvocation(ctx context.Context, driver *batch.Driver) {
	result, err := driver.Run(ctx)
	metrics.RecordBatch(result.Processed)

	if err != nil {
		metrics.RecordDatastoreError()
		slog.Error("invocation aborted", slog.String("error", err.Error()))

		return
	}

	slog.Info("invocation complete",
		slog.Int("processed", result.Processed),
		slog.Int("attributed", result.Attributed),
		slog.Int("dropped", result.Dropped),
		slog.Bool("needs_retry", result.NeedsRetry))
}

func newHTTPServer(addr string, ctx context.Context, driver *batch.Driver) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/invoke", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)

			return
		}

		runInvocation(r.Context(), driver)
		w.WriteHeader(http.StatusAccepted)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

// randFloat64 is the production RNG the pipeline draws its report-delay
// jitter from (spec.md §4.5, §9).
func randFloat64() float64 {
	return rand.Float64()
}
