// Command topology-report prints the topology of an agency kept in NATS:
// servers and coordinators per scope, both reconciliation diffs and the
// servers that missed their heartbeats.
//
// NOTE: run nats: docker run --net=host nats:latest -js
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewandler/clstr-agency/adapters/nats"
	promadapter "github.com/codewandler/clstr-agency/adapters/prometheus"
	"github.com/codewandler/clstr-agency/core/app"
	"github.com/codewandler/clstr-agency/internal/codec"
)

// === Config ===

var (
	bucket      = getEnv("AGENCY_BUCKET", "agency")
	prefix      = getEnv("AGENCY_PREFIX", "")
	logLevel    = getEnv("LOG_LEVEL", "info")
	metricsAddr = getEnv("METRICS_ADDR", "")
	cacheSize   = getEnvInt("CACHE_SIZE", 0)
	// interval repeats the report until interrupted; 0 reports once
	interval = getEnvDuration("INTERVAL", 0)
)

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, fallback.String()))
	if err != nil {
		return fallback
	}
	return v
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Main
// =============================================================================

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(logLevel)}))
	slog.SetDefault(log)

	if err := run(ctx, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("report failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	metrics := promadapter.NewAllMetrics(prometheus.DefaultRegisterer)
	if metricsAddr != "" {
		promMux := http.NewServeMux()
		promMux.Handle("/metrics", promhttp.Handler())
		promServer := &http.Server{Addr: metricsAddr, Handler: promMux}
		go func() {
			log.Info("prometheus metrics server starting", slog.String("addr", metricsAddr))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("prometheus server error", slog.Any("error", err))
			}
		}()
		defer promServer.Shutdown(context.Background())
	}

	store, err := nats.NewStore(nats.StoreConfig{
		Connect: nats.ConnectDefault(),
		Log:     log,
		Bucket:  bucket,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	a, err := app.New(app.Config{
		Context:         ctx,
		Log:             log,
		Store:           store,
		Prefix:          prefix,
		CacheSize:       cacheSize,
		RouterMetrics:   metrics.Router,
		TopologyMetrics: metrics.Topology,
	})
	if err != nil {
		return err
	}
	defer a.Stop()

	out := codec.IndentedJSON{}
	for {
		rep, err := a.Cluster().Report(ctx, time.Now())
		if err != nil {
			return err
		}
		data, err := out.Marshal(rep)
		if err != nil {
			return err
		}
		fmt.Println(string(data))

		if interval <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
