package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hrygo/vectorbase/ai"
	"github.com/hrygo/vectorbase/ai/metrics"
	"github.com/hrygo/vectorbase/ai/retrieval"
	"github.com/hrygo/vectorbase/internal/profile"
	"github.com/hrygo/vectorbase/store"
	"github.com/hrygo/vectorbase/store/db/postgres"
	"github.com/hrygo/vectorbase/store/db/sqlite"
	"github.com/hrygo/vectorbase/store/memory"
	"github.com/hrygo/vectorbase/store/remote"
)

// app holds everything a command needs and releases it in Close.
type app struct {
	profile  *profile.Profile
	vb       *retrieval.Vectorbase
	exporter *metrics.PrometheusExporter
	server   *http.Server
	closers  []func() error
}

func newApp(p *profile.Profile) (*app, error) {
	a := &app{
		profile:  p,
		exporter: metrics.NewPrometheusExporter(metrics.DefaultConfig()),
	}

	st, err := a.openStore()
	if err != nil {
		a.Close()
		return nil, err
	}

	svc, err := ai.NewEmbeddingService(ai.NewEmbeddingConfigFromProfile(p))
	if err != nil {
		a.Close()
		return nil, err
	}
	embedder := metrics.InstrumentEmbedder(svc, a.exporter, p.EmbeddingModel)
	if size := viper.GetInt("cache-size"); size > 0 {
		embedder = ai.NewCachedEmbeddingService(embedder, size, viper.GetDuration("cache-ttl"), ai.WithCacheObserver(a.exporter))
	}

	a.vb = retrieval.New(embedder, retrieval.WithStore(st))

	if p.MetricsAddr != "" {
		a.serveMetrics()
	}
	return a, nil
}

func (a *app) openStore() (store.Store, error) {
	p := a.profile
	opts := []remote.Option{
		remote.WithResumeIDs(),
		remote.WithBatchRetries(viper.GetInt("batch-retries")),
	}

	var st store.Store
	switch p.Driver {
	case "memory":
		st = memory.New()
	case "postgres":
		client, err := postgres.NewClient(p.DSN, p.Dimensions)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		st = remote.New(client, p.Index, opts...)
	case "sqlite":
		client, err := sqlite.NewClient(p.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		st = remote.New(client, p.Index, opts...)
	default:
		return nil, fmt.Errorf("unsupported driver %q", p.Driver)
	}

	if !p.IsPersistent() {
		slog.Debug("entries are kept in memory and discarded on exit", "index", p.Index)
	}
	slog.Debug("store opened", "driver", p.Driver, "index", p.Index, "mode", st.Mode())
	return metrics.InstrumentStore(st, a.exporter, p.Driver), nil
}

func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.exporter)
	a.server = &http.Server{
		Addr:              a.profile.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to serve metrics", "addr", a.profile.MetricsAddr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", a.profile.MetricsAddr)
}

func (a *app) Close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("failed to stop metrics server", "error", err)
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("failed to close", "error", err)
		}
	}
}

// printDatabaseError explains common connection failures.
func printDatabaseError(err error, p *profile.Profile) {
	if p.Driver == "memory" {
		return
	}
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		fmt.Fprintln(os.Stderr, "PostgreSQL is not reachable. Check the DSN, or use --driver=sqlite for local development.")
	case strings.Contains(errMsg, "SSL is not enabled") || strings.Contains(errMsg, "sslmode"):
		fmt.Fprintln(os.Stderr, "PostgreSQL SSL configuration mismatch. Add ?sslmode=disable to your DSN.")
	case strings.Contains(errMsg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "PostgreSQL authentication failed. Check your credentials in the DSN or .env file.")
	case strings.Contains(errMsg, `extension "vector"`):
		fmt.Fprintln(os.Stderr, "The pgvector extension is not available on this server.")
	case strings.Contains(errMsg, "unable to open database file"):
		fmt.Fprintf(os.Stderr, "Cannot open SQLite database %s.\n", p.DSN)
	}
}
