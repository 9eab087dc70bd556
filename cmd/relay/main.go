// Command relay serves the live event stream for deployments running more
// than one API instance: it consumes the Kafka lifecycle topic and fans the
// events out to SSE subscribers, so dashboards see events no matter which
// instance produced them.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"reliefpool/internal/events"
	"reliefpool/internal/platform/config"
	"reliefpool/internal/platform/httpserver"
	"reliefpool/internal/platform/logger"
	"reliefpool/pkg/platform/httputil"
	"reliefpool/pkg/platform/middleware/requestid"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	log := logger.New()

	broadcaster := events.NewBroadcaster()
	relay, err := events.NewRelay(cfg.Kafka.Brokers, cfg.Kafka.Topic, "reliefpool-relay", broadcaster, log)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.RequestID)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(api chi.Router) {
		events.NewHandler(broadcaster, log).Register(api)
	})

	srv := httpserver.New(cfg.Server.Addr, r)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(ctx, "relay listening", "addr", cfg.Server.Addr, "topic", cfg.Kafka.Topic)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return relay.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
