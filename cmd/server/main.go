// Command server runs the relief pool API: donor endpoints, the batch
// manager, the settlement worker and the organization dashboard, all in one
// process.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"reliefpool/internal/batch"
	"reliefpool/internal/disaster"
	"reliefpool/internal/donation"
	"reliefpool/internal/events"
	"reliefpool/internal/organization"
	"reliefpool/internal/platform/config"
	"reliefpool/internal/platform/httpserver"
	"reliefpool/internal/platform/logger"
	"reliefpool/internal/platform/metrics"
	"reliefpool/internal/platform/postgres"
	"reliefpool/internal/platform/redis"
	"reliefpool/internal/settlement"
	"reliefpool/internal/status"
	"reliefpool/internal/tracking"
	"reliefpool/internal/xrpl"
	"reliefpool/pkg/domain"
	"reliefpool/pkg/platform/httputil"
	"reliefpool/pkg/platform/middleware/metadata"
	"reliefpool/pkg/platform/middleware/requestid"
)

// Dev wallet addresses used when none are configured.
const (
	devPoolAddress    = domain.Address("rDevPoolReliefWallet00000001")
	devReserveAddress = domain.Address("rDevReserveReliefWallet00001")
)

// defaultSeeds are the organizations ensured at startup. Real deployments
// replace the dev password immediately after first login.
var defaultSeeds = []organization.SeedOrg{
	{Name: "Global Health Relief", CauseType: domain.CauseHealth, WalletAddress: "rHealthReliefOrgWallet000001", NeedScore: 8, Password: "changeme-dev"},
	{Name: "Shelter Now Foundation", CauseType: domain.CauseShelter, WalletAddress: "rShelterNowOrgWallet00000001", NeedScore: 7, Password: "changeme-dev"},
	{Name: "World Food Network", CauseType: domain.CauseFood, WalletAddress: "rWorldFoodOrgWallet000000001", NeedScore: 9, Password: "changeme-dev"},
	{Name: "Clean Water Project", CauseType: domain.CauseWater, WalletAddress: "rCleanWaterOrgWallet00000001", NeedScore: 6, Password: "changeme-dev"},
	{Name: "Education Without Borders", CauseType: domain.CauseEducation, WalletAddress: "rEducationOrgWallet000000001", NeedScore: 5, Password: "changeme-dev"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
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
	log := logger.New()
	m := metrics.New()

	if cfg.Ledger.PoolAddress == "" {
		cfg.Ledger.PoolAddress = devPoolAddress
	}
	if cfg.Ledger.ReserveAddress == "" {
		cfg.Ledger.ReserveAddress = devReserveAddress
	}

	// Stores. Without a DATABASE_URL everything runs in memory, which is
	// enough for local development against the fake ledger.
	var (
		donationStore donation.Store
		batchStore    batch.Store
		disasterStore disaster.Store
		orgStore      organization.Store
	)
	if cfg.Postgres.URL != "" {
		db, err := postgres.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		donationStore = donation.NewPostgresStore(db)
		batchStore = batch.NewPostgresStore(db)
		disasterStore = disaster.NewPostgresStore(db)
		orgStore = organization.NewPostgresStore(db)
		log.InfoContext(ctx, "postgres connected")
	} else {
		donationStore = donation.NewInMemoryStore()
		batchStore = batch.NewInMemoryStore()
		disasterStore = disaster.NewInMemoryStore()
		orgStore = organization.NewInMemoryStore()
		log.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
	}

	cache, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if cache != nil {
		defer cache.Close()
		log.InfoContext(ctx, "redis connected")
	}

	// The gateway is an in-memory ledger double; the external signer and a
	// real node client slot in behind the same interface.
	gateway := xrpl.NewMemoryGateway()
	gateway.SeedAccount(cfg.Ledger.PoolAddress, domain.FromXRP(1000))
	gateway.SeedAccount(cfg.Ledger.ReserveAddress, cfg.Ledger.ReserveFloor)

	// Events fan out to in-process SSE subscribers and, when brokers are
	// configured, to Kafka for external consumers.
	broadcaster := events.NewBroadcaster()
	var publisher events.Publisher = broadcaster
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := events.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaPub.Close()
		publisher = events.Fanout{broadcaster, kafkaPub}
		log.InfoContext(ctx, "kafka publisher enabled", "topic", cfg.Kafka.Topic)
	}

	orgService := organization.NewService(orgStore, cfg.Auth.JWTSigningKey, cfg.Auth.TokenTTL, log)
	if err := orgService.EnsureSeeded(ctx, defaultSeeds); err != nil {
		return fmt.Errorf("seed organizations: %w", err)
	}

	donationService := donation.NewService(donationStore, gateway, cfg.Ledger.PoolAddress, publisher, m, log)

	statusService := status.NewService(status.ServiceConfig{
		Gateway:          gateway,
		Cache:            cache,
		Donations:        donationStore,
		Metrics:          m,
		Logger:           log,
		Network:          cfg.Ledger.Network,
		Pool:             cfg.Ledger.PoolAddress,
		Reserve:          cfg.Ledger.ReserveAddress,
		DefaultThreshold: cfg.Batch.Threshold,
		Window:           cfg.Batch.TimeWindow,
	})

	manager := batch.NewManager(batch.ManagerConfig{
		Batches:      batchStore,
		Donations:    donationStore,
		Gateway:      gateway,
		Thresholds:   statusService,
		Publisher:    publisher,
		Metrics:      m,
		Logger:       log,
		Pool:         cfg.Ledger.PoolAddress,
		Reserve:      cfg.Ledger.ReserveAddress,
		Window:       cfg.Batch.TimeWindow,
		PollInterval: cfg.Batch.PollInterval,
		LockDuration: cfg.Batch.LockDuration,
	})
	batchService := batch.NewService(batchStore, donationStore)

	disasterService := disaster.NewService(disaster.ServiceConfig{
		Store:        disasterStore,
		Orgs:         orgStore,
		Gateway:      gateway,
		Publisher:    publisher,
		Metrics:      m,
		Logger:       log,
		Reserve:      cfg.Ledger.ReserveAddress,
		ReserveFloor: cfg.Ledger.ReserveFloor,
		LockDuration: cfg.Batch.LockDuration,
	})

	worker := settlement.NewWorker(settlement.WorkerConfig{
		Batches:      batchStore,
		Disasters:    disasterStore,
		Orgs:         orgStore,
		Gateway:      gateway,
		Publisher:    publisher,
		Metrics:      m,
		Logger:       log,
		Pool:         cfg.Ledger.PoolAddress,
		Reserve:      cfg.Ledger.ReserveAddress,
		PollInterval: cfg.Batch.PollInterval,
	})

	trackingService := tracking.NewService(donationStore, batchStore, disasterStore, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.RequestID)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		donation.NewHandler(donationService, log).Register(api)
		tracking.NewHandler(trackingService, log).Register(api)
		batch.NewHandler(batchService, log).Register(api)
		disaster.NewHandler(disasterService, log).Register(api)
		organization.NewHandler(orgService, log).Register(api)
		status.NewHandler(statusService, log).Register(api)
		events.NewHandler(broadcaster, log).Register(api)
	})

	srv := httpserver.New(cfg.Server.Addr, r)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(ctx, "http server listening", "addr", cfg.Server.Addr, "network", cfg.Ledger.Network)
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
	g.Go(func() error { return manager.Run(ctx) })
	g.Go(func() error { return worker.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.InfoContext(context.Background(), "server stopped")
	return nil
}
