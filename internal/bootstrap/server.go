package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camphubhq/pipeline/internal/api"
	"github.com/camphubhq/pipeline/internal/config"
	"github.com/camphubhq/pipeline/internal/database"
	"github.com/camphubhq/pipeline/internal/dedup"
	"github.com/camphubhq/pipeline/internal/discovery"
	"github.com/camphubhq/pipeline/internal/events"
	"github.com/camphubhq/pipeline/internal/handlers"
	"github.com/camphubhq/pipeline/internal/jobs"
	"github.com/camphubhq/pipeline/internal/logger"
	"github.com/camphubhq/pipeline/internal/metadata"
	"github.com/camphubhq/pipeline/internal/repository"
	"github.com/camphubhq/pipeline/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// Services holds the wired application core shared by the HTTP layer and
// the scheduler.
type Services struct {
	Jobs        *jobs.Service
	Discoveries *discovery.Service
	Dedup       *dedup.Engine
	Sources     *repository.SourceRepository
}

// SetupServices wires repositories and domain services onto the database.
func SetupServices(
	cfg *config.Config,
	db *database.DB,
	publisher *events.Publisher,
	log logger.Logger,
) *Services {
	sourceRepo := repository.NewSourceRepository(db.DB(), log)
	jobRepo := repository.NewJobRepository(db.DB(), log)
	discoveryRepo := repository.NewDiscoveryRepository(db.DB(), log)
	orgRepo := repository.NewOrganizationRepository(db.DB(), log)
	dedupRepo := repository.NewDedupRepository(db.DB(), log)

	extractor := metadata.NewExtractor(log, cfg.Pipeline.MetadataFetchTimeout)

	return &Services{
		Jobs: jobs.NewService(jobRepo, sourceRepo, publisher, log),
		Discoveries: discovery.NewService(
			discoveryRepo,
			sourceRepo,
			orgRepo,
			extractor,
			publisher,
			log,
			cfg.Pipeline.ConfidenceThreshold,
		),
		Dedup:   dedup.NewEngine(dedupRepo, log, cfg.Pipeline.DedupBatchSize),
		Sources: sourceRepo,
	}
}

// SetupScheduler wires the maintenance scheduler onto the services.
func SetupScheduler(cfg *config.Config, svc *Services, log logger.Logger) *scheduler.Scheduler {
	return scheduler.NewScheduler(
		svc.Dedup,
		svc.Jobs,
		log,
		cfg.Pipeline.JobTimeout,
		cfg.Pipeline.SweepInterval,
		cfg.Pipeline.DedupSchedule,
	)
}

// SetupHTTPServer builds the router and an HTTP server around it.
func SetupHTTPServer(
	cfg *config.Config,
	svc *Services,
	publisher *events.Publisher,
	log logger.Logger,
) *http.Server {
	h := api.Handlers{
		Sources: handlers.NewSourceHandler(
			svc.Sources, svc.Jobs, publisher, log, cfg.Pipeline.SourceListLimit,
		),
		Jobs:        handlers.NewJobHandler(svc.Jobs, log),
		Discoveries: handlers.NewDiscoveryHandler(svc.Discoveries, log),
		Dedup:       handlers.NewDedupHandler(svc.Dedup, log),
		Import:      handlers.NewImportHandler(svc.Sources, publisher, log),
	}

	router := api.NewRouter(h, cfg.Server.CORSOrigins, log)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// RunServer serves until SIGINT/SIGTERM, then drains in-flight requests.
func RunServer(server *http.Server, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		log.Info("Shutting down",
			logger.String("signal", sig.String()),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
