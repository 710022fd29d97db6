package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/internal/delivery/httpd"
	appmiddleware "github.com/RubachokBoss/plagiarism-checker/internal/middleware"
	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/extractor"
	"github.com/RubachokBoss/plagiarism-checker/internal/worker"
	"github.com/RubachokBoss/plagiarism-checker/internal/worker/queue"
	"github.com/RubachokBoss/plagiarism-checker/pkg/hash"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type App struct {
	server          *http.Server
	logger          zerolog.Logger
	config          *config.Config
	db              *sql.DB
	documentService service.DocumentService
	analysisService service.AnalysisService
	analysisWorker  worker.AnalysisWorker
	localDispatcher *worker.LocalDispatcher
	sweeper         *worker.RetentionSweeper
	rabbitMQRepo    repository.RabbitMQRepository

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg *config.Config, log zerolog.Logger, db *sql.DB) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		logger: log,
		config: cfg,
		db:     db,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := a.build(); err != nil {
		cancel()
		if a.rabbitMQRepo != nil {
			a.rabbitMQRepo.Close()
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.config
	log := a.logger

	stages, err := ParseStages(cfg.Analysis.Stages)
	if err != nil {
		return err
	}

	hasher, err := hash.New(cfg.Documents.HashAlgorithm)
	if err != nil {
		return err
	}

	storage, err := repository.NewMinIOStorage(repository.StorageConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
		Timeout:   cfg.Storage.Timeout,
	}, log)
	if err != nil {
		return err
	}

	documentRepo := repository.NewDocumentRepository(a.db, log)
	analysisRepo := repository.NewAnalysisRepository(a.db, log)
	fingerprintRepo := repository.NewFingerprintRepository(a.db, log)

	textExtractor := extractor.New(log)
	checker := NewChecker(cfg, stages, fingerprintRepo, hasher, log)

	var (
		dispatcher service.Dispatcher
		publisher  service.CompletionPublisher
		consumer   queue.RabbitMQConsumer
	)
	if cfg.RabbitMQ.Enabled {
		a.rabbitMQRepo, err = repository.NewRabbitMQRepository(cfg.RabbitMQ.URL, log)
		if err != nil {
			return err
		}

		if err := a.rabbitMQRepo.SetupQueue(
			cfg.RabbitMQ.Exchange,
			cfg.RabbitMQ.QueueName,
			cfg.RabbitMQ.UploadedRoutingKey,
		); err != nil {
			return err
		}

		rabbitMQPublisher := queue.NewPublisher(a.rabbitMQRepo.Channel(), log, queue.PublisherConfig{
			Exchange:            cfg.RabbitMQ.Exchange,
			UploadedRoutingKey:  cfg.RabbitMQ.UploadedRoutingKey,
			CompletedRoutingKey: cfg.RabbitMQ.CompletedRoutingKey,
		})
		dispatcher = rabbitMQPublisher
		publisher = rabbitMQPublisher

		consumer = queue.NewRabbitMQConsumer(
			a.rabbitMQRepo.Channel(),
			cfg.RabbitMQ.QueueName,
			cfg.RabbitMQ.ConsumerTag,
			cfg.RabbitMQ.PrefetchCount,
			log,
		)
	}

	processor := service.NewAnalysisProcessor(
		analysisRepo,
		documentRepo,
		fingerprintRepo,
		storage,
		textExtractor,
		checker,
		publisher,
		log,
		service.ProcessorConfig{Timeout: cfg.Analysis.Timeout},
	)

	workerPool := worker.NewWorkerPool(cfg.Analysis.MaxWorkers, log)
	if consumer != nil {
		a.analysisWorker = worker.NewAnalysisWorker(workerPool, consumer, processor, log)
	} else {
		log.Warn().Msg("RabbitMQ disabled, analyses run in-process")
		a.localDispatcher = worker.NewLocalDispatcher(a.ctx, workerPool, processor, log)
		dispatcher = a.localDispatcher
	}

	a.documentService = service.NewDocumentService(
		documentRepo,
		analysisRepo,
		storage,
		textExtractor,
		hasher,
		dispatcher,
		log,
		service.DocumentConfig{
			MaxUploadSize:     cfg.Documents.MaxUploadSize,
			AllowedExtensions: cfg.Documents.AllowedExtensions,
			Retention:         cfg.Documents.Retention,
			APIPrefix:         httpd.APIPrefix,
		},
	)

	a.analysisService = service.NewAnalysisService(
		analysisRepo,
		documentRepo,
		dispatcher,
		log,
	)

	a.sweeper = worker.NewRetentionSweeper(a.documentService, cfg.Documents.CleanupInterval, log)

	dependencies := map[string]httpd.Pinger{
		"database": httpd.PingFunc(a.db.PingContext),
		"storage":  storage,
	}
	if a.rabbitMQRepo != nil {
		dependencies["rabbitmq"] = httpd.PingFunc(func(context.Context) error {
			if a.rabbitMQRepo.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		})
	}

	handler := httpd.NewHandler(
		a.documentService,
		a.analysisService,
		dependencies,
		a.analysisWorker,
		cfg.Documents.MaxUploadSize,
		log,
	)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appmiddleware.ContextLogger(log))
	router.Use(appmiddleware.RequestLogger(log))
	router.Use(appmiddleware.Recovery(log))
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	handler.RegisterRoutes(router)

	a.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return nil
}

// Run starts the analysis worker, the retention sweeper and the HTTP server.
// It returns when the server stops.
func (a *App) Run() error {
	if err := a.startWorker(); err != nil {
		return err
	}
	a.sweeper.Start(a.ctx)
	if a.localDispatcher != nil {
		go a.resumeUnfinished()
	}

	a.logger.Info().Msgf("Starting plagiarism checker on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunWorker consumes analyses without serving HTTP until ctx is done.
func (a *App) RunWorker(ctx context.Context) error {
	if a.analysisWorker == nil {
		return errors.New("worker mode requires rabbitmq.enabled")
	}
	if err := a.startWorker(); err != nil {
		return err
	}

	a.logger.Info().Msg("Standalone analysis worker started")
	<-ctx.Done()
	return nil
}

// resumeUnfinished requeues analyses left pending or processing by a previous
// in-process run. With a broker the messages survive the restart instead.
func (a *App) resumeUnfinished() {
	if _, err := a.analysisService.ResumeUnfinished(a.ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to resume unfinished analyses")
	}
}

func (a *App) startWorker() error {
	if a.analysisWorker == nil {
		return nil
	}
	if err := a.analysisWorker.Start(a.ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to start analysis worker")
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down plagiarism checker...")

	var serverErr error
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to shutdown HTTP server")
		serverErr = err
	}

	a.sweeper.Stop()

	if a.analysisWorker != nil {
		if err := a.analysisWorker.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop analysis worker")
		}
	}
	if a.localDispatcher != nil {
		done := make(chan struct{})
		go func() {
			a.localDispatcher.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.logger.Warn().Msg("Shutdown deadline reached, cancelling running analyses")
			a.cancel()
			<-done
		}
	}
	a.cancel()

	if a.rabbitMQRepo != nil {
		if err := a.rabbitMQRepo.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	a.logger.Info().Msg("Plagiarism checker stopped")
	return serverErr
}
