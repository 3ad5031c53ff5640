// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"p2p-lending-workers/internal/common/aws"
	"p2p-lending-workers/internal/common/camunda"
	"p2p-lending-workers/internal/common/config"
	"p2p-lending-workers/internal/common/database"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/observability"
	"p2p-lending-workers/pkg/registry"

	// Underwriting Workers (4)
	car "p2p-lending-workers/internal/workers/underwriting/classify-applicant-risk"
	cgu "p2p-lending-workers/internal/workers/underwriting/compute-gross-up"
	gas "p2p-lending-workers/internal/workers/underwriting/generate-amortization-schedule"
	las "p2p-lending-workers/internal/workers/underwriting/load-applicant-snapshot"

	// Origination Workers (2)
	clr "p2p-lending-workers/internal/workers/origination/create-loan-record"
	vla "p2p-lending-workers/internal/workers/origination/validate-loan-application"

	// Marketplace Workers (2)
	pll "p2p-lending-workers/internal/workers/marketplace/publish-loan-listing"
	rfi "p2p-lending-workers/internal/workers/marketplace/reserve-funding-intent"

	// Notification Workers (1)
	sln "p2p-lending-workers/internal/workers/notification/send-loan-notification"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// registration pairs a task type with its job handler.
type registration struct {
	taskType string
	handler  worker.JobHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.NewWithOptions(observability.Options{
		ServiceName:    cfg.App.Name,
		TracingEnabled: cfg.Observability.TracingEnabled,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	policy, err := cfg.Pricing.Policy()
	if err != nil {
		zapLog.Fatal("pricing policy invalid", zap.Error(err))
	}

	// --- Init Zeebe Client with retry ---
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("postgres schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}

	if err := esClient.EnsureIndex(ctx, cfg.Marketplace.ListingIndex, database.ListingMapping); err != nil {
		zapLog.Fatal("listing index setup failed", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully", zap.String("listingIndex", cfg.Marketplace.ListingIndex))

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init AWS notification clients ---
	awsClients, err := aws.NewClients(ctx, cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("aws clients init failed", zap.Error(err))
	}

	// --- Build handlers ---
	lasCfg := las.LoadConfig(cfg.Marketplace.SnapshotTTL())
	lasCfg.Timeout = workerTimeout(cfg, las.TaskType, lasCfg.Timeout)

	carCfg := car.LoadConfig()
	carCfg.Timeout = workerTimeout(cfg, car.TaskType, carCfg.Timeout)

	cguCfg := cgu.LoadConfig()
	cguCfg.Timeout = workerTimeout(cfg, cgu.TaskType, cguCfg.Timeout)

	gasCfg := gas.LoadConfig()
	gasCfg.Timeout = workerTimeout(cfg, gas.TaskType, gasCfg.Timeout)

	vlaCfg := vla.LoadConfig()
	vlaCfg.Timeout = workerTimeout(cfg, vla.TaskType, vlaCfg.Timeout)

	clrCfg := clr.LoadConfig()
	clrCfg.Timeout = workerTimeout(cfg, clr.TaskType, clrCfg.Timeout)

	pllCfg := pll.LoadConfig(cfg.Marketplace.ListingIndex)
	pllCfg.Timeout = workerTimeout(cfg, pll.TaskType, pllCfg.Timeout)

	rfiCfg := rfi.LoadConfig(cfg.Marketplace.ReservationTTL())
	rfiCfg.Timeout = workerTimeout(cfg, rfi.TaskType, rfiCfg.Timeout)

	slnCfg := sln.LoadConfig()
	slnCfg.EmailEnabled = cfg.Notifications.Email.Enabled
	slnCfg.FromEmail = cfg.Notifications.Email.FromEmail
	slnCfg.SMSEnabled = cfg.Notifications.SMS.Enabled
	slnCfg.SMSPriorityThreshold = cfg.Notifications.SMS.PriorityThreshold
	slnCfg.Timeout = workerTimeout(cfg, sln.TaskType, slnCfg.Timeout)

	workers := []registration{
		{las.TaskType, las.NewHandler(lasCfg, pg.DB, redis.Client, log).Handle},
		{car.TaskType, car.NewHandler(carCfg, policy, log).Handle},
		{cgu.TaskType, cgu.NewHandler(cguCfg, policy, log).Handle},
		{gas.TaskType, gas.NewHandler(gasCfg, policy, log).Handle},
		{vla.TaskType, vla.NewHandler(vlaCfg, log).Handle},
		{clr.TaskType, clr.NewHandler(clrCfg, pg.DB, log).Handle},
		{pll.TaskType, pll.NewHandler(pllCfg, esClient.Client, log).Handle},
		{rfi.TaskType, rfi.NewHandler(rfiCfg, redis.Client, log).Handle},
		{sln.TaskType, sln.NewHandler(slnCfg, pg.DB, awsClients.SES, awsClients.SNS, log).Handle},
	}

	checkRegistry(cfg.RegistryPath, workers, zapLog)

	// --- Register Workers ---
	inst := camunda.NewInstrumentation(log, obs)
	var jobWorkers []worker.JobWorker
	for _, w := range workers {
		if jw := inst.Start(zeebeClient.GetClient(), w.taskType, config.GetWorkerConfig(cfg, w.taskType), w.handler); jw != nil {
			jobWorkers = append(jobWorkers, jw)
		}
	}
	zapLog.Info("workers registered", zap.Int("started", len(jobWorkers)), zap.Int("known", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"postgres": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := pg.Ping(checkCtx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := redis.Ping(checkCtx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		checks["status"] = "ready"
		if status != http.StatusOK {
			checks["status"] = "not_ready"
		}
		checks["time"] = time.Now().Format(time.RFC3339)
		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range jobWorkers {
		jw.Close()
		jw.AwaitClose()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

// workerTimeout returns the configured per-job timeout for taskType, or fallback.
func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if wcfg := config.GetWorkerConfig(cfg, taskType); wcfg.Timeout > 0 {
		return config.GetDuration(wcfg.Timeout)
	}
	return fallback
}

// checkRegistry warns about workers the activity registry does not document.
func checkRegistry(path string, workers []registration, log *zap.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	if err := reg.Validate(); err != nil {
		log.Warn("activity registry invalid", zap.String("path", path), zap.Error(err))
		return
	}

	taskTypes := make([]string, 0, len(workers))
	for _, w := range workers {
		taskTypes = append(taskTypes, w.taskType)
	}
	if missing := reg.Missing(taskTypes...); len(missing) > 0 {
		log.Warn("workers missing from activity registry", zap.Strings("taskTypes", missing))
	}
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
