package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"timed-quiz/internal/cache"
	"timed-quiz/internal/config"
	"timed-quiz/internal/events"
	"timed-quiz/internal/httpapi"
	"timed-quiz/internal/jobs"
	"timed-quiz/internal/metrics"
	"timed-quiz/internal/quiz"
	"timed-quiz/internal/quiz/backend"
	"timed-quiz/internal/sweep"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	if err := run(cfg, *addr, log); err != nil {
		log.Error("quiz-service failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, addr string, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(context.Background()) }()

	rdb := cache.NewClient(cache.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  cfg.CacheTimeout,
		ReadTimeout:  cfg.CacheTimeout,
		WriteTimeout: cfg.CacheTimeout,
	})
	defer func() { _ = rdb.Close() }()

	fastCache := cache.NewRedis(rdb)
	if err := fastCache.Ping(ctx); err != nil {
		log.Warn("redis unreachable at startup; answers will fail until it recovers", slog.String("addr", cfg.RedisAddr), slog.Any("err", err))
	}

	var publisher quiz.EventPublisher
	if p, err := events.NewPublisher(cfg.RabbitMQURI, cfg.RabbitMQExchange, log); err != nil {
		log.Warn("event publishing disabled", slog.Any("err", err))
	} else {
		defer func() { _ = p.Close() }()
		if p.Enabled() {
			publisher = p
		}
	}

	recorder := metrics.New()
	queue := jobs.NewQueue(rdb, jobs.DefaultKey)
	runner := sweep.NewRunner(cfg.SweepInterval, log)

	service := quiz.NewService(quiz.Dependencies{
		Catalog:  store,
		Attempts: store,
		Cache:    fastCache,
		Jobs:     queue,
		Sweep:    runner,
		Events:   publisher,
		Metrics:  recorder,
		Logger:   log,
	}, quiz.Options{
		BufferTTL:    cfg.AnswerBufferTTL,
		CacheTimeout: cfg.CacheTimeout,
		MinRemaining: cfg.MinRemaining,
	})

	worker := jobs.NewWorker(queue, jobs.WorkerConfig{
		PollInterval: cfg.JobPollInterval,
		BaseBackoff:  cfg.JobBackoff,
		MaxAttempts:  cfg.JobMaxAttempts,
	}, log)
	worker.Handle(jobs.TypeAttemptDeadline, func(ctx context.Context, task jobs.Task) error {
		return service.HandleDeadline(ctx, task.AttemptID)
	})

	if err := service.Resume(ctx); err != nil {
		log.Warn("resume sweep", slog.Any("err", err))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	server := &http.Server{
		Addr: addr,
		Handler: httpapi.NewRouter(service, httpapi.RouterConfig{
			Checks: map[string]httpapi.HealthCheck{
				"store": store.Ping,
				"cache": fastCache.Ping,
			},
			Metrics: recorder,
			Logger:  log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("quiz-service listening", slog.String("addr", addr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", slog.Any("err", err))
	}

	done := runner.Done()
	runner.Stop()
	if err := runner.Wait(shutdownCtx, done); err != nil {
		log.Warn("sweep did not stop in time", slog.Any("err", err))
	}

	stop()
	wg.Wait()
	return nil
}
