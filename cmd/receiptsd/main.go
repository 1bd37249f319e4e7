package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/payment-receipts/internal/async"
	"github.com/joseph-ayodele/payment-receipts/internal/blob"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/export"
	"github.com/joseph-ayodele/payment-receipts/internal/llm"
	"github.com/joseph-ayodele/payment-receipts/internal/llm/openai"
	"github.com/joseph-ayodele/payment-receipts/internal/notify"
	"github.com/joseph-ayodele/payment-receipts/internal/ratelimit"
	"github.com/joseph-ayodele/payment-receipts/internal/receipts"
	repo "github.com/joseph-ayodele/payment-receipts/internal/repository"
	"github.com/joseph-ayodele/payment-receipts/internal/server"
	"github.com/joseph-ayodele/payment-receipts/internal/tamper"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := common.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("receiptsd stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("receiptsd stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ordersRepo := repo.NewOrderRepository(db, logger)
	sellersRepo := repo.NewSellerRepository(db, logger)
	receiptsRepo := repo.NewReceiptRepository(db, logger)

	store, err := blob.NewS3Store(blob.Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		ForcePathStyle:  cfg.Storage.ForcePathStyle,
	}, logger)
	if err != nil {
		return err
	}

	var extractor llm.FieldExtractor = openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		JSONMode:    cfg.LLM.JSONMode,
		ImageDetail: cfg.LLM.ImageDetail,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger)

	var limiter server.RateLimiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, continuing", "addr", cfg.Redis.Addr, "error", err)
		}
		extractor = llm.NewCachedExtractor(extractor, rdb, cfg.Redis.ExtractCacheTTL, logger)
		limiter = ratelimit.NewLimiter(rdb, "payment-receipts", cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)
	} else {
		logger.Info("REDIS_ADDR not set; extraction cache and rate limiting disabled")
	}

	sinks, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	dispatcher := async.NewDispatcher(sinks, logger,
		async.WithWorkers(cfg.Notify.Workers),
		async.WithQueueSize(cfg.Notify.QueueSize),
		async.WithProcessTimeout(cfg.Notify.Timeout),
	)

	receiptSvc := receipts.NewService(ordersRepo, sellersRepo, receiptsRepo, store, extractor,
		tamper.NewHeuristic(nil, logger), logger,
		receipts.WithMaxImageBytes(cfg.Receipts.MaxImageBytes),
		receipts.WithExtractTimeout(cfg.Receipts.ExtractTimeout),
		receipts.WithInlineImages(cfg.Receipts.InlineImages),
		receipts.WithNotificationQueue(dispatcher),
	)
	exportSvc := export.NewService(receiptsRepo, logger)

	healthReporter := server.NewHealthReporter(db, cfg.Server.HealthInterval, logger)
	handler := server.NewRouter(server.RouterDeps{
		Receipts: server.NewReceiptHandler(receiptSvc, cfg.Receipts.MaxImageBytes, logger),
		Export:   server.NewExportHandler(exportSvc, logger),
		Verifier: server.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		Limiter:  limiter,
		Health:   healthReporter,
		Logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Receipts.ExtractTimeout + 30*time.Second,
		WriteTimeout:      cfg.Receipts.ExtractTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	grpcSrv := server.NewGRPCServer(healthReporter)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		healthReporter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr, "environment", cfg.Environment)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		healthReporter.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
		grpcSrv.GracefulStop()
		// drain queued notifications after the last request has finished
		dispatcher.Shutdown(shutdownCtx)
		return nil
	})
	return g.Wait()
}

// buildSinks always logs notifications and adds NATS and FCM when configured.
func buildSinks(ctx context.Context, cfg *common.Config, logger *slog.Logger) (notify.Notifier, func(), error) {
	sinks := notify.Fanout{notify.NewLogSink(logger)}
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.NATS.URL != "" {
		nc, err := notify.NewNATSClient(notify.NATSConfig{
			URL:           cfg.NATS.URL,
			Name:          cfg.NATS.Name,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
			Stream:        cfg.NATS.Stream,
		}, logger)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, nc.Close)
		if err := nc.EnsureStream(ctx, cfg.NATS.Stream); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sinks = append(sinks, notify.NewNATSPublisher(nc, logger))
	}

	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := notify.NewFCMSender(ctx, cfg.Firebase.CredentialsFile, logger)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sinks = append(sinks, fcm)
	}

	logger.Info("notification sinks ready", "count", len(sinks))
	return sinks, closeAll, nil
}
