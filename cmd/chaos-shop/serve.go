package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/chaos-shop/internal/audit"
	"github.com/fjod/chaos-shop/internal/cache"
	"github.com/fjod/chaos-shop/internal/cart"
	"github.com/fjod/chaos-shop/internal/catalog"
	"github.com/fjod/chaos-shop/internal/config"
	"github.com/fjod/chaos-shop/internal/consumer"
	"github.com/fjod/chaos-shop/internal/faults"
	shopgrpc "github.com/fjod/chaos-shop/internal/grpc"
	shophttp "github.com/fjod/chaos-shop/internal/http"
	"github.com/fjod/chaos-shop/internal/orders"
	"github.com/fjod/chaos-shop/internal/publisher"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

func serveCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront, the health server and the event workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c.cfg)
		},
	}

	cmd.Flags().String("http-addr", "", "HTTP listen address")
	cmd.Flags().String("grpc-addr", "", "gRPC health listen address")
	cmd.Flags().String("trigger", "", "settlement trigger: read or event")
	_ = c.v.BindPFlag("http.addr", cmd.Flags().Lookup("http-addr"))
	_ = c.v.BindPFlag("grpc.addr", cmd.Flags().Lookup("grpc-addr"))
	_ = c.v.BindPFlag("settlement.trigger", cmd.Flags().Lookup("trigger"))

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("chaos-shop starting", "version", Version, "trigger", cfg.Settlement.Trigger)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer provider shutdown failed", "error", err)
		}
	}()

	// Orders, flags and outbox
	repo, err := openOrderStore(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	registry := faults.NewRegistry(repo)

	// Catalog
	catalogRepo, err := openCatalog(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer catalogRepo.Close()

	// Cart sessions
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	cartStore := cache.NewRedisCartStore(redisClient, cfg.Redis.CartTTL)
	cartService := cart.NewService(cartStore, catalogRepo)

	// Settlement audit trail
	recorder, err := audit.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database, nil)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = recorder.Close(closeCtx)
	}()

	engine := orders.NewEngine(repo, cartService, cfg.Settlement.Settings(), orders.WithAudit(recorder))

	router := shophttp.NewRouter(shophttp.Services{
		Orders:      engine,
		Cart:        cartService,
		Catalog:     catalogRepo,
		Images:      catalog.NewAssetServer(cfg.Catalog.ImageDir, registry, cfg.Assets.SlowDelay),
		Flags:       registry,
		Settlements: recorder,
	}, shophttp.RouterOptions{
		SettleOnRead:   cfg.Settlement.Trigger == config.TriggerRead,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	health := shopgrpc.NewHealthServer(map[string]shopgrpc.Pinger{
		"postgres": repo,
		"catalog":  catalogRepo,
		"redis":    cartStore,
		"mongo":    recorder,
	}, cfg.GRPC.CheckInterval)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPC.Addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return health.Serve(gctx, lis)
	})
	g.Go(func() error {
		return publisher.NewOutboxPoller(repo, cfg.Kafka.Topic, cfg.Kafka.Brokers...).Run(gctx)
	})
	if cfg.Settlement.Trigger == config.TriggerEvent {
		settlements := consumer.NewConsumer(engine, cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		g.Go(func() error {
			return settlements.Run(gctx)
		})
	}

	err = g.Wait()
	slog.Info("chaos-shop stopped")
	return err
}
