package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/cart-sync/internal/adapter/handler"
	"github.com/rl1809/cart-sync/internal/adapter/remote"
	"github.com/rl1809/cart-sync/internal/adapter/storage"
	"github.com/rl1809/cart-sync/internal/config"
	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
	"github.com/rl1809/cart-sync/internal/logger"
	"github.com/rl1809/cart-sync/internal/port"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "cart-sync",
		Short:        "Local agent that owns the storefront cart and keeps it in sync",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

// stores bundles whatever the configured driver provides.
type stores struct {
	local   port.LocalStore
	idem    port.IdempotencyStore
	journal port.OrderJournal
	close   func()
}

func openStores(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (stores, error) {
	switch cfg.Driver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return stores{}, fmt.Errorf("failed to connect redis: %w", err)
		}
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		adapter := storage.NewRedisAdapter(rdb)
		if cfg.Namespace != "" {
			adapter = adapter.WithNamespace(cfg.Namespace)
		}
		// Redis holds no journal table; orders are journaled in memory.
		return stores{local: adapter, idem: adapter, journal: storage.NewMemoryStore(), close: func() { rdb.Close() }}, nil

	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return stores{}, fmt.Errorf("failed to connect mysql: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return stores{}, fmt.Errorf("failed to ping mysql: %w", err)
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.EnsureSchema(ctx); err != nil {
			db.Close()
			return stores{}, err
		}
		log.Info("connected to mysql")
		return stores{local: adapter, idem: storage.NewMemoryStore(), journal: adapter, close: func() { db.Close() }}, nil

	case "sqlite":
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return stores{}, err
		}
		adapter := storage.NewSQLiteAdapter(db)
		if err := adapter.EnsureSchema(ctx); err != nil {
			db.Close()
			return stores{}, err
		}
		log.Info("opened sqlite store", zap.String("path", cfg.SQLitePath))
		return stores{local: adapter, idem: storage.NewMemoryStore(), journal: adapter, close: func() { db.Close() }}, nil

	default:
		mem := storage.NewMemoryStore()
		return stores{local: mem, idem: mem, journal: mem, close: func() {}}, nil
	}
}

func run(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.New(logger.Options{Service: "cart-sync", Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	st, err := openStores(ctx, cfg.Store, log)
	if err != nil {
		return err
	}

	// Session
	session := service.NewSession(st.local, log.Named("session"))
	if cfg.AccessToken != "" {
		session.SetTokens(ctx, service.Tokens{AccessToken: cfg.AccessToken})
	} else if session.Restore(ctx) {
		log.Info("restored stored session")
	}

	// Storefront API
	client := remote.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.Sync.RequestTimeout}, session, log.Named("remote"))
	catalog := remote.NewCachedCatalog(client)

	// Cart core
	cart := service.NewCartService(service.CartOptions{
		Remote:      client,
		Store:       st.local,
		Auth:        session,
		Policy:      domain.ParseQuantityPolicy(cfg.QuantityPolicy),
		SnapshotKey: cfg.SnapshotKey,
		Debounce:    cfg.Sync.Debounce,
		SyncTimeout: cfg.Sync.RequestTimeout,
		Logger:      log.Named("cart"),
	})
	unsubscribe := cart.Subscribe(func(s service.State) {
		log.Debug("cart state",
			zap.Int("items", len(s.Cart.Items)),
			zap.Int("total_count", s.Cart.TotalQuantity),
			zap.String("total_price", s.Cart.TotalPrice),
			zap.Bool("loading", s.Loading),
			zap.NamedError("sync_error", s.SyncErr),
		)
	})
	defer unsubscribe()

	hydrator := service.NewHydrator(cart, client, catalog, service.HydratorOptions{
		LookupConcurrency: cfg.Sync.LookupConcurrency,
		Logger:            log.Named("hydrate"),
	})
	outcome := hydrator.Hydrate(ctx)
	log.Info("cart hydrated", zap.String("outcome", string(outcome)), zap.Int("items", len(cart.State().Cart.Items)))

	orderService := service.NewOrderService(cart, client, st.idem, cfg.OrderQueueSize, log.Named("orders"))

	// Start journal workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.OrderWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, orderService.GetOrderQueue(), st.journal, log)
		}(i)
	}
	log.Info("started journal workers", zap.Int("count", cfg.OrderWorkers))

	formatter := domain.NewCurrencyFormatter(cfg.Locale, cfg.Currency)

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterCartServer(grpcServer, handler.NewGRPCHandler(cart, orderService, formatter))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(handler.HTTPHandlerOptions{
		Cart:      cart,
		Orders:    orderService,
		Session:   session,
		Hydrator:  hydrator,
		Journal:   st.journal,
		Formatter: formatter,
		Caches:    []handler.Invalidator{catalog},
		Logger:    log.Named("http"),
	})
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	// Push a pending debounced change before leaving
	if err := cart.Close(shutdownCtx); err != nil {
		log.Warn("cart sync did not settle", zap.Error(err))
	}
	log.Info("cart sync stopped")

	orderService.Close()
	wg.Wait()
	log.Info("workers stopped")

	st.close()
	log.Info("stores closed")
	return nil
}

func workerLoop(id int, queue <-chan domain.Order, journal port.OrderJournal, log *zap.Logger) {
	for order := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := journal.RecordOrder(ctx, order); err != nil {
			if errors.Is(err, storage.ErrOrderExists) {
				log.Info("order already journaled", zap.Int("worker", id), zap.String("order_id", order.ID))
			} else {
				log.Error("failed to journal order", zap.Int("worker", id), zap.String("order_id", order.ID), zap.Error(err))
			}
		} else {
			log.Info("journaled order", zap.Int("worker", id), zap.String("order_id", order.ID))
		}

		cancel()
	}
}
