package main

import (
	"auctionhouse/internal/config"
	"auctionhouse/internal/database/db_client"
	"auctionhouse/internal/database/pg_store"
	"auctionhouse/internal/http/http_server"
	"auctionhouse/internal/hub"
	"auctionhouse/internal/locks"
	"auctionhouse/internal/protocol"
	"auctionhouse/internal/redis/redis_client"
	"auctionhouse/internal/redis/redis_scripts"
	"auctionhouse/internal/redis/redis_store"
	"auctionhouse/internal/services/auction"
	"auctionhouse/internal/store"
	"auctionhouse/internal/tcp/tcp_server"
	"auctionhouse/internal/watcher/auctionwatcher"
	"auctionhouse/internal/ws"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.IsProduction() {
		if prod, err := zap.NewProduction(); err == nil {
			Log = prod
			zap.ReplaceGlobals(Log)
		}
	}
	defer Log.Sync()
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Auction store
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		Log.Fatal("Failed to open auction store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	// 4. Session hub, broadcaster and the auction service
	sessions := hub.NewHub()
	broadcaster := hub.NewBroadcaster(sessions, st, cfg.BroadcastTimeout)
	auctionService := auction.NewAuctionService(st, locks.NewRegistry(), locks.NewRegistry(), broadcaster)
	dispatcher := protocol.NewDispatcher(auctionService)

	// 5. Servers
	tcpSrv := tcp_server.NewTcpServer(ctx, fmt.Sprintf(":%d", cfg.TcpServerPort), sessions, broadcaster, dispatcher,
		tcp_server.Options{MaxLineBytes: cfg.MaxLineBytes, WriteTimeout: cfg.WriteTimeout})
	wsSrv := ws.NewWsServer(ctx, sessions, broadcaster, dispatcher, cfg.MaxLineBytes)
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, auctionService)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		broadcaster.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return auctionwatcher.Run(gctx, cfg.ExpirySweepSpec, auctionService)
	})
	g.Go(tcpSrv.Start)
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		Log.Info("Shutting down")
		tcpErr := tcpSrv.Dispose()
		httpErr := httpServer.Dispose()
		if tcpErr != nil {
			return tcpErr
		}
		return httpErr
	})

	if err := g.Wait(); err != nil {
		Log.Error("Server stopped with error", zap.Error(err))
		return
	}
	Log.Info("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		rc, err := redis_client.NewRedisClient(ctx, cfg.RedisAuctionsHost, int(cfg.RedisAuctionsPort))
		if err != nil {
			return nil, nil, err
		}
		if err := redis_scripts.LoadAll(ctx, rc); err != nil {
			_ = rc.Close()
			return nil, nil, err
		}
		return redis_store.NewRedisStore(rc), func() { _ = rc.Close() }, nil

	case config.StorePostgres:
		db, err := db_client.Open(ctx, db_client.Params{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			Database: cfg.PostgresDb,
		})
		if err != nil {
			return nil, nil, err
		}
		pg := pg_store.NewPgStore(db)
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return pg, func() { _ = db.Close() }, nil

	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}
