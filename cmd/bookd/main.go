package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"escrowbook/params"
	"escrowbook/pkg/api"
	"escrowbook/pkg/book"
	"escrowbook/pkg/token"
	"escrowbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Asset ledgers ----
	registry := token.NewRegistry()
	for _, t := range cfg.Tokens {
		addr := common.HexToAddress(t.Address)
		registry.Register(addr, token.NewToken(addr, t.Name, t.Symbol))
		sugar.Infow("token_registered", "address", addr.Hex(), "symbol", t.Symbol)
	}

	// ---- Order book engine ----
	store, err := book.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	engine, err := book.New(book.Config{
		Assets: registry,
		Escrow: common.HexToAddress(cfg.Node.EscrowAddr),
		Store:  store,
		Logger: sugar,
	})
	if err != nil {
		sugar.Fatalw("book_init_failed", "err", err)
	}

	sugar.Infow("book_ready",
		"orders", engine.NextID(),
		"escrow", cfg.Node.EscrowAddr,
		"db_path", cfg.Node.DBPath)

	// ---- API server ----
	server := api.NewServer(engine, registry, cfg.API.CORSOrigins)

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	sugar.Info("shutting_down")
}
