/*
main.go - Payment service entry point. Mirrors cmd/stockservice/main.go.

COMMAND-LINE FLAGS:
  -port  HTTP server port (default: 8003)
  -db    SQLite database path (default: payment.db)

ENVIRONMENT:
  ID_SERVICE_URL  base URL of the ID service (default: http://localhost:8001)
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/checkout-saga/internal/idclient"
	"github.com/warp/checkout-saga/internal/payment"
	"github.com/warp/checkout-saga/internal/payment/api"
	"github.com/warp/checkout-saga/internal/payment/store"
	"github.com/warp/checkout-saga/internal/svcutil"
	"github.com/warp/checkout-saga/internal/transport"
	"github.com/warp/checkout-saga/internal/wal"
	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 8003, "HTTP server port")
	dbPath := flag.String("db", "payment.db", "SQLite database path")
	flag.Parse()

	idServiceURL := svcutil.EnvOr("ID_SERVICE_URL", "http://localhost:8001")

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := store.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	ids := idclient.New(idServiceURL, transport.New(0))
	svc := payment.NewService(db, ids)

	sweeper := &wal.Sweeper{
		Logs:     db.Logs,
		Rollback: &payment.Rollback{Store: db},
	}

	handler := api.NewHandler(svc, db.Logs, sweeper, logger)
	router := api.NewRouter(handler)

	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go svcutil.RunSweeper(sweeperCtx, sweeper, 10*time.Second, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("payment service starting", zap.Int("port", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down payment service")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("payment service stopped")
}
