/*
main.go - Order service entry point. Mirrors cmd/stockservice/main.go and
cmd/paymentservice/main.go, plus wiring to the Stock and Payment services
the checkout Saga calls over HTTP.

COMMAND-LINE FLAGS:
  -port  HTTP server port (default: 8004)
  -db    SQLite database path (default: order.db)

ENVIRONMENT:
  ID_SERVICE_URL       base URL of the ID service (default: http://localhost:8001)
  STOCK_SERVICE_URL    base URL of the Stock service (default: http://localhost:8002)
  PAYMENT_SERVICE_URL  base URL of the Payment service (default: http://localhost:8003)
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
	"github.com/warp/checkout-saga/internal/order"
	"github.com/warp/checkout-saga/internal/order/api"
	"github.com/warp/checkout-saga/internal/order/store"
	"github.com/warp/checkout-saga/internal/paymentclient"
	"github.com/warp/checkout-saga/internal/stockclient"
	"github.com/warp/checkout-saga/internal/svcutil"
	"github.com/warp/checkout-saga/internal/transport"
	"github.com/warp/checkout-saga/internal/wal"
	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 8004, "HTTP server port")
	dbPath := flag.String("db", "order.db", "SQLite database path")
	flag.Parse()

	idServiceURL := svcutil.EnvOr("ID_SERVICE_URL", "http://localhost:8001")
	stockServiceURL := svcutil.EnvOr("STOCK_SERVICE_URL", "http://localhost:8002")
	paymentServiceURL := svcutil.EnvOr("PAYMENT_SERVICE_URL", "http://localhost:8003")

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
	// Every call to Stock or Payment gets a 10s per-call timeout instead of
	// the 2s default. A checkout as a whole has no separate deadline.
	stockClient := stockclient.New(stockServiceURL, transport.New(10*time.Second))
	paymentClient := paymentclient.New(paymentServiceURL, transport.New(10*time.Second))

	svc := order.NewService(db, ids, stockClient, paymentClient)

	sweeper := &wal.Sweeper{
		Logs:        db.Logs,
		Rollback:    &order.Rollback{Store: db},
		Compensator: &order.Compensator{Stock: stockClient},
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
		logger.Info("order service starting", zap.Int("port", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down order service")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("order service stopped")
}
