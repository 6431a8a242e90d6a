/*
main.go - ID service entry point.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Build the logger and the in-process key generator
  3. Configure HTTP router
  4. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port  HTTP server port (default: 8001)
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

	"github.com/warp/checkout-saga/internal/idservice"
	"github.com/warp/checkout-saga/internal/idservice/api"
	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 8001, "HTTP server port")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	svc := idservice.New()
	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("id service starting", zap.Int("port", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down id service")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("id service stopped")
}
