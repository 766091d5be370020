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

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/workflow"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	batchSize := flag.Int("batch", 50, "Outbox rows claimed per poll")
	pollInterval := flag.Duration("poll", time.Second, "Outbox poll interval")
	maxAttempts := flag.Int("max-attempts", 10, "Publish attempts before a row goes DEAD")
	metricsAddr := flag.String("metrics-addr", ":9102", "Prometheus metrics listen address (empty to disable)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	dispatcher := workflow.NewNotificationDispatcher(db, logger)
	dispatcher.BatchSize = *batchSize
	dispatcher.PollInterval = *pollInterval
	dispatcher.MaxAttempts = *maxAttempts

	fmt.Printf("notification dispatcher %s started\n", dispatcher.DispatcherID)
	dispatcher.Run(ctx)
	fmt.Println("notification dispatcher stopped")
}
