package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/models"
	"github.com/mmretail/retail_backend/workflow"
)

func main() {
	tenantID := flag.String("tenant-id", "", "Optional: run for a single tenant (uuid). Defaults to all active tenants.")
	windowDays := flag.Int("window", 0, "Optional: sales history window in days (default from FORECAST_WINDOW_DAYS)")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing tenants and continue with the rest")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()
	if config.GetRedisDB() == nil {
		fmt.Fprintln(os.Stderr, "redis not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.TrimSpace(*tenantID) != "" {
		if err := workflow.RunForecastBatch(ctx, logger, strings.TrimSpace(*tenantID), *windowDays); err != nil {
			fmt.Fprintf(os.Stderr, "forecast batch failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("forecast batch complete")
		return
	}

	var failed int
	err := models.ForEachActiveTenant(ctx, 100, func(tenant *models.Tenant) error {
		if err := workflow.RunForecastBatch(ctx, logger, tenant.ID, *windowDays); err != nil {
			if *continueOnError {
				failed++
				fmt.Fprintf(os.Stderr, "forecast batch failed for tenant %s (skipping): %v\n", tenant.ID, err)
				return nil
			}
			return fmt.Errorf("tenant %s: %w", tenant.ID, err)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "forecast run failed: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		fmt.Printf("forecast run complete with %d failed tenant(s)\n", failed)
		os.Exit(1)
	}
	fmt.Println("forecast run complete")
}
