package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/models"
	"gorm.io/gorm"
)

// Repairs parent product quantities that drifted from the sum of their
// variations (manual DB edits, interrupted migrations). Normal ledger writes
// keep the rollup in sync; this tool re-derives it.
func main() {
	tenantID := flag.String("tenant-id", "", "Required: tenant id (uuid)")
	productID := flag.Int("product-id", 0, "Optional: single product id. Defaults to every product with variations.")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing products and continue with the rest")
	flag.Parse()

	if strings.TrimSpace(*tenantID) == "" {
		fmt.Fprintln(os.Stderr, "--tenant-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	var productIDs []int
	if *productID > 0 {
		if _, err := models.GetProduct(context.Background(), strings.TrimSpace(*tenantID), *productID); err != nil {
			fmt.Fprintf(os.Stderr, "product %d: %v\n", *productID, err)
			os.Exit(1)
		}
		productIDs = append(productIDs, *productID)
	} else {
		if err := db.Raw(`
			SELECT DISTINCT product_id
			FROM product_variations
			WHERE tenant_id = ?
			ORDER BY product_id
		`, strings.TrimSpace(*tenantID)).Scan(&productIDs).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover products: %v\n", err)
			os.Exit(1)
		}
	}

	var failed int
	for _, id := range productIDs {
		if err := db.Transaction(func(tx *gorm.DB) error {
			return models.SyncProductRollup(tx, strings.TrimSpace(*tenantID), id)
		}); err != nil {
			if *continueOnError {
				failed++
				fmt.Fprintf(os.Stderr, "rollup sync failed for product %d (skipping): %v\n", id, err)
				continue
			}
			fmt.Fprintf(os.Stderr, "rollup sync failed for product %d: %v\n", id, err)
			os.Exit(1)
		}
		fmt.Printf("synced rollup tenant=%s product=%d\n", strings.TrimSpace(*tenantID), id)
	}

	if failed > 0 {
		fmt.Printf("rollup backfill complete with %d failure(s)\n", failed)
		os.Exit(1)
	}
	fmt.Println("rollup backfill complete")
}
