package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/models"
	"github.com/mmretail/retail_backend/utils"
	"github.com/mmretail/retail_backend/workflow"
	"github.com/shopspring/decimal"
)

// seedSaleHistory inserts already-settled sale rows directly; the stock they
// consumed is assumed to predate the product's current quantity, so the
// ledger is bypassed on purpose. Rows land on each of the most recent `days`
// UTC calendar days including today, so every weighting segment the engine
// reads from the tail of the window is fully covered.
func seedSaleHistory(t *testing.T, tenantId string, productId int, variationId *int, perDay decimal.Decimal, days int) {
	t.Helper()
	db := config.GetDB()
	now := time.Now().UTC()
	for offset := 0; offset < days; offset++ {
		day := now.AddDate(0, 0, -offset)
		sale := models.Sale{
			TenantId:    tenantId,
			ProductId:   productId,
			VariationId: variationId,
			Quantity:    perDay,
			UnitPrice:   decimal.NewFromInt(12000),
			TotalAmount: perDay.Mul(decimal.NewFromInt(12000)),
			SaleDate:    time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC),
		}
		if err := db.Create(&sale).Error; err != nil {
			t.Fatalf("seed sale history: %v", err)
		}
	}
}

func TestForecastBatchSnapshotAndNotificationDedup(t *testing.T) {
	setupRetailEnv(t)
	ctx := context.Background()
	tenantId := seedTenant(t)
	db := config.GetDB()
	logger := config.GetLogger()

	// 2/day on each of the 28 most recent days against 18 on hand, lead time
	// 7, min threshold 10. Every weighting segment averages exactly 2, so
	// reorder point is 2*7+10 = 24 with nine days of cover. Warning, not
	// critical.
	product := models.Product{
		TenantId:          tenantId,
		Name:              "Drip Filter Pack",
		Sku:               "FILT-1",
		Quantity:          decimal.NewFromInt(18),
		LeadTimeDays:      7,
		MinStockThreshold: 10,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	seedSaleHistory(t, tenantId, product.ID, nil, decimal.NewFromInt(2), 28)

	if err := workflow.RunForecastBatch(ctx, logger, tenantId, 0); err != nil {
		t.Fatalf("RunForecastBatch: %v", err)
	}

	var forecasts []models.ProductForecast
	if err := db.Where("tenant_id = ? AND product_id = ?", tenantId, product.ID).
		Order("id ASC").Find(&forecasts).Error; err != nil {
		t.Fatalf("load forecasts: %v", err)
	}
	if len(forecasts) != 1 {
		t.Fatalf("forecast snapshots = %d, want 1", len(forecasts))
	}
	if forecasts[0].StockRiskLevel != models.RiskLevelWarning {
		t.Fatalf("risk = %s, want %s", forecasts[0].StockRiskLevel, models.RiskLevelWarning)
	}
	if !forecasts[0].ReorderPoint.Equal(decimal.NewFromInt(24)) {
		t.Fatalf("reorder point = %s, want 24", forecasts[0].ReorderPoint)
	}

	var outbox []models.ForecastNotificationRecord
	if err := db.Where("tenant_id = ? AND product_id = ?", tenantId, product.ID).
		Find(&outbox).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(outbox) != 1 {
		t.Fatalf("outbox rows = %d, want 1 (one admin recipient)", len(outbox))
	}
	if outbox[0].PublishStatus != models.NotificationStatusPending {
		t.Fatalf("publish status = %s, want %s", outbox[0].PublishStatus, models.NotificationStatusPending)
	}

	// Second run inside the cooldown: the snapshot history grows, the alert
	// does not repeat.
	if err := workflow.RunForecastBatch(ctx, logger, tenantId, 0); err != nil {
		t.Fatalf("RunForecastBatch (second): %v", err)
	}
	var snapshotCount, outboxCount int64
	db.Model(&models.ProductForecast{}).
		Where("tenant_id = ? AND product_id = ?", tenantId, product.ID).Count(&snapshotCount)
	db.Model(&models.ForecastNotificationRecord{}).
		Where("tenant_id = ? AND product_id = ?", tenantId, product.ID).Count(&outboxCount)
	if snapshotCount != 2 {
		t.Fatalf("snapshots after second run = %d, want 2", snapshotCount)
	}
	if outboxCount != 1 {
		t.Fatalf("outbox rows after second run = %d, want 1 (deduplicated)", outboxCount)
	}

	latest, err := models.LatestForecast(ctx, models.StandaloneUnit(tenantId, product.ID))
	if err != nil {
		t.Fatalf("LatestForecast: %v", err)
	}
	if latest == nil || latest.ID <= forecasts[0].ID {
		t.Fatalf("latest snapshot %+v is not from the second run", latest)
	}
	if latest.StockRiskLevel != models.RiskLevelWarning {
		t.Fatalf("latest risk = %s, want %s", latest.StockRiskLevel, models.RiskLevelWarning)
	}
}

func TestForecastBatchDormantUnitNeverNotifies(t *testing.T) {
	setupRetailEnv(t)
	ctx := context.Background()
	tenantId := seedTenant(t)
	db := config.GetDB()
	logger := config.GetLogger()

	product := models.Product{
		TenantId:          tenantId,
		Name:              "Seasonal Garland",
		Sku:               "GARL-1",
		Quantity:          decimal.NewFromInt(40),
		LeadTimeDays:      7,
		MinStockThreshold: 5,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}

	if err := workflow.RunForecastBatch(ctx, logger, tenantId, 0); err != nil {
		t.Fatalf("RunForecastBatch: %v", err)
	}
	// Re-run inside the dormancy cooldown: no second dormant snapshot.
	if err := workflow.RunForecastBatch(ctx, logger, tenantId, 0); err != nil {
		t.Fatalf("RunForecastBatch (second): %v", err)
	}

	var forecasts []models.ProductForecast
	if err := db.Where("tenant_id = ? AND product_id = ?", tenantId, product.ID).
		Find(&forecasts).Error; err != nil {
		t.Fatalf("load forecasts: %v", err)
	}
	if len(forecasts) != 1 {
		t.Fatalf("dormant snapshots = %d, want 1", len(forecasts))
	}
	if forecasts[0].StockRiskLevel != models.RiskLevelInactive {
		t.Fatalf("risk = %s, want %s", forecasts[0].StockRiskLevel, models.RiskLevelInactive)
	}

	var outboxCount int64
	db.Model(&models.ForecastNotificationRecord{}).
		Where("tenant_id = ? AND product_id = ?", tenantId, product.ID).Count(&outboxCount)
	if outboxCount != 0 {
		t.Fatalf("outbox rows = %d, want 0 (dormant units never alert)", outboxCount)
	}
}

func TestDeactivatedTenantLeavesBatchRotation(t *testing.T) {
	setupRetailEnv(t)
	ctx := context.Background()
	activeId := seedTenant(t)
	retiredId := seedTenant(t)

	// Warm the cache first: deactivation must invalidate it, not wait out the TTL.
	if _, err := models.GetTenantById(ctx, retiredId); err != nil {
		t.Fatalf("GetTenantById: %v", err)
	}
	if err := models.DeactivateTenant(ctx, retiredId); err != nil {
		t.Fatalf("DeactivateTenant: %v", err)
	}
	refreshed, err := models.GetTenantById(ctx, retiredId)
	if err != nil {
		t.Fatalf("GetTenantById after deactivation: %v", err)
	}
	if utils.DereferencePtr(refreshed.IsActive) {
		t.Fatal("deactivated tenant still reads active through the cache")
	}

	var seen []string
	if err := models.ForEachActiveTenant(ctx, 100, func(tenant *models.Tenant) error {
		seen = append(seen, tenant.ID)
		return nil
	}); err != nil {
		t.Fatalf("ForEachActiveTenant: %v", err)
	}
	foundActive := false
	for _, id := range seen {
		if id == retiredId {
			t.Fatal("deactivated tenant is still scheduled for batch runs")
		}
		if id == activeId {
			foundActive = true
		}
	}
	if !foundActive {
		t.Fatal("active tenant missing from the batch rotation")
	}

	if err := models.DeactivateTenant(ctx, "no-such-tenant"); err != utils.ErrorRecordNotFound {
		t.Fatalf("expected record not found for unknown tenant, got %v", err)
	}
}

func TestForecastBatchVariationsAreForecastIndividually(t *testing.T) {
	setupRetailEnv(t)
	ctx := context.Background()
	tenantId := seedTenant(t)
	db := config.GetDB()
	logger := config.GetLogger()

	product := models.Product{
		TenantId:          tenantId,
		Name:              "Canvas Sneaker",
		Sku:               "SNKR-1",
		Quantity:          decimal.NewFromInt(63),
		LeadTimeDays:      7,
		MinStockThreshold: 4,
		Variations: []models.ProductVariation{
			{TenantId: tenantId, Name: "40", Sku: "SNKR-1-40", Quantity: decimal.NewFromInt(3)},
			{TenantId: tenantId, Name: "42", Sku: "SNKR-1-42", Quantity: decimal.NewFromInt(60)},
		},
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product with variations: %v", err)
	}
	low := product.Variations[0]
	healthy := product.Variations[1]
	seedSaleHistory(t, tenantId, product.ID, &low.ID, decimal.NewFromInt(2), 28)
	seedSaleHistory(t, tenantId, product.ID, &healthy.ID, decimal.NewFromInt(2), 28)

	if err := workflow.RunForecastBatch(ctx, logger, tenantId, 0); err != nil {
		t.Fatalf("RunForecastBatch: %v", err)
	}

	// Only the depleted size is at risk; the healthy one produces no snapshot
	// and no parent-level snapshot exists at all.
	var forecasts []models.ProductForecast
	if err := db.Where("tenant_id = ? AND product_id = ?", tenantId, product.ID).
		Find(&forecasts).Error; err != nil {
		t.Fatalf("load forecasts: %v", err)
	}
	if len(forecasts) != 1 {
		t.Fatalf("forecast snapshots = %d, want 1", len(forecasts))
	}
	if utils.DereferencePtr(forecasts[0].VariationId) != low.ID {
		t.Fatalf("snapshot variation = %v, want %d", forecasts[0].VariationId, low.ID)
	}
	// 3 on hand against 2/day: a day and a half of cover, inside half the
	// lead time.
	if forecasts[0].StockRiskLevel != models.RiskLevelCritical {
		t.Fatalf("risk = %s, want %s", forecasts[0].StockRiskLevel, models.RiskLevelCritical)
	}
}
