package workflow

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const forecastModule = "ForecastWorkflow"

// stockUnitScope pairs a ledger unit with the reorder settings it inherits
// from the parent product.
type stockUnitScope struct {
	unit              models.StockUnit
	leadTimeDays      int
	minStockThreshold int
}

// RunForecastBatch computes a stockout-risk forecast for every stock unit of
// one tenant. One invocation per tenant per cadence (daily). The batch is
// idempotent: re-running appends snapshots but the cooldowns keep dormant
// noise and repeat notifications down.
//
// A failing unit is logged and skipped; it never aborts the remaining units.
// Cancellation is honored between units, so an interrupted batch can simply be
// re-run.
func RunForecastBatch(ctx context.Context, logger *logrus.Logger, tenantId string, windowDays int) error {
	policy := config.GetForecastPolicy()
	if windowDays > 0 {
		policy.WindowDays = windowDays
	}

	// One batch per tenant across instances.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "forecastBatch:"+tenantId, 15*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			config.LogError(logger, forecastModule, "RunForecastBatch", "another forecast batch holds the tenant lock", tenantId, err)
			return err
		} else if err != nil {
			return err
		}
		defer func() {
			_ = lock.Release(ctx)
		}()
	}

	tracer := otel.Tracer("workflow/forecast")
	ctx, span := tracer.Start(ctx, "RunForecastBatch",
		trace.WithAttributes(
			attribute.String("tenant_id", tenantId),
			attribute.Int("window_days", policy.WindowDays),
		))
	defer span.End()

	started := time.Now()
	defer func() {
		forecastBatchDurationSeconds.Observe(time.Since(started).Seconds())
	}()

	admins, err := models.GetTenantAdmins(ctx, tenantId)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	correlationId := uuid.NewString()

	return models.ForEachProduct(ctx, tenantId, policy.ChunkSize, func(product *models.Product) error {
		for _, scope := range stockUnitScopes(tenantId, product) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := forecastOneUnit(ctx, scope, policy, admins, now, correlationId); err != nil {
				// Isolate: one malformed unit must not starve the rest of the batch.
				config.LogError(logger, forecastModule, "forecastOneUnit", "unit computation failed, skipping", scope.unit.Key(), err)
				forecastUnitFailuresTotal.Inc()
			}
		}
		return nil
	})
}

// stockUnitScopes lists the authoritative stock units of a product: its
// variations when it has any, otherwise the product itself. Lead time and
// minimum threshold are product-level settings either way.
func stockUnitScopes(tenantId string, product *models.Product) []stockUnitScope {
	if len(product.Variations) > 0 {
		scopes := make([]stockUnitScope, 0, len(product.Variations))
		for _, variation := range product.Variations {
			scopes = append(scopes, stockUnitScope{
				unit:              models.VariantUnit(tenantId, product.ID, variation.ID),
				leadTimeDays:      product.LeadTimeDays,
				minStockThreshold: product.MinStockThreshold,
			})
		}
		return scopes
	}
	return []stockUnitScope{{
		unit:              models.StandaloneUnit(tenantId, product.ID),
		leadTimeDays:      product.LeadTimeDays,
		minStockThreshold: product.MinStockThreshold,
	}}
}

func forecastOneUnit(ctx context.Context, scope stockUnitScope, policy config.ForecastPolicy, admins []*models.User, now time.Time, correlationId string) error {
	unit := scope.unit

	// Read the quantity exactly once; the forecast is advisory, a consistent
	// read is enough and no lock is held across the computation.
	currentQty, err := models.GetCurrentQuantity(ctx, unit.TenantId, unit)
	if err != nil {
		return err
	}

	dailySeries, err := models.GetDailySalesSeries(ctx, unit, policy.WindowDays, now)
	if err != nil {
		return err
	}
	series := make([]float64, len(dailySeries))
	for i, qty := range dailySeries {
		series[i] = qty.InexactFloat64()
	}

	result, err := ComputeForecast(series, currentQty.InexactFloat64(), scope.leadTimeDays, scope.minStockThreshold, policy)
	if err != nil {
		return err
	}
	forecastUnitsTotal.WithLabelValues(string(result.Risk)).Inc()

	switch result.Risk {
	case models.RiskLevelOk:
		// Only at-risk states are recorded; the snapshot history stays meaningful.
		return nil
	case models.RiskLevelInactive:
		return persistDormantSnapshot(ctx, unit, currentQty, policy, now)
	default:
		return persistAtRiskSnapshot(ctx, unit, currentQty, result, policy, admins, now, correlationId)
	}
}

// persistDormantSnapshot records a dormant unit unless one was already
// recorded within the dormancy cooldown. Dormant units never notify.
func persistDormantSnapshot(ctx context.Context, unit models.StockUnit, currentQty decimal.Decimal, policy config.ForecastPolicy, now time.Time) error {
	recent, err := models.HasRecentForecast(ctx, unit, models.RiskLevelInactive, now.Add(-policy.DormancyCooldown))
	if err != nil {
		return err
	}
	if recent {
		return nil
	}
	return models.CreateProductForecast(ctx, &models.ProductForecast{
		TenantId:                unit.TenantId,
		ProductId:               unit.ProductId,
		VariationId:             unit.VariationIdPtr(),
		WindowDays:              policy.WindowDays,
		CurrentQuantity:         currentQty,
		PredictedDaysToStockout: policy.DaysToStockoutSentinel,
		StockRiskLevel:          models.RiskLevelInactive,
		ForecastedAt:            now,
	})
}

// persistAtRiskSnapshot always appends the snapshot (audit/history) and
// enqueues notifications only when no snapshot with the same stock unit and
// risk level exists inside the notification cooldown.
func persistAtRiskSnapshot(ctx context.Context, unit models.StockUnit, currentQty decimal.Decimal, result ForecastResult, policy config.ForecastPolicy, admins []*models.User, now time.Time, correlationId string) error {
	suppress, err := models.HasRecentForecast(ctx, unit, result.Risk, now.Add(-policy.NotificationCooldown))
	if err != nil {
		return err
	}

	forecast := models.ProductForecast{
		TenantId:                unit.TenantId,
		ProductId:               unit.ProductId,
		VariationId:             unit.VariationIdPtr(),
		WindowDays:              policy.WindowDays,
		AvgDailySales:           result.AdjustedDailyDemand,
		PredictedDaysToStockout: result.DaysToStockout,
		CurrentQuantity:         currentQty,
		SafetyStock:             decimal.NewFromFloat(result.SafetyStock).Round(3),
		ReorderPoint:            decimal.NewFromFloat(result.ReorderPoint).Round(3),
		StockRiskLevel:          result.Risk,
		ForecastedAt:            now,
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&forecast).Error; err != nil {
		tx.Rollback()
		return err
	}
	if !suppress {
		if err := models.EnqueueForecastNotifications(tx.WithContext(ctx), &forecast, admins, result.DaysToStockout, correlationId); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	if suppress {
		forecastNotificationsSuppressedTotal.Inc()
	} else if len(admins) > 0 {
		forecastNotificationsTotal.Add(float64(len(admins)))
	}
	return nil
}
