package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmretail/retail_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductForecast is an immutable point-in-time snapshot. New computations
// append; nothing updates an existing row. The snapshot history doubles as the
// de-duplication source for notifications: a fresh snapshot with the same
// stock unit and risk level inside the cooldown suppresses the repeat alert.
type ProductForecast struct {
	ID                      int             `gorm:"primary_key" json:"id"`
	TenantId                string          `gorm:"size:36;index:idx_forecasts_unit,priority:1;not null" json:"tenant_id"`
	ProductId               int             `gorm:"index:idx_forecasts_unit,priority:2;not null" json:"product_id"`
	VariationId             *int            `gorm:"index:idx_forecasts_unit,priority:3" json:"variation_id"`
	WindowDays              int             `gorm:"not null" json:"window_days"`
	AvgDailySales           float64         `json:"avg_daily_sales"`
	PredictedDaysToStockout float64         `json:"predicted_days_to_stockout"`
	CurrentQuantity         decimal.Decimal `gorm:"type:decimal(20,3)" json:"current_quantity"`
	SafetyStock             decimal.Decimal `gorm:"type:decimal(20,3)" json:"safety_stock"`
	ReorderPoint            decimal.Decimal `gorm:"type:decimal(20,3)" json:"reorder_point"`
	StockRiskLevel          RiskLevel       `gorm:"size:20;index:idx_forecasts_unit,priority:4;not null" json:"stock_risk_level"`
	ForecastedAt            time.Time       `gorm:"index;not null" json:"forecasted_at"`
	CreatedAt               time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func CreateProductForecast(ctx context.Context, forecast *ProductForecast) error {
	if forecast.TenantId == "" {
		return errors.New("tenant id is required")
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(forecast).Error
}

// HasRecentForecast reports whether a snapshot for the same stock unit and
// risk level exists at or after the cutoff. Risk levels are tracked as
// distinct cooldown keys per stock unit.
func HasRecentForecast(ctx context.Context, unit StockUnit, risk RiskLevel, since time.Time) (bool, error) {
	db := config.GetDB()
	var count int64
	dbCtx := db.WithContext(ctx).Model(&ProductForecast{}).
		Where("tenant_id = ? AND product_id = ?", unit.TenantId, unit.ProductId).
		Where("stock_risk_level = ?", risk).
		Where("forecasted_at >= ?", since)
	if unit.IsVariant() {
		dbCtx = dbCtx.Where("variation_id = ?", unit.VariationId())
	} else {
		dbCtx = dbCtx.Where("variation_id IS NULL")
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// LatestForecast returns the most recent snapshot for a stock unit, or nil.
func LatestForecast(ctx context.Context, unit StockUnit) (*ProductForecast, error) {
	db := config.GetDB()
	var forecast ProductForecast
	dbCtx := db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", unit.TenantId, unit.ProductId)
	if unit.IsVariant() {
		dbCtx = dbCtx.Where("variation_id = ?", unit.VariationId())
	} else {
		dbCtx = dbCtx.Where("variation_id IS NULL")
	}
	if err := dbCtx.Order("forecasted_at DESC, id DESC").First(&forecast).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &forecast, nil
}
