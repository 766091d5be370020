package models

import (
	"time"

	"github.com/mmretail/retail_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ForecastNotificationRecord implements a transactional outbox: the forecast
// batch writes one row per admin recipient inside the snapshot's transaction
// and never publishes inline. The dispatcher publishes after commit and
// tracks delivery state here; a failed publish never rolls back the snapshot.
type ForecastNotificationRecord struct {
	ID               int             `gorm:"primary_key" json:"id"`
	TenantId         string          `gorm:"size:36;index;not null" json:"tenant_id"`
	ForecastId       int             `gorm:"index;not null" json:"forecast_id"`
	AdminUserId      int             `gorm:"not null" json:"admin_user_id"`
	AdminEmail       string          `gorm:"size:100;not null" json:"admin_email"`
	ProductId        int             `gorm:"not null" json:"product_id"`
	VariationId      *int            `json:"variation_id"`
	RiskLevel        RiskLevel       `gorm:"size:20;not null" json:"risk_level"`
	CurrentQuantity  decimal.Decimal `gorm:"type:decimal(20,3)" json:"current_quantity"`
	AvgDailySales    float64         `json:"avg_daily_sales"`
	ReorderPoint     decimal.Decimal `gorm:"type:decimal(20,3)" json:"reorder_point"`
	SafetyStock      decimal.Decimal `gorm:"type:decimal(20,3)" json:"safety_stock"`
	DaysToStockout   float64         `json:"days_to_stockout"`
	ForecastedAt     time.Time       `gorm:"not null" json:"forecasted_at"`
	CorrelationId    string          `gorm:"size:64;index" json:"correlation_id"`
	PublishStatus    string          `gorm:"size:20;index;default:PENDING" json:"publish_status"`
	PublishAttempts  int             `gorm:"default:0" json:"publish_attempts"`
	LastPublishError *string         `gorm:"size:500" json:"last_publish_error"`
	NextAttemptAt    *time.Time      `json:"next_attempt_at"`
	LockedAt         *time.Time      `json:"locked_at"`
	LockedBy         *string         `gorm:"size:64" json:"locked_by"`
	PublishedAt      *time.Time      `json:"published_at"`
	PubSubMessageId  *string         `gorm:"size:64" json:"pub_sub_message_id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToForecastNotificationMessage(rec ForecastNotificationRecord) config.ForecastNotificationMessage {
	return config.ForecastNotificationMessage{
		ID:              rec.ID,
		TenantId:        rec.TenantId,
		AdminUserId:     rec.AdminUserId,
		AdminEmail:      rec.AdminEmail,
		ProductId:       rec.ProductId,
		VariationId:     rec.VariationId,
		RiskLevel:       string(rec.RiskLevel),
		CurrentQuantity: rec.CurrentQuantity,
		AvgDailySales:   rec.AvgDailySales,
		ReorderPoint:    rec.ReorderPoint,
		SafetyStock:     rec.SafetyStock,
		DaysToStockout:  rec.DaysToStockout,
		ForecastedAt:    rec.ForecastedAt,
		CorrelationId:   rec.CorrelationId,
	}
}

// EnqueueForecastNotifications writes one pending outbox row per admin inside
// the caller's transaction.
func EnqueueForecastNotifications(tx *gorm.DB, forecast *ProductForecast, admins []*User, daysToStockout float64, correlationId string) error {
	for _, admin := range admins {
		record := ForecastNotificationRecord{
			TenantId:        forecast.TenantId,
			ForecastId:      forecast.ID,
			AdminUserId:     admin.ID,
			AdminEmail:      admin.Email,
			ProductId:       forecast.ProductId,
			VariationId:     forecast.VariationId,
			RiskLevel:       forecast.StockRiskLevel,
			CurrentQuantity: forecast.CurrentQuantity,
			AvgDailySales:   forecast.AvgDailySales,
			ReorderPoint:    forecast.ReorderPoint,
			SafetyStock:     forecast.SafetyStock,
			DaysToStockout:  daysToStockout,
			ForecastedAt:    forecast.ForecastedAt,
			CorrelationId:   correlationId,
			PublishStatus:   NotificationStatusPending,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}
