package models

import (
	"context"
	"time"

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductVariation is the authoritative stock unit whenever a product has
// variations (e.g. size/color). Sales and forecasts target the variation, not
// the parent.
type ProductVariation struct {
	ID        int             `gorm:"primary_key" json:"id"`
	TenantId  string          `gorm:"size:36;index;not null" json:"tenant_id"`
	ProductId int             `gorm:"index;not null" json:"product_id"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	Sku       string          `gorm:"size:100;index" json:"sku"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,3);default:0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetProductVariation(ctx context.Context, tenantId string, variationId int) (*ProductVariation, error) {
	var variation ProductVariation
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, variationId).
		First(&variation).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrStockUnitNotFound
		}
		return nil, err
	}
	return &variation, nil
}
