package models

import (
	"context"
	"time"

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          int             `gorm:"primary_key" json:"id"`
	TenantId    string          `gorm:"size:36;index:idx_products_tenant;not null" json:"tenant_id"`
	Name        string          `gorm:"size:200;not null" json:"name"`
	Sku         string          `gorm:"size:100;index" json:"sku"`
	Description string          `gorm:"size:1000" json:"description"`
	CategoryId  *int            `gorm:"index" json:"category_id"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	// Quantity is authoritative for standalone products. When variations
	// exist it is a rollup of their quantities, maintained by the ledger and
	// repairable with SyncProductRollup.
	Quantity          decimal.Decimal    `gorm:"type:decimal(20,3);default:0" json:"quantity"`
	LeadTimeDays      int                `gorm:"default:7" json:"lead_time_days"`
	MinStockThreshold int                `gorm:"default:10" json:"min_stock_threshold"`
	Variations        []ProductVariation `gorm:"foreignKey:ProductId" json:"variations"`
	CreatedAt         time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type ProductCategory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"size:36;index;not null" json:"tenant_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetProduct(ctx context.Context, tenantId string, productId int) (*Product, error) {
	var product Product
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, productId).
		First(&product).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrStockUnitNotFound
		}
		return nil, err
	}
	return &product, nil
}

func GetProductWithVariations(ctx context.Context, tenantId string, productId int) (*Product, error) {
	var product Product
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Preload("Variations", "tenant_id = ?", tenantId).
		Where("tenant_id = ? AND id = ?", tenantId, productId).
		First(&product).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrStockUnitNotFound
		}
		return nil, err
	}
	return &product, nil
}

// ForEachProduct iterates a tenant's products in bounded chunks with their
// variations preloaded. The forecast batch walks every stock unit this way.
func ForEachProduct(ctx context.Context, tenantId string, chunkSize int, fn func(*Product) error) error {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	db := config.GetDB()
	lastId := 0
	for {
		var products []*Product
		if err := db.WithContext(ctx).
			Preload("Variations", "tenant_id = ?", tenantId).
			Where("tenant_id = ?", tenantId).
			Where("id > ?", lastId).
			Order("id ASC").
			Limit(chunkSize).
			Find(&products).Error; err != nil {
			return err
		}
		if len(products) == 0 {
			return nil
		}
		for _, product := range products {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(product); err != nil {
				return err
			}
			lastId = product.ID
		}
	}
}
