package models

import (
	"context"
	"errors"

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stock ledger: the only writers of products.quantity / product_variations.quantity.
// Sale and return lifecycles call ReserveStock/ReleaseStock explicitly inside
// their own transaction; there are no model-hook side effects.
//
// Lock order is parent product first, then variation. Every code path that
// touches both rows must follow it or risk deadlock.

// ReserveStock decrements on-hand quantity after verifying availability under
// an exclusive row lock. For a variation unit the variation is authoritative
// and the parent rollup is kept in sync in the same transaction. The caller
// owns the transaction; on error it must roll back so the enclosing sale write
// and the ledger adjustment land or fail together.
func ReserveStock(tx *gorm.DB, unit StockUnit, quantity decimal.Decimal) error {
	quantity = quantity.Round(3)
	if !quantity.IsPositive() {
		return errors.New("reserve quantity must be positive")
	}

	product, err := lockProduct(tx, unit.TenantId, unit.ProductId)
	if err != nil {
		return err
	}

	if unit.IsVariant() {
		variation, err := lockVariation(tx, unit)
		if err != nil {
			return err
		}
		if variation.Quantity.LessThan(quantity) {
			return &utils.InsufficientStockError{Requested: quantity, Available: variation.Quantity}
		}
		if err := tx.Exec("UPDATE product_variations SET quantity = quantity - ? WHERE id = ?",
			quantity, variation.ID).Error; err != nil {
			return utils.MapLockError(err)
		}
		// Parent quantity is a rollup over variations; adjust it unchecked so
		// it tracks the authoritative variation rows. SyncProductRollup repairs
		// any historical drift.
		if err := tx.Exec("UPDATE products SET quantity = quantity - ? WHERE id = ?",
			quantity, product.ID).Error; err != nil {
			return utils.MapLockError(err)
		}
		return nil
	}

	if product.Quantity.LessThan(quantity) {
		return &utils.InsufficientStockError{Requested: quantity, Available: product.Quantity}
	}
	if err := tx.Exec("UPDATE products SET quantity = quantity - ? WHERE id = ?",
		quantity, product.ID).Error; err != nil {
		return utils.MapLockError(err)
	}
	return nil
}

// ReleaseStock adds quantity back (sale deleted, or a return accepted).
// Release amounts are bounded by prior reservations, so there is no upper
// bound check; only positivity is enforced.
func ReleaseStock(tx *gorm.DB, unit StockUnit, quantity decimal.Decimal) error {
	quantity = quantity.Round(3)
	if !quantity.IsPositive() {
		return errors.New("release quantity must be positive")
	}

	product, err := lockProduct(tx, unit.TenantId, unit.ProductId)
	if err != nil {
		return err
	}

	if unit.IsVariant() {
		variation, err := lockVariation(tx, unit)
		if err != nil {
			return err
		}
		if err := tx.Exec("UPDATE product_variations SET quantity = quantity + ? WHERE id = ?",
			quantity, variation.ID).Error; err != nil {
			return utils.MapLockError(err)
		}
	}
	if err := tx.Exec("UPDATE products SET quantity = quantity + ? WHERE id = ?",
		quantity, product.ID).Error; err != nil {
		return utils.MapLockError(err)
	}
	return nil
}

// GetCurrentQuantity is a plain consistent read, no lock held. The forecast
// engine reads each unit's quantity exactly once per computation through this.
func GetCurrentQuantity(ctx context.Context, tenantId string, unit StockUnit) (decimal.Decimal, error) {
	db := config.GetDB()
	var quantity decimal.Decimal
	dbCtx := db.WithContext(ctx)
	var err error
	if unit.IsVariant() {
		err = dbCtx.Model(&ProductVariation{}).
			Where("tenant_id = ? AND id = ?", tenantId, unit.VariationId()).
			Select("quantity").Scan(&quantity).Error
	} else {
		err = dbCtx.Model(&Product{}).
			Where("tenant_id = ? AND id = ?", tenantId, unit.ProductId).
			Select("quantity").Scan(&quantity).Error
	}
	if err != nil {
		return decimal.Zero, err
	}
	return quantity, nil
}

// SyncProductRollup recomputes the parent product quantity as the sum of its
// variation quantities. No-op for products without variations.
func SyncProductRollup(tx *gorm.DB, tenantId string, productId int) error {
	if _, err := lockProduct(tx, tenantId, productId); err != nil {
		return err
	}
	var count int64
	if err := tx.Model(&ProductVariation{}).
		Where("tenant_id = ? AND product_id = ?", tenantId, productId).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	return tx.Exec(`
UPDATE products
SET quantity = (
	SELECT COALESCE(SUM(quantity), 0)
	FROM product_variations
	WHERE tenant_id = ? AND product_id = ?
)
WHERE tenant_id = ? AND id = ?`,
		tenantId, productId, tenantId, productId).Error
}

func lockProduct(tx *gorm.DB, tenantId string, productId int) (*Product, error) {
	var product Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantId, productId).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrStockUnitNotFound
		}
		return nil, utils.MapLockError(err)
	}
	return &product, nil
}

func lockVariation(tx *gorm.DB, unit StockUnit) (*ProductVariation, error) {
	var variation ProductVariation
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ? AND product_id = ?", unit.TenantId, unit.VariationId(), unit.ProductId).
		First(&variation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrStockUnitNotFound
		}
		return nil, utils.MapLockError(err)
	}
	return &variation, nil
}
