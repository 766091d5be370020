package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReturnItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	TenantId     string          `gorm:"size:36;index;not null" json:"tenant_id"`
	SaleId       int             `gorm:"index;not null" json:"sale_id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	VariationId  *int            `gorm:"index" json:"variation_id"`
	CustomerId   *int            `gorm:"index" json:"customer_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"quantity"`
	RefundAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"refund_amount"`
	Reason       string          `gorm:"size:500" json:"reason"`
	ReturnDate   time.Time       `gorm:"not null" json:"return_date"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReturnItem struct {
	SaleId       int             `validate:"required,gt=0"`
	Quantity     decimal.Decimal `validate:"required"`
	RefundAmount decimal.Decimal
	Reason       string
	ReturnDate   time.Time `validate:"required"`
}

// sumReturnedQuantity totals prior returns against a sale. Callers must hold
// the sale row lock so concurrent returns serialize on the same bound.
func sumReturnedQuantity(tx *gorm.DB, tenantId string, saleId int) (decimal.Decimal, error) {
	var returned decimal.Decimal
	if err := tx.Model(&ReturnItem{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("tenant_id = ? AND sale_id = ?", tenantId, saleId).
		Scan(&returned).Error; err != nil {
		return decimal.Zero, err
	}
	return returned, nil
}

// CreateReturnItem accepts a return against a prior sale and releases the
// returned quantity back to stock. Cumulative returns never exceed the sale's
// quantity; the check runs under the sale's row lock.
func CreateReturnItem(ctx context.Context, tenantId string, input *NewReturnItem) (*ReturnItem, error) {
	db := config.GetDB()

	if tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	quantity := input.Quantity.Round(3)
	if !quantity.IsPositive() {
		return nil, errors.New("quantity must be positive")
	}
	if input.RefundAmount.IsNegative() {
		return nil, errors.New("refund amount cannot be negative")
	}

	tx := db.Begin()

	var sale Sale
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantId, input.SaleId).
		First(&sale).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("sale not found")
		}
		return nil, utils.MapLockError(err)
	}

	returned, err := sumReturnedQuantity(tx.WithContext(ctx), tenantId, sale.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	remaining := sale.Quantity.Sub(returned)
	if quantity.GreaterThan(remaining) {
		tx.Rollback()
		return nil, errors.New("return quantity exceeds the remaining returnable amount (" + remaining.String() + ")")
	}

	if err := ReleaseStock(tx.WithContext(ctx), sale.StockUnit(), quantity); err != nil {
		tx.Rollback()
		return nil, err
	}

	returnItem := ReturnItem{
		TenantId:     tenantId,
		SaleId:       sale.ID,
		ProductId:    sale.ProductId,
		VariationId:  sale.VariationId,
		CustomerId:   sale.CustomerId,
		Quantity:     quantity,
		RefundAmount: input.RefundAmount,
		Reason:       input.Reason,
		ReturnDate:   input.ReturnDate,
	}
	if err := tx.WithContext(ctx).Create(&returnItem).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &returnItem, nil
}

// DeleteReturnItem re-deducts the previously released quantity. The deduction
// is checked like any reservation, so deleting a return can fail with
// insufficient stock if the released units were sold in the meantime.
func DeleteReturnItem(ctx context.Context, tenantId string, returnItemId int) error {
	db := config.GetDB()

	if tenantId == "" {
		return errors.New("tenant id is required")
	}

	tx := db.Begin()

	var returnItem ReturnItem
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantId, returnItemId).
		First(&returnItem).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return utils.MapLockError(err)
	}

	unit := StandaloneUnit(tenantId, returnItem.ProductId)
	if returnItem.VariationId != nil && *returnItem.VariationId > 0 {
		unit = VariantUnit(tenantId, returnItem.ProductId, *returnItem.VariationId)
	}
	if err := ReserveStock(tx.WithContext(ctx), unit, returnItem.Quantity); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, returnItem.ID).
		Delete(&ReturnItem{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
