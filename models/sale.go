package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sale is immutable once created except through UpdateSale, which reverses and
// reapplies its reservation as one atomic pair.
type Sale struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TenantId      string          `gorm:"size:36;index:idx_sales_tenant_product,priority:1;not null" json:"tenant_id"`
	ProductId     int             `gorm:"index:idx_sales_tenant_product,priority:2;not null" json:"product_id"`
	VariationId   *int            `gorm:"index" json:"variation_id"`
	CustomerId    *int            `gorm:"index" json:"customer_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Discount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	PaymentMethod string          `gorm:"size:30" json:"payment_method"`
	Notes         string          `gorm:"size:500" json:"notes"`
	SaleDate      time.Time       `gorm:"index:idx_sales_tenant_product,priority:3;not null" json:"sale_date"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// StockUnit resolves the ledger row this sale reserved against. The variation
// takes precedence over the parent product when both are referenced.
func (s *Sale) StockUnit() StockUnit {
	if s.VariationId != nil && *s.VariationId > 0 {
		return VariantUnit(s.TenantId, s.ProductId, *s.VariationId)
	}
	return StandaloneUnit(s.TenantId, s.ProductId)
}

type NewSale struct {
	ProductId     int             `validate:"required,gt=0"`
	VariationId   *int            `validate:"omitempty,gt=0"`
	CustomerId    *int            `validate:"omitempty,gt=0"`
	Quantity      decimal.Decimal `validate:"required"`
	UnitPrice     decimal.Decimal `validate:"required"`
	Discount      decimal.Decimal
	PaymentMethod string
	Notes         string
	SaleDate      time.Time `validate:"required"`
}

type UpdateSaleInput struct {
	Quantity  decimal.Decimal `validate:"required"`
	UnitPrice decimal.Decimal `validate:"required"`
	Discount  decimal.Decimal
	Notes     string
	SaleDate  time.Time `validate:"required"`
}

var validate = validator.New()

// validationError flattens struct-tag failures into the field→tag map callers
// surface to end users.
func validationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		return fmt.Errorf("validation failed: %v", utils.ProcessValidationErrors(err))
	}
	return err
}

func saleTotal(quantity, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Sub(discount)
}

func validateSaleAmounts(quantity, unitPrice, discount decimal.Decimal) error {
	if !quantity.Round(3).IsPositive() {
		return errors.New("quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return errors.New("unit price cannot be negative")
	}
	if discount.IsNegative() {
		return errors.New("discount cannot be negative")
	}
	if discount.GreaterThan(quantity.Mul(unitPrice)) {
		return errors.New("discount cannot exceed the sale amount")
	}
	return nil
}

// CreateSale inserts the sale and decrements stock in one transaction. The
// availability check and the decrement happen under the same row lock, so two
// concurrent sales can never oversell the unit.
func CreateSale(ctx context.Context, tenantId string, input *NewSale) (*Sale, error) {
	db := config.GetDB()

	if tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	if err := validateSaleAmounts(input.Quantity, input.UnitPrice, input.Discount); err != nil {
		return nil, err
	}
	if _, err := GetTenantById(ctx, tenantId); err != nil {
		return nil, errors.New("tenant not found")
	}

	unit := StandaloneUnit(tenantId, input.ProductId)
	if input.VariationId != nil && *input.VariationId > 0 {
		variation, err := GetProductVariation(ctx, tenantId, *input.VariationId)
		if err != nil {
			return nil, err
		}
		if variation.ProductId != input.ProductId {
			return nil, errors.New("variation does not belong to the product")
		}
		unit = VariantUnit(tenantId, input.ProductId, *input.VariationId)
	}

	quantity := input.Quantity.Round(3)
	sale := Sale{
		TenantId:      tenantId,
		ProductId:     input.ProductId,
		VariationId:   unit.VariationIdPtr(),
		CustomerId:    input.CustomerId,
		Quantity:      quantity,
		UnitPrice:     input.UnitPrice,
		Discount:      input.Discount,
		TotalAmount:   saleTotal(quantity, input.UnitPrice, input.Discount),
		PaymentMethod: input.PaymentMethod,
		Notes:         input.Notes,
		SaleDate:      input.SaleDate,
	}

	tx := db.Begin()
	if err := ReserveStock(tx.WithContext(ctx), unit, quantity); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&sale).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// UpdateSale releases the old reservation, then re-validates and re-deducts
// the new quantity. If the re-deduction fails the transaction rolls back
// entirely, leaving the original reservation in place.
func UpdateSale(ctx context.Context, tenantId string, saleId int, input *UpdateSaleInput) (*Sale, error) {
	db := config.GetDB()

	if tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	if err := validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	if err := validateSaleAmounts(input.Quantity, input.UnitPrice, input.Discount); err != nil {
		return nil, err
	}

	tx := db.Begin()

	var sale Sale
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantId, saleId).
		First(&sale).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, utils.MapLockError(err)
	}

	newQuantity := input.Quantity.Round(3)
	returned, err := sumReturnedQuantity(tx.WithContext(ctx), tenantId, sale.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if newQuantity.LessThan(returned) {
		tx.Rollback()
		return nil, errors.New("quantity cannot be less than the already-returned amount")
	}

	unit := sale.StockUnit()
	if err := ReleaseStock(tx.WithContext(ctx), unit, sale.Quantity); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := ReserveStock(tx.WithContext(ctx), unit, newQuantity); err != nil {
		tx.Rollback()
		return nil, err
	}

	sale.Quantity = newQuantity
	sale.UnitPrice = input.UnitPrice
	sale.Discount = input.Discount
	sale.TotalAmount = saleTotal(newQuantity, input.UnitPrice, input.Discount)
	sale.Notes = input.Notes
	sale.SaleDate = input.SaleDate
	if err := tx.WithContext(ctx).Model(&Sale{}).
		Where("tenant_id = ? AND id = ?", tenantId, sale.ID).
		Updates(map[string]interface{}{
			"quantity":     sale.Quantity,
			"unit_price":   sale.UnitPrice,
			"discount":     sale.Discount,
			"total_amount": sale.TotalAmount,
			"notes":        sale.Notes,
			"sale_date":    sale.SaleDate,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// DeleteSale restores the reserved quantity exactly. Rejected while returns
// reference the sale; their released stock would otherwise be counted twice.
func DeleteSale(ctx context.Context, tenantId string, saleId int) error {
	db := config.GetDB()

	if tenantId == "" {
		return errors.New("tenant id is required")
	}

	tx := db.Begin()

	var sale Sale
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantId, saleId).
		First(&sale).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return utils.MapLockError(err)
	}

	var returnCount int64
	if err := tx.WithContext(ctx).Model(&ReturnItem{}).
		Where("tenant_id = ? AND sale_id = ?", tenantId, sale.ID).
		Count(&returnCount).Error; err != nil {
		tx.Rollback()
		return err
	}
	if returnCount > 0 {
		tx.Rollback()
		return errors.New("cannot delete a sale that has returns; delete the returns first")
	}

	if err := ReleaseStock(tx.WithContext(ctx), sale.StockUnit(), sale.Quantity); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, sale.ID).
		Delete(&Sale{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// GetDailySalesSeries sums quantity sold per UTC calendar day over the
// trailing window ending at asOf, zero-filled to exactly windowDays points,
// oldest first. Variation sales never leak into the parent product's series
// and vice versa; the variation filter is explicit in both directions.
func GetDailySalesSeries(ctx context.Context, unit StockUnit, windowDays int, asOf time.Time) ([]decimal.Decimal, error) {
	if windowDays <= 0 {
		return nil, errors.New("window days must be positive")
	}
	db := config.GetDB()

	start := utils.DayStart(asOf).AddDate(0, 0, -(windowDays - 1))
	end := utils.DayEnd(asOf)

	dbCtx := db.WithContext(ctx).Model(&Sale{}).
		Select("DATE(sale_date) AS day, SUM(quantity) AS total").
		Where("tenant_id = ? AND product_id = ?", unit.TenantId, unit.ProductId).
		Where("sale_date BETWEEN ? AND ?", start, end).
		Group("DATE(sale_date)")
	if unit.IsVariant() {
		dbCtx = dbCtx.Where("variation_id = ?", unit.VariationId())
	} else {
		dbCtx = dbCtx.Where("variation_id IS NULL")
	}

	var rows []struct {
		Day   time.Time
		Total decimal.Decimal
	}
	if err := dbCtx.Scan(&rows).Error; err != nil {
		return nil, err
	}

	series := make([]decimal.Decimal, windowDays)
	for i := range series {
		series[i] = decimal.Zero
	}
	for _, row := range rows {
		idx := int(utils.DayStart(row.Day).Sub(start).Hours() / 24)
		if idx >= 0 && idx < windowDays {
			series[idx] = series[idx].Add(row.Total)
		}
	}
	return series, nil
}
