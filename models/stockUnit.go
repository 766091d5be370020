package models

import "fmt"

// StockUnit identifies exactly one ledger row: either a standalone product or
// one of its variations. When a product has variations, the variation is the
// authoritative stock unit and the parent quantity is a derived rollup, so the
// two cases are kept distinct at the type level instead of inferring from a
// nullable variation id at every call site.
type StockUnit struct {
	TenantId    string
	ProductId   int
	variationId int
}

func StandaloneUnit(tenantId string, productId int) StockUnit {
	return StockUnit{TenantId: tenantId, ProductId: productId}
}

func VariantUnit(tenantId string, productId int, variationId int) StockUnit {
	return StockUnit{TenantId: tenantId, ProductId: productId, variationId: variationId}
}

func (u StockUnit) IsVariant() bool {
	return u.variationId > 0
}

func (u StockUnit) VariationId() int {
	return u.variationId
}

// VariationIdPtr is the nullable form persisted on sales and forecasts.
func (u StockUnit) VariationIdPtr() *int {
	if u.variationId <= 0 {
		return nil
	}
	v := u.variationId
	return &v
}

// Key is stable across runs; used for caches and log fields.
func (u StockUnit) Key() string {
	if u.IsVariant() {
		return fmt.Sprintf("%s:%d:%d", u.TenantId, u.ProductId, u.variationId)
	}
	return fmt.Sprintf("%s:%d", u.TenantId, u.ProductId)
}
