package config

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantGuardPlugin enforces multi-tenant isolation. Every query, update and
// delete against a table that carries a tenant_id column must filter on
// tenant_id explicitly; statements that don't are rejected instead of silently
// returning cross-tenant rows.
//
// NOTE: this does NOT apply to Raw SQL; those must include tenant_id manually.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

var ErrMissingTenantScope = errors.New("statement on tenant-scoped table has no tenant_id filter")

type tenantGuardSkipKey struct{}

// SkipTenantGuard marks the context for deliberate cross-tenant work: the
// notification dispatcher claims outbox rows across all tenants, and repair
// tooling scans whole tables. Regular request paths must not use this.
func SkipTenantGuard(ctx context.Context) context.Context {
	return context.WithValue(ctx, tenantGuardSkipKey{}, true)
}

func tenantGuardSkipped(ctx context.Context) bool {
	v, _ := ctx.Value(tenantGuardSkipKey{}).(bool)
	return v
}

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	// Row (First/Take)
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	// Delete
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	if db.Statement.Schema == nil {
		return
	}
	if db.Statement.Context != nil && tenantGuardSkipped(db.Statement.Context) {
		return
	}

	hasTenantID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "tenant_id") {
			hasTenantID = true
			break
		}
	}
	if !hasTenantID {
		return
	}

	// Primary-key lookups on already-fetched rows (Save, Delete by model) are
	// allowed; the row was loaded through a scoped query.
	if whereHasTenantID(db.Statement.Clauses["WHERE"]) {
		return
	}
	if len(db.Statement.Schema.PrimaryFields) > 0 && db.Statement.ReflectValue.IsValid() {
		pk := db.Statement.Schema.PrioritizedPrimaryField
		if pk != nil {
			if _, zero := pk.ValueOf(db.Statement.Context, db.Statement.ReflectValue); !zero {
				return
			}
		}
	}

	db.AddError(ErrMissingTenantScope)
}

func whereHasTenantID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasTenantID(e) {
			return true
		}
	}
	return false
}

func exprHasTenantID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsTenantID(v.Column)
	case clause.IN:
		return colIsTenantID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasTenantID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasTenantID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for string conditions.
		return strings.Contains(strings.ToLower(v.SQL), "tenant_id")
	default:
		return false
	}
}

func colIsTenantID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "tenant_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "tenant_id")
	default:
		return false
	}
}
