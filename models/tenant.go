package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/utils"
	"gorm.io/gorm"
)

type Tenant struct {
	ID        string    `gorm:"size:36;primary_key" json:"id"` // uuid
	Name      string    `gorm:"size:100;not null" json:"name"`
	Plan      string    `gorm:"size:20;default:free" json:"plan"`
	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	Timezone  string    `gorm:"size:50" json:"timezone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetTenantById reads through redis; tenant rows change rarely.
func GetTenantById(ctx context.Context, tenantId string) (*Tenant, error) {
	var tenant Tenant
	redisKey := "Tenant:" + tenantId
	exists, err := config.GetRedisObject(redisKey, &tenant)
	if err != nil {
		return nil, err
	}
	if exists {
		return &tenant, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", tenantId).First(&tenant).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if err := config.SetRedisObject(redisKey, &tenant, time.Hour); err != nil {
		return nil, err
	}
	return &tenant, nil
}

// DeactivateTenant drops the tenant out of batch scheduling and invalidates
// its cached row so readers see the change without waiting out the TTL.
func DeactivateTenant(ctx context.Context, tenantId string) error {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Tenant{}).
		Where("id = ?", tenantId).
		Update("is_active", utils.NewFalse())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return config.RemoveRedisKey("Tenant:" + tenantId)
}

// ForEachActiveTenant iterates active tenants in id order, chunked so a large
// install base is never loaded at once.
func ForEachActiveTenant(ctx context.Context, chunkSize int, fn func(*Tenant) error) error {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	db := config.GetDB()
	lastId := ""
	for {
		var tenants []*Tenant
		if err := db.WithContext(ctx).
			Where("is_active = 1").
			Where("id > ?", lastId).
			Order("id ASC").
			Limit(chunkSize).
			Find(&tenants).Error; err != nil {
			return err
		}
		if len(tenants) == 0 {
			return nil
		}
		for _, tenant := range tenants {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(tenant); err != nil {
				return fmt.Errorf("tenant %s: %w", tenant.ID, err)
			}
			lastId = tenant.ID
		}
	}
}
