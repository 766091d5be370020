package models

import (
	"context"
	"time"

	"github.com/mmretail/retail_backend/config"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	TenantId  string    `gorm:"size:36;index;not null" json:"tenant_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;not null" json:"email"`
	Role      string    `gorm:"size:30;default:Staff" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetTenantAdmins returns the notification recipients for low-stock alerts.
func GetTenantAdmins(ctx context.Context, tenantId string) ([]*User, error) {
	var admins []*User
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND role = ?", tenantId, UserRoleAdministrator).
		Order("id ASC").
		Find(&admins).Error; err != nil {
		return nil, err
	}
	return admins, nil
}
