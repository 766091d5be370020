package models

import (
	"github.com/mmretail/retail_backend/config"
	"github.com/mmretail/retail_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Tenant{},
		&User{},
		&ProductCategory{},
		&Product{},
		&ProductVariation{},
		&Sale{},
		&ReturnItem{},
		&ProductForecast{},
		&ForecastNotificationRecord{},
	)
	utils.ErrorPanic(err)
}
