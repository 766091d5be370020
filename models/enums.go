package models

// RiskLevel classifies a stock unit's stockout exposure. Recomputed fresh on
// every forecast run; there is no stored state machine.
type RiskLevel string

const (
	RiskLevelInactive   RiskLevel = "inactive"
	RiskLevelOk         RiskLevel = "ok"
	RiskLevelWarning    RiskLevel = "warning"
	RiskLevelCritical   RiskLevel = "critical"
	RiskLevelOutOfStock RiskLevel = "out_of_stock"
)

// Notification outbox lifecycle.
const (
	NotificationStatusPending    = "PENDING"
	NotificationStatusProcessing = "PROCESSING"
	NotificationStatusSent       = "SENT"
	NotificationStatusFailed     = "FAILED"
	NotificationStatusDead       = "DEAD"
)

const (
	UserRoleAdministrator = "Administrator"
	UserRoleStaff         = "Staff"
)
