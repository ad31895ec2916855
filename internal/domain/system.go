package domain

import (
	"time"
)

// AuditLog records admin catalog changes and order lifecycle events.
type AuditLog struct {
	ID     int64     `json:"id,string"`
	Actor  string    `gorm:"size:255;index" json:"actor"`
	IP     string    `gorm:"size:64" json:"ip"`
	Action string    `gorm:"size:64;index" json:"action"`
	Detail string    `gorm:"size:1000" json:"detail"`
	At     time.Time `gorm:"index" json:"at"`
}

// TableName Specify table name
func (AuditLog) TableName() string {
	return "audit_log"
}
