package models

import "time"

const (
	LoginStatusSuccess = "success"
	LoginStatusFailed  = "failed"
)

// LoginLogModel is an append-only login audit entry. Username and email are
// snapshots so entries survive account deletion.
type LoginLogModel struct {
	Base
	UserID    *string   `json:"user_id"    gorm:"type:char(36);index"`
	Username  string    `json:"username"`
	Email     string    `json:"email"      gorm:"size:191;index"`
	IP        string    `json:"ip"         gorm:"size:64"`
	Country   string    `json:"country"    gorm:"size:8"`
	City      string    `json:"city"`
	UserAgent string    `json:"user_agent" gorm:"type:text"`
	Status    string    `json:"status"     gorm:"size:16;index;not null"`
	Timestamp time.Time `json:"timestamp"  gorm:"index;not null"`
}

func (LoginLogModel) TableName() string { return "login_logs" }
