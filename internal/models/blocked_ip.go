package models

// BlockedIPModel is a denylisted client address.
type BlockedIPModel struct {
	Base
	IP string `json:"ip" gorm:"size:64;uniqueIndex;not null"`
}

func (BlockedIPModel) TableName() string { return "blocked_ips" }
