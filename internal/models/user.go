package models

import "time"

const (
	DefaultAvatar   = "/ressources/no-pp.jpg"
	DefaultTheme    = "dark"
	DefaultLanguage = "fr"
)

// UserModel is an account of the collection manager.
type UserModel struct {
	Base
	Username   string    `json:"username"    gorm:"size:191;uniqueIndex;not null"`
	Email      string    `json:"email"       gorm:"size:191;uniqueIndex;not null"`
	Password   string    `json:"-"           gorm:"not null"`
	Avatar     string    `json:"img"`
	IsAdmin    bool      `json:"is_admin"    gorm:"index"`
	Theme      string    `json:"theme"       gorm:"size:16"`
	Language   string    `json:"language"    gorm:"size:8"`
	LastChange time.Time `json:"last_change" gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

// IssuedBeforeLastChange reports whether a token issued at iat predates the
// last credential change. Comparison is in whole seconds, matching JWT iat.
func (u *UserModel) IssuedBeforeLastChange(iat time.Time) bool {
	if u.LastChange.IsZero() {
		return false
	}
	return iat.Unix() < u.LastChange.Unix()
}
