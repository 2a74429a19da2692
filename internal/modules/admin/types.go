package admin

import (
	"time"

	"github.com/dvinyl/core/internal/models"
	"github.com/dvinyl/core/internal/modules/auth/user"
	"github.com/dvinyl/core/internal/pkg/i18n"
)

const (
	adminPath = "/admin"

	flashUserDeleted     = "user_deleted"
	flashDeleteSelfError = "delete_self_error"
	flashIPBlocked       = "ip_blocked"
	flashIPUnblocked     = "ip_unblocked"
	flashIPInvalid       = "ip_invalid"
)

// flashKeys maps the ?msg= values the dashboard accepts to message keys.
var flashKeys = map[string]string{
	flashUserDeleted:     i18n.MsgUserDeleted,
	flashDeleteSelfError: i18n.MsgDeleteSelfError,
	flashIPBlocked:       i18n.MsgIPBlocked,
	flashIPUnblocked:     i18n.MsgIPUnblocked,
	flashIPInvalid:       i18n.MsgIPInvalid,
}

type AddUserDTO struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email"    form:"email"`
}

type UserIDDTO struct {
	UserID string `json:"userId" form:"userId"`
}

type BlockIPDTO struct {
	IPAddress string `json:"ipAddress" form:"ipAddress"`
}

type UnblockIPDTO struct {
	IPID string `json:"ipId" form:"ipId"`
}

type BlockedIPResponse struct {
	ID      string    `json:"id"`
	IP      string    `json:"ip"`
	Created time.Time `json:"created"`
}

type LoginLogResponse struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IP        string    `json:"ip"`
	Country   string    `json:"country"`
	City      string    `json:"city"`
	UserAgent string    `json:"user_agent"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Dashboard is everything the admin page shows.
type Dashboard struct {
	Users      []*user.Response     `json:"users"`
	BlockedIPs []*BlockedIPResponse `json:"blocked_ips"`
	Logs       []*LoginLogResponse  `json:"logs"`
	Message    string               `json:"message,omitempty"`
}

// credentialResponse carries a generated password. It is shown once and
// never stored in plain text.
type credentialResponse struct {
	User     *user.Response `json:"user"`
	Password string         `json:"password"`
	Message  string         `json:"message"`
}

func toBlockedIPResponses(list []models.BlockedIPModel) []*BlockedIPResponse {
	out := make([]*BlockedIPResponse, 0, len(list))
	for _, b := range list {
		out = append(out, &BlockedIPResponse{ID: b.ID, IP: b.IP, Created: b.CreatedAt})
	}
	return out
}

func toLoginLogResponses(list []models.LoginLogModel) []*LoginLogResponse {
	out := make([]*LoginLogResponse, 0, len(list))
	for _, l := range list {
		out = append(out, &LoginLogResponse{
			ID:        l.ID,
			UserID:    l.UserID,
			Username:  l.Username,
			Email:     l.Email,
			IP:        l.IP,
			Country:   l.Country,
			City:      l.City,
			UserAgent: l.UserAgent,
			Status:    l.Status,
			Timestamp: l.Timestamp,
		})
	}
	return out
}
