// Package loginlog appends and reads the login audit trail.
package loginlog

import (
	"context"
	"time"

	"github.com/dvinyl/core/internal/models"
	"gorm.io/gorm"
)

// DashboardLimit is how many entries the admin dashboard shows.
const DashboardLimit = 20

type Entry struct {
	UserID    string
	Username  string
	Email     string
	IP        string
	Country   string
	City      string
	UserAgent string
	Status    string
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service { return &Service{db: db, now: time.Now} }

// Record appends one entry. Rows are never updated afterwards.
func (s *Service) Record(ctx context.Context, e Entry) error {
	row := &models.LoginLogModel{
		Username:  e.Username,
		Email:     e.Email,
		IP:        e.IP,
		Country:   e.Country,
		City:      e.City,
		UserAgent: e.UserAgent,
		Status:    e.Status,
		Timestamp: s.now(),
	}
	if e.UserID != "" {
		id := e.UserID
		row.UserID = &id
	}
	return s.db.WithContext(ctx).Create(row).Error
}

// Latest returns the newest limit entries.
func (s *Service) Latest(ctx context.Context, limit int) ([]models.LoginLogModel, error) {
	var logs []models.LoginLogModel
	err := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
