// Package firewall manages the client IP denylist.
package firewall

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/dvinyl/core/internal/database"
	"github.com/dvinyl/core/internal/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidIP = errors.New("invalid ip address")
	ErrNotFound  = errors.New("blocked ip not found")
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// IsBlocked is an exact string match against the denylist.
func (s *Service) IsBlocked(ctx context.Context, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.BlockedIPModel{}).Where("ip = ?", ip).Count(&n).Error
	return n > 0, err
}

// List returns entries newest first.
func (s *Service) List(ctx context.Context) ([]models.BlockedIPModel, error) {
	var list []models.BlockedIPModel
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error
	return list, err
}

// Block adds ip. Blocking an address twice is not an error.
func (s *Service) Block(ctx context.Context, ip string) (*models.BlockedIPModel, error) {
	ip = strings.TrimSpace(ip)
	if net.ParseIP(ip) == nil {
		return nil, ErrInvalidIP
	}
	row := &models.BlockedIPModel{IP: ip}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if !database.IsDuplicateKey(err) {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Where("ip = ?", ip).First(row).Error; err != nil {
			return nil, err
		}
	}
	return row, nil
}

// Unblock removes the entry whose id or address equals key.
func (s *Service) Unblock(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	res := s.db.WithContext(ctx).Where("id = ? OR ip = ?", key, key).Delete(&models.BlockedIPModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
