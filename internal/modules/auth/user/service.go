package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvinyl/core/internal/database"
	"github.com/dvinyl/core/internal/models"
	"github.com/dvinyl/core/internal/pkg/i18n"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db    *gorm.DB
	cost  int
	now   func() time.Time
	decoy decoy
}

type Option func(*Service)

// WithHashCost overrides bcrypt.DefaultCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{db: db, cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) first(ctx context.Context, query string, args ...interface{}) (*models.UserModel, error) {
	var u models.UserModel
	if err := s.db.WithContext(ctx).Where(query, args...).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*models.UserModel, error) {
	return s.first(ctx, "email = ?", normalizeEmail(email))
}

func (s *Service) FindByID(ctx context.Context, id string) (*models.UserModel, error) {
	if id == "" {
		return nil, nil
	}
	return s.first(ctx, "id = ?", id)
}

// Verify checks a login. Both failures wrap ErrInvalidCredential.
func (s *Service) Verify(ctx context.Context, email, password string) (*models.UserModel, error) {
	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.decoy.compare(s.cost, password)
		return nil, ErrUnknownIdentifier
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrWrongSecret
	}
	return u, nil
}

// Create hashes the password and inserts the account in one write. The
// pre-checks only pick a friendlier error; the unique indexes decide.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.UserModel, error) {
	u, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	return u, s.insert(s.db.WithContext(ctx), u)
}

// CreateFirstAdmin creates an administrator only while the store holds no
// account. The install lock row serializes concurrent callers, so exactly
// one of them wins and the others get ErrAlreadyInstalled.
func (s *Service) CreateFirstAdmin(ctx context.Context, in CreateInput) (*models.UserModel, error) {
	in.IsAdmin = true
	u, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lock := models.InstallLockModel{ID: models.InstallLockID}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).FirstOrCreate(&lock).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return ErrAlreadyInstalled
			}
			return fmt.Errorf("lock installation: %w", err)
		}
		var n int64
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Model(&models.UserModel{}).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyInstalled
		}
		return s.insert(tx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// prepare validates in, checks uniqueness and hashes the password.
func (s *Service) prepare(ctx context.Context, in CreateInput) (*models.UserModel, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if len(in.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	if existing, err := s.first(ctx, "username = ?", username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUsernameTaken
	}
	if existing, err := s.FindByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return &models.UserModel{
		Username: username,
		Email:    email,
		Password: string(hash),
		Avatar:   models.DefaultAvatar,
		IsAdmin:  in.IsAdmin,
		Theme:    models.DefaultTheme,
		Language: models.DefaultLanguage,
		// truncated so a token signed in the same second stays valid
		LastChange: s.now().Truncate(time.Second),
	}, nil
}

func (s *Service) insert(db *gorm.DB, u *models.UserModel) error {
	if err := db.Create(u).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.UserModel{}).Count(&n).Error
	return n, err
}

// List returns every account, most recently changed first.
func (s *Service) List(ctx context.Context) ([]models.UserModel, error) {
	var list []models.UserModel
	err := s.db.WithContext(ctx).Order("last_change DESC").Find(&list).Error
	return list, err
}

// FirstAdmin returns the oldest administrator, or nil.
func (s *Service) FirstAdmin(ctx context.Context) (*models.UserModel, error) {
	var u models.UserModel
	err := s.db.WithContext(ctx).Where("is_admin = ?", true).Order("created_at ASC").First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Delete removes id on behalf of actorID. The target is resolved by the
// store first, so an id that only matches the actor under the column
// collation is still refused; the WHERE clause repeats the guard.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	target, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}
	if target.ID == actorID {
		return ErrDeleteSelf
	}
	res := s.db.WithContext(ctx).Where("id = ? AND id <> ?", target.ID, actorID).Delete(&models.UserModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeleteSelf
	}
	return nil
}

// rotation returns the next last_change value: the start of the following
// second, never earlier than prev. Every token issued up to now becomes stale.
func (s *Service) rotation(prev time.Time) time.Time {
	next := s.now().Truncate(time.Second).Add(time.Second)
	if next.Before(prev) {
		return prev
	}
	return next
}

func (s *Service) setPassword(ctx context.Context, u *models.UserModel, plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	lastChange := s.rotation(u.LastChange)
	err = s.db.WithContext(ctx).Model(&models.UserModel{}).Where("id = ?", u.ID).
		Updates(map[string]interface{}{"password": string(hash), "last_change": lastChange}).Error
	if err != nil {
		return err
	}
	u.Password = string(hash)
	u.LastChange = lastChange
	return nil
}

// ResetPassword assigns a random password and returns it in plain text once.
func (s *Service) ResetPassword(ctx context.Context, id string) (*models.UserModel, string, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if u == nil {
		return nil, "", ErrNotFound
	}
	plain, err := RandomPassword(ResetPasswordLength)
	if err != nil {
		return nil, "", fmt.Errorf("generate password: %w", err)
	}
	if err := s.setPassword(ctx, u, plain); err != nil {
		return nil, "", err
	}
	return u, plain, nil
}

func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(current)); err != nil {
		return ErrWrongSecret
	}
	if len(next) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(next)) == nil {
		return ErrPasswordReuse
	}
	return s.setPassword(ctx, u, next)
}

// UsernameAvailable reports whether username is free for selfID. It is a
// hint; UpdateUsername relies on the unique index.
func (s *Service) UsernameAvailable(ctx context.Context, selfID, username string) (bool, error) {
	u, err := s.first(ctx, "username = ?", strings.TrimSpace(username))
	if err != nil {
		return false, err
	}
	return u == nil || u.ID == selfID, nil
}

func (s *Service) UpdateUsername(ctx context.Context, id, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrMissingFields
	}
	ok, err := s.UsernameAvailable(ctx, id, username)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUsernameTaken
	}
	return s.update(ctx, id, "username", username)
}

func (s *Service) UpdateTheme(ctx context.Context, id, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return ErrInvalidTheme
	}
	return s.update(ctx, id, "theme", theme)
}

func (s *Service) UpdateLanguage(ctx context.Context, id, lang string) error {
	if !i18n.IsSupported(lang) {
		return ErrInvalidLanguage
	}
	return s.update(ctx, id, "language", lang)
}

func (s *Service) update(ctx context.Context, id, column string, value interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.UserModel{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		if database.IsDuplicateKey(res.Error) {
			return ErrUsernameTaken
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.mustExist(ctx, id)
	}
	return nil
}

// mustExist tells an unchanged row apart from a missing one; MySQL reports
// zero affected rows for both.
func (s *Service) mustExist(ctx context.Context, id string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.UserModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureAdmin sets the administrator flag on id. It seeds the admin
// configured by id; the stored flag is what the gates read.
func (s *Service) EnsureAdmin(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.UserModel{}).Where("id = ?", id).Update("is_admin", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.mustExist(ctx, id)
	}
	return nil
}
