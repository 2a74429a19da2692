// Package backup exports and restores users, albums and login logs as a
// single JSON document, and offloads exports to S3.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dvinyl/core/internal/database"
	"github.com/dvinyl/core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Named("BackupService")
		}
	}
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{db: db, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Filename is the attachment name of an export taken at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("dvinyl_backup_%s.json", t.UTC().Format("2006-01-02"))
}

func (s *Service) Export(ctx context.Context) (*Document, error) {
	db := s.db.WithContext(ctx)
	var users []models.UserModel
	if err := db.Order("created_at").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	var albums []models.AlbumModel
	if err := db.Order("added_at").Find(&albums).Error; err != nil {
		return nil, fmt.Errorf("export albums: %w", err)
	}
	var logs []models.LoginLogModel
	if err := db.Order("timestamp").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("export logs: %w", err)
	}

	doc := &Document{
		Users:    make([]UserRecord, 0, len(users)),
		Albums:   make([]AlbumRecord, 0, len(albums)),
		Logs:     make([]LogRecord, 0, len(logs)),
		Metadata: Metadata{Version: documentVersion, Date: s.now().UTC()},
	}
	for i := range users {
		doc.Users = append(doc.Users, userRecord(&users[i]))
	}
	for i := range albums {
		doc.Albums = append(doc.Albums, albumRecord(&albums[i]))
	}
	for i := range logs {
		doc.Logs = append(doc.Logs, logRecord(&logs[i]))
	}
	return doc, nil
}

// ExportJSON renders the export as an indented file body.
func (s *Service) ExportJSON(ctx context.Context) ([]byte, error) {
	doc, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses an import payload. It accepts the document itself or
// {"backupData": <document or JSON string>}, and legacy Mongo exports.
func Decode(payload []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil || top == nil {
		return nil, ErrInvalidDocument
	}
	if wrapped, ok := top["backupData"]; ok {
		var inner string
		if json.Unmarshal(wrapped, &inner) == nil {
			wrapped = json.RawMessage(inner)
		}
		top = nil
		if err := json.Unmarshal(wrapped, &top); err != nil || top == nil {
			return nil, ErrInvalidDocument
		}
	}

	rawUsers, ok := top["users"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawUsers), []byte("null")) {
		return nil, ErrInvalidDocument
	}
	doc := &Document{}
	if err := decodeRows(rawUsers, userAliases, &doc.Users); err != nil {
		return nil, err
	}
	if err := decodeRows(top["albums"], albumAliases, &doc.Albums); err != nil {
		return nil, err
	}
	if err := decodeRows(top["logs"], logAliases, &doc.Logs); err != nil {
		return nil, err
	}
	if raw, ok := top["metadata"]; ok {
		_ = json.Unmarshal(raw, &doc.Metadata)
	}
	return doc, nil
}

func decodeRows(raw json.RawMessage, aliases map[string]string, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	var rows []map[string]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	normalized := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		n, err := normalizeRow(row, aliases)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		normalized = append(normalized, n)
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// Import replaces every user, album and login log with the document in one
// transaction. Rows that collide on a unique key are skipped. Restored
// accounts get a last_change no earlier than the import, which revokes every
// session issued before it.
func (s *Service) Import(ctx context.Context, doc *Document) (*ImportResult, error) {
	if doc == nil {
		return nil, ErrInvalidDocument
	}
	now := s.now()
	res := &ImportResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&models.LoginLogModel{}, &models.AlbumModel{}, &models.UserModel{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}

		for _, r := range doc.Users {
			ok, err := s.insert(tx, "user", r.ID, toUserModel(r, now))
			if err != nil {
				return err
			}
			res.count(ok, &res.Users)
		}
		for _, r := range doc.Albums {
			ok, err := s.insert(tx, "album", r.ID, toAlbumModel(r, now))
			if err != nil {
				return err
			}
			res.count(ok, &res.Albums)
		}
		for _, r := range doc.Logs {
			ok, err := s.insert(tx, "log", r.ID, toLogModel(r, now))
			if err != nil {
				return err
			}
			res.count(ok, &res.Logs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("backup imported",
		zap.Int("users", res.Users), zap.Int("albums", res.Albums),
		zap.Int("logs", res.Logs), zap.Int("skipped", res.Skipped))
	return res, nil
}

func (r *ImportResult) count(inserted bool, n *int) {
	if inserted {
		*n++
		return
	}
	r.Skipped++
}

func (s *Service) insert(tx *gorm.DB, kind, id string, row interface{}) (bool, error) {
	if err := tx.Create(row).Error; err != nil {
		if database.IsDuplicateKey(err) {
			s.log.Warn("duplicate row skipped", zap.String("kind", kind), zap.String("id", id))
			return false, nil
		}
		return false, fmt.Errorf("insert %s %s: %w", kind, id, err)
	}
	return true, nil
}

func firstNonZero(ts ...Timestamp) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t.Time
		}
	}
	return time.Time{}
}

// notBefore moves a rotation marker up to the import time so every token
// issued against the previous credential set resolves as stale.
func notBefore(t, now time.Time) time.Time {
	floor := now.Truncate(time.Second)
	if t.Before(floor) {
		return floor
	}
	return t
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func toUserModel(r UserRecord, now time.Time) *models.UserModel {
	u := &models.UserModel{
		Username:   strings.TrimSpace(r.Username),
		Email:      strings.ToLower(strings.TrimSpace(r.Email)),
		Password:   r.Password,
		Avatar:     orDefault(r.Avatar, models.DefaultAvatar),
		IsAdmin:    r.IsAdmin,
		Theme:      orDefault(r.Theme, models.DefaultTheme),
		Language:   orDefault(r.Language, models.DefaultLanguage),
		LastChange: notBefore(firstNonZero(r.LastChange, r.Created), now),
	}
	u.ID = r.ID
	u.CreatedAt = r.Created.Time
	u.UpdatedAt = r.Modified.Time
	return u
}

func toAlbumModel(r AlbumRecord, now time.Time) *models.AlbumModel {
	tracks := r.Tracklist
	if tracks == nil {
		tracks = []models.Track{}
	}
	mediaType := r.MediaType
	if mediaType == "" {
		mediaType = models.MediaVinyl
	}
	a := &models.AlbumModel{
		Title:         r.Title,
		Artist:        r.Artist,
		Year:          r.Year,
		Label:         r.Label,
		CatalogNumber: r.CatalogNumber,
		MediaType:     mediaType,
		FormatType:    r.FormatType,
		VariantColor:  r.VariantColor,
		Comments:      r.Comments,
		Tracklist:     tracks,
		Location:      r.Location,
		CoverImage:    r.CoverImage,
		UserImage:     r.UserImage,
		InWishlist:    r.InWishlist,
		DiscogsID:     r.DiscogsID,
		AddedAt:       firstNonZero(r.AddedAt, r.Created, ts(now)),
		OwnerID:       r.OwnerID,
	}
	a.ID = r.ID
	a.CreatedAt = r.Created.Time
	a.UpdatedAt = r.Modified.Time
	return a
}

func toLogModel(r LogRecord, now time.Time) *models.LoginLogModel {
	l := &models.LoginLogModel{
		UserID:    r.UserID,
		Username:  r.Username,
		Email:     r.Email,
		IP:        r.IP,
		Country:   r.Country,
		City:      r.City,
		UserAgent: r.UserAgent,
		Status:    orDefault(r.Status, models.LoginStatusSuccess),
		Timestamp: firstNonZero(r.Timestamp, r.Created, ts(now)),
	}
	l.ID = r.ID
	l.CreatedAt = r.Created.Time
	l.UpdatedAt = r.Modified.Time
	return l
}
