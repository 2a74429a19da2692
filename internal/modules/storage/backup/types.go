package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvinyl/core/internal/models"
)

const (
	documentVersion       = "1.0.0"
	defaultS3PathTemplate = "backups/{Y}/{m}/{filename}"
	maxImportBytes        = 64 << 20
)

var (
	ErrInvalidDocument = errors.New("invalid backup data")
	ErrS3Disabled      = errors.New("s3 backup is not configured")
)

// Column aliases accepted on import, keyed by snake_case source name.
var (
	userAliases  = map[string]string{"created_at": "created", "updated_at": "modified", "avatar": "img"}
	albumAliases = map[string]string{"created_at": "created", "updated_at": "modified", "owner": "owner_id"}
	logAliases   = map[string]string{"created_at": "created", "updated_at": "modified", "user": "user_id"}
)

// Timestamp reads RFC 3339 strings, unix seconds or milliseconds and null.
// It writes RFC 3339 in UTC, or null when zero.
type Timestamp struct{ time.Time }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		t.Time = time.Time{}
	case string:
		if v == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, ok := parseTimeString(v)
		if !ok {
			return fmt.Errorf("invalid time %q", v)
		}
		t.Time = parsed
	case float64:
		parsed, ok := unixNumberToTime(v)
		if !ok {
			return fmt.Errorf("invalid unix time %v", v)
		}
		t.Time = parsed
	default:
		return fmt.Errorf("invalid time value %s", string(b))
	}
	return nil
}

func ts(t time.Time) Timestamp { return Timestamp{Time: t} }

// UserRecord is an exported account. It carries the password hash so a
// restore keeps every login working.
type UserRecord struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	Avatar     string    `json:"img"`
	IsAdmin    bool      `json:"is_admin"`
	Theme      string    `json:"theme"`
	Language   string    `json:"language"`
	LastChange Timestamp `json:"last_change"`
	Created    Timestamp `json:"created"`
	Modified   Timestamp `json:"modified"`
}

type AlbumRecord struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Artist        string         `json:"artist"`
	Year          string         `json:"year"`
	Label         string         `json:"label"`
	CatalogNumber string         `json:"catalog_number"`
	MediaType     string         `json:"media_type"`
	FormatType    string         `json:"format_type"`
	VariantColor  string         `json:"variant_color"`
	Comments      string         `json:"comments"`
	Tracklist     []models.Track `json:"tracklist"`
	Location      string         `json:"location"`
	CoverImage    string         `json:"cover_image"`
	UserImage     string         `json:"user_image"`
	InWishlist    bool           `json:"in_wishlist"`
	DiscogsID     int64          `json:"discogs_id"`
	AddedAt       Timestamp      `json:"added_at"`
	OwnerID       *string        `json:"owner_id"`
	Created       Timestamp      `json:"created"`
	Modified      Timestamp      `json:"modified"`
}

type LogRecord struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IP        string    `json:"ip"`
	Country   string    `json:"country"`
	City      string    `json:"city"`
	UserAgent string    `json:"user_agent"`
	Status    string    `json:"status"`
	Timestamp Timestamp `json:"timestamp"`
	Created   Timestamp `json:"created"`
	Modified  Timestamp `json:"modified"`
}

type Metadata struct {
	Version string    `json:"version"`
	Date    time.Time `json:"date"`
}

// Document is the whole backup file.
type Document struct {
	Users    []UserRecord  `json:"users"`
	Albums   []AlbumRecord `json:"albums"`
	Logs     []LogRecord   `json:"logs"`
	Metadata Metadata      `json:"metadata"`
}

// ImportResult counts inserted rows and rows skipped as duplicates.
type ImportResult struct {
	Users   int `json:"users"`
	Albums  int `json:"albums"`
	Logs    int `json:"logs"`
	Skipped int `json:"skipped"`
}

func userRecord(u *models.UserModel) UserRecord {
	return UserRecord{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Password:   u.Password,
		Avatar:     u.Avatar,
		IsAdmin:    u.IsAdmin,
		Theme:      u.Theme,
		Language:   u.Language,
		LastChange: ts(u.LastChange),
		Created:    ts(u.CreatedAt),
		Modified:   ts(u.UpdatedAt),
	}
}

func albumRecord(a *models.AlbumModel) AlbumRecord {
	return AlbumRecord{
		ID:            a.ID,
		Title:         a.Title,
		Artist:        a.Artist,
		Year:          a.Year,
		Label:         a.Label,
		CatalogNumber: a.CatalogNumber,
		MediaType:     a.MediaType,
		FormatType:    a.FormatType,
		VariantColor:  a.VariantColor,
		Comments:      a.Comments,
		Tracklist:     a.Tracklist,
		Location:      a.Location,
		CoverImage:    a.CoverImage,
		UserImage:     a.UserImage,
		InWishlist:    a.InWishlist,
		DiscogsID:     a.DiscogsID,
		AddedAt:       ts(a.AddedAt),
		OwnerID:       a.OwnerID,
		Created:       ts(a.CreatedAt),
		Modified:      ts(a.UpdatedAt),
	}
}

func logRecord(l *models.LoginLogModel) LogRecord {
	return LogRecord{
		ID:        l.ID,
		UserID:    l.UserID,
		Username:  l.Username,
		Email:     l.Email,
		IP:        l.IP,
		Country:   l.Country,
		City:      l.City,
		UserAgent: l.UserAgent,
		Status:    l.Status,
		Timestamp: ts(l.Timestamp),
		Created:   ts(l.CreatedAt),
		Modified:  ts(l.UpdatedAt),
	}
}
