// Package album reads and maintains the record collection of the
// installation owner.
package album

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvinyl/core/internal/models"
	"gorm.io/gorm"
)

// OwnerFinder resolves the account the collection belongs to.
type OwnerFinder interface {
	FirstAdmin(ctx context.Context) (*models.UserModel, error)
}

type Service struct {
	db     *gorm.DB
	owners OwnerFinder
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(db *gorm.DB, owners OwnerFinder, opts ...Option) *Service {
	s := &Service{db: db, owners: owners, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ownerID returns "" when no administrator exists yet.
func (s *Service) ownerID(ctx context.Context) (string, error) {
	u, err := s.owners.FirstAdmin(ctx)
	if err != nil || u == nil {
		return "", err
	}
	return u.ID, nil
}

func (s *Service) owned(ctx context.Context, owner string, wishlist bool) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.AlbumModel{}).
		Where("owner_id = ? AND in_wishlist = ?", owner, wishlist)
}

func (s *Service) latest(ctx context.Context, owner string, wishlist bool) ([]models.AlbumModel, error) {
	list := []models.AlbumModel{}
	err := s.owned(ctx, owner, wishlist).Order("added_at DESC").Limit(latestLimit).Find(&list).Error
	return list, err
}

// Dashboard returns the latest additions and the collection statistics.
// notAvailable names the top artist of an empty collection.
func (s *Service) Dashboard(ctx context.Context, notAvailable string) (*Dashboard, error) {
	owner, err := s.ownerID(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		LatestCollection: []models.AlbumModel{},
		LatestWishlist:   []models.AlbumModel{},
		Stats:            Stats{TopArtist: notAvailable},
	}
	if owner == "" {
		return d, nil
	}

	if d.LatestCollection, err = s.latest(ctx, owner, false); err != nil {
		return nil, err
	}
	if d.LatestWishlist, err = s.latest(ctx, owner, true); err != nil {
		return nil, err
	}

	var perType []struct {
		MediaType string
		N         int64
	}
	if err := s.owned(ctx, owner, false).
		Select("media_type, COUNT(*) AS n").Group("media_type").Scan(&perType).Error; err != nil {
		return nil, err
	}
	for _, row := range perType {
		d.Stats.Total += row.N
		switch row.MediaType {
		case models.MediaCD:
			d.Stats.CDCount += row.N
		case models.MediaCassette:
			d.Stats.CassetteCount += row.N
		}
	}
	// anything that is neither cd nor cassette counts as vinyl
	d.Stats.VinylCount = d.Stats.Total - d.Stats.CDCount - d.Stats.CassetteCount

	var top []struct {
		Artist string
		N      int64
	}
	if err := s.owned(ctx, owner, false).
		Select("artist, COUNT(*) AS n").Group("artist").
		Order("n DESC").Order("artist ASC").Limit(1).Scan(&top).Error; err != nil {
		return nil, err
	}
	if len(top) == 1 {
		d.Stats.TopArtist = top[0].Artist
		d.Stats.TopArtistCount = top[0].N
	}
	return d, nil
}

func likePattern(q string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

// Collection lists owned albums, newest first, with the distinct storage
// locations for the filter UI.
func (s *Service) Collection(ctx context.Context, f CollectionFilter) (*CollectionPage, error) {
	page := &CollectionPage{
		Albums:      []models.AlbumModel{},
		Locations:   []string{},
		CurrentType: f.MediaType,
		SearchQuery: f.Search,
	}
	if page.CurrentType == "" {
		page.CurrentType = "all"
	}
	owner, err := s.ownerID(ctx)
	if err != nil || owner == "" {
		return page, err
	}

	tx := s.owned(ctx, owner, false)
	if f.MediaType != "" {
		tx = tx.Where("media_type = ?", f.MediaType)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		p := likePattern(q)
		tx = tx.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(artist) LIKE ? ESCAPE '!' OR LOWER(location) LIKE ? ESCAPE '!')", p, p, p)
	}
	if err := tx.Order("added_at DESC").Find(&page.Albums).Error; err != nil {
		return nil, err
	}
	if err := s.owned(ctx, owner, false).Where("location <> ''").
		Distinct().Order("location").Pluck("location", &page.Locations).Error; err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Service) Wishlist(ctx context.Context) ([]models.AlbumModel, error) {
	list := []models.AlbumModel{}
	owner, err := s.ownerID(ctx)
	if err != nil || owner == "" {
		return list, err
	}
	err = s.owned(ctx, owner, true).Order("added_at DESC").Find(&list).Error
	return list, err
}

// CollectionDiscogsIDs feeds the client-side value estimate.
func (s *Service) CollectionDiscogsIDs(ctx context.Context) ([]DiscogsRef, error) {
	refs := []DiscogsRef{}
	owner, err := s.ownerID(ctx)
	if err != nil || owner == "" {
		return refs, err
	}
	err = s.owned(ctx, owner, false).Select("id, discogs_id").Scan(&refs).Error
	return refs, err
}

func (s *Service) Get(ctx context.Context, id string) (*models.AlbumModel, error) {
	var a models.AlbumModel
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// MoveToCollection takes an album of the collection owner off the wishlist
// and stamps it as just added.
func (s *Service) MoveToCollection(ctx context.Context, id string) error {
	owner, err := s.ownerID(ctx)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.AlbumModel{}).Where("id = ? AND owner_id = ?", id, owner).
		Updates(map[string]interface{}{"in_wishlist": false, "added_at": s.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an album of the collection owner and returns its media
// type for the redirect.
func (s *Service) Delete(ctx context.Context, id string) (string, error) {
	owner, err := s.ownerID(ctx)
	if err != nil {
		return "", err
	}
	var a models.AlbumModel
	if err := s.db.WithContext(ctx).First(&a, "id = ? AND owner_id = ?", id, owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if err := s.db.WithContext(ctx).Delete(&a).Error; err != nil {
		return "", err
	}
	return normalizeMediaType(a.MediaType), nil
}

// Save updates the owner's album matching dto.ID, then dto.DiscogsID, or
// creates a new one for the collection owner.
func (s *Service) Save(ctx context.Context, dto SaveDTO) (*models.AlbumModel, bool, error) {
	ownerID, err := s.ownerID(ctx)
	if err != nil {
		return nil, false, err
	}
	if ownerID == "" {
		return nil, false, ErrNoOwner
	}

	tracks := dto.Tracklist
	if tracks == nil && dto.TracklistJSON != "" {
		if err := json.Unmarshal([]byte(dto.TracklistJSON), &tracks); err != nil {
			return nil, false, fmt.Errorf("decode tracklist: %w", err)
		}
	}
	if tracks == nil {
		tracks = []models.Track{}
	}

	var existing models.AlbumModel
	found := false
	db := s.db.WithContext(ctx)
	if dto.ID != "" {
		err := db.First(&existing, "id = ? AND owner_id = ?", dto.ID, ownerID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
		found = err == nil
	}
	if !found && dto.DiscogsID != 0 {
		err := db.First(&existing, "discogs_id = ? AND owner_id = ?", dto.DiscogsID, ownerID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
		found = err == nil
	}

	a := &existing
	if !found {
		owner := ownerID
		a = &models.AlbumModel{OwnerID: &owner, AddedAt: s.now()}
	}
	a.Title = dto.Title
	a.Artist = dto.Artist
	a.Year = dto.Year
	a.Label = dto.Label
	a.CatalogNumber = dto.CatalogNumber
	a.FormatType = dto.FormatType
	a.VariantColor = dto.VariantColor
	a.CoverImage = dto.CoverImage
	a.DiscogsID = dto.DiscogsID
	a.Tracklist = tracks
	a.MediaType = normalizeMediaType(dto.MediaType)
	a.InWishlist = dto.InWishlist
	a.Comments = dto.Comments
	a.Location = dto.Location
	// an empty upload keeps the previous picture
	if dto.UserImage != "" {
		a.UserImage = dto.UserImage
	}

	if err := db.Save(a).Error; err != nil {
		return nil, false, err
	}
	return a, !found, nil
}
