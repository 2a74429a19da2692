package album

import (
	"errors"

	"github.com/dvinyl/core/internal/models"
)

const latestLimit = 4

var (
	ErrNotFound = errors.New("album not found")
	ErrNoOwner  = errors.New("no administrator owns the collection")
)

// Stats summarises the owned collection.
type Stats struct {
	Total          int64  `json:"total"`
	VinylCount     int64  `json:"vinylCount"`
	CDCount        int64  `json:"cdCount"`
	CassetteCount  int64  `json:"cassetteCount"`
	TopArtist      string `json:"topArtist"`
	TopArtistCount int64  `json:"topArtistCount"`
}

type Dashboard struct {
	LatestCollection []models.AlbumModel `json:"latestCollection"`
	LatestWishlist   []models.AlbumModel `json:"latestWishlist"`
	Stats            Stats               `json:"stats"`
}

// CollectionFilter narrows the owned collection. Empty fields match all.
type CollectionFilter struct {
	MediaType string `form:"type"`
	Search    string `form:"search"`
}

type CollectionPage struct {
	Albums      []models.AlbumModel `json:"albums"`
	Locations   []string            `json:"locations"`
	CurrentType string              `json:"currentType"`
	SearchQuery string              `json:"searchQuery"`
}

type DiscogsRef struct {
	ID        string `json:"id"`
	DiscogsID int64  `json:"discogs_id"`
}

// SaveDTO creates an album or updates the one matching ID, then DiscogsID.
type SaveDTO struct {
	ID            string         `json:"id"             form:"mongo_id"`
	Title         string         `json:"title"          form:"title"`
	Artist        string         `json:"artist"         form:"artist"`
	Year          string         `json:"year"           form:"year"`
	Label         string         `json:"label"          form:"label"`
	CatalogNumber string         `json:"catalog_number" form:"catalog_number"`
	FormatType    string         `json:"format_type"    form:"format_type"`
	VariantColor  string         `json:"variant_color"  form:"variant_color"`
	CoverImage    string         `json:"cover_image"    form:"cover_image"`
	UserImage     string         `json:"user_image"     form:"user_image"`
	DiscogsID     int64          `json:"discogs_id"     form:"discogs_id"`
	Tracklist     []models.Track `json:"tracklist"      form:"-"`
	TracklistJSON string         `json:"-"              form:"tracklist_json"`
	MediaType     string         `json:"media_type"     form:"media_type"`
	InWishlist    bool           `json:"in_wishlist"    form:"in_wishlist"`
	Comments      string         `json:"comments"       form:"comments"`
	Location      string         `json:"location"       form:"location"`
}

func normalizeMediaType(t string) string {
	switch t {
	case models.MediaCD, models.MediaCassette:
		return t
	default:
		return models.MediaVinyl
	}
}
