package models

import "time"

const (
	MediaVinyl    = "vinyl"
	MediaCD       = "cd"
	MediaCassette = "cassette"
)

// AlbumModel is a catalogued physical record, either owned or wishlisted.
type AlbumModel struct {
	Base
	Title         string    `json:"title"          gorm:"not null"`
	Artist        string    `json:"artist"         gorm:"index;not null"`
	Year          string    `json:"year"`
	Label         string    `json:"label"`
	CatalogNumber string    `json:"catalog_number"`
	MediaType     string    `json:"media_type"     gorm:"size:16;index"`
	FormatType    string    `json:"format_type"`
	VariantColor  string    `json:"variant_color"`
	Comments      string    `json:"comments"       gorm:"type:text"`
	Tracklist     []Track   `json:"tracklist"      gorm:"type:longtext;serializer:json"`
	Location      string    `json:"location"`
	CoverImage    string    `json:"cover_image"    gorm:"type:text"`
	UserImage     string    `json:"user_image"     gorm:"type:text"`
	InWishlist    bool      `json:"in_wishlist"    gorm:"index"`
	DiscogsID     int64     `json:"discogs_id"     gorm:"index"`
	AddedAt       time.Time `json:"added_at"       gorm:"index"`
	OwnerID       *string   `json:"owner_id"       gorm:"type:char(36);index"`
}

func (AlbumModel) TableName() string { return "albums" }

// Track is one tracklist entry.
type Track struct {
	Position string `json:"position"`
	Title    string `json:"title"`
	Duration string `json:"duration,omitempty"`
}
