// Package geo resolves coarse client location for login logs.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// UnknownCountry is recorded when no location is available.
const UnknownCountry = "XX"

// Location is empty-string safe: City "" means unknown.
type Location struct {
	Country string
	City    string
}

type Locator interface {
	Lookup(ip string) Location
}

// Nop resolves every address to the unknown location.
type Nop struct{}

func (Nop) Lookup(string) Location { return Location{Country: UnknownCountry} }

// MaxMind reads a GeoLite2/GeoIP2 City database.
type MaxMind struct {
	db *geoip2.Reader
}

func OpenMaxMind(path string) (*MaxMind, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMind{db: db}, nil
}

func (m *MaxMind) Lookup(ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{Country: UnknownCountry}
	}
	rec, err := m.db.City(parsed)
	if err != nil {
		return Location{Country: UnknownCountry}
	}
	loc := Location{Country: rec.Country.IsoCode, City: rec.City.Names["en"]}
	if loc.Country == "" {
		loc.Country = UnknownCountry
	}
	return loc
}

func (m *MaxMind) Close() error { return m.db.Close() }
