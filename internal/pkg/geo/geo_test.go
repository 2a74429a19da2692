package geo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNop(t *testing.T) {
	loc := Nop{}.Lookup("203.0.113.9")
	assert.Equal(t, UnknownCountry, loc.Country)
	assert.Empty(t, loc.City)
}

func TestOpenMaxMindMissingFile(t *testing.T) {
	_, err := OpenMaxMind(filepath.Join(t.TempDir(), "missing.mmdb"))
	require.Error(t, err)
}
