package model

import (
	"path/filepath"
	"strings"
	"time"
)

type TimestampSource string

const (
	TimestampSourceOriginal TimestampSource = "exif_original"
	TimestampSourceModified TimestampSource = "exif_modified"
	TimestampSourceFileTime TimestampSource = "mtime"
)

// GeoCoordinate is a position in decimal degrees. South and west are negative.
type GeoCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AssetRecord is one input media file with its resolved capture metadata.
// It is created once during extraction and never modified afterwards.
type AssetRecord struct {
	Path            string
	Timestamp       time.Time
	TimestampSource TimestampSource
	Geo             *GeoCoordinate // nil when the file carries no usable geotag
}

// Name returns the base file name of the asset
func (a *AssetRecord) Name() string {
	return filepath.Base(a.Path)
}

// Stem returns the base file name without extension
func (a *AssetRecord) Stem() string {
	name := a.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Ext returns the file extension including the leading dot
func (a *AssetRecord) Ext() string {
	return filepath.Ext(a.Path)
}
