package metadata

import (
	"math"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/curator/pkg/model"
	"github.com/rwcarlsen/goexif/exif"
)

var exifTimeLayouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
	"2006:01:02T15:04:05",
}

// Extractor resolves capture time and geotag of an asset
type Extractor struct {
	loc *time.Location
}

// Option is a functional option for Extractor
type Option func(*Extractor)

// WithLocation sets the time zone used to interpret EXIF datetimes, which carry no zone
func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		e.loc = loc
	}
}

// New creates a new Extractor
func New(opts ...Option) *Extractor {
	e := &Extractor{
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds the AssetRecord for path. It never fails: unreadable or
// missing embedded metadata falls through to modTime, and a bad geotag
// leaves Geo nil.
func (e *Extractor) Extract(path string, modTime time.Time) *model.AssetRecord {
	record := &model.AssetRecord{
		Path:            path,
		Timestamp:       modTime,
		TimestampSource: model.TimestampSourceFileTime,
	}

	x := decodeExif(path)
	if x == nil {
		return record
	}

	if ts, ok := e.exifTime(x, exif.DateTimeOriginal); ok {
		record.Timestamp = ts
		record.TimestampSource = model.TimestampSourceOriginal
	} else if ts, ok := e.exifTime(x, exif.DateTime); ok {
		record.Timestamp = ts
		record.TimestampSource = model.TimestampSourceModified
	}

	record.Geo = geoCoordinate(x)
	return record
}

func decodeExif(path string) *exif.Exif {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return nil
	}
	return x
}

func (e *Extractor) exifTime(x *exif.Exif, field exif.FieldName) (time.Time, bool) {
	tag, err := x.Get(field)
	if err != nil {
		return time.Time{}, false
	}
	raw, err := tag.StringVal()
	if err != nil {
		return time.Time{}, false
	}
	return parseExifTime(raw, e.loc)
}

func parseExifTime(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range exifTimeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func geoCoordinate(x *exif.Exif) *model.GeoCoordinate {
	lat, ok := gpsDegrees(x, exif.GPSLatitude, exif.GPSLatitudeRef, "S")
	if !ok {
		return nil
	}
	lon, ok := gpsDegrees(x, exif.GPSLongitude, exif.GPSLongitudeRef, "W")
	if !ok {
		return nil
	}
	return &model.GeoCoordinate{
		Latitude:  roundCoordinate(lat),
		Longitude: roundCoordinate(lon),
	}
}

// gpsDegrees reads a degree/minute/second rational triple and applies the
// hemisphere sign. A missing reference tag is treated as N or E.
func gpsDegrees(x *exif.Exif, field, refField exif.FieldName, negativeRef string) (float64, bool) {
	tag, err := x.Get(field)
	if err != nil || tag.Count < 3 {
		return 0, false
	}

	var dms [3]float64
	for i := range dms {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return 0, false
		}
		dms[i] = float64(num) / float64(den)
	}

	deg, ok := dmsToDecimal(dms[0], dms[1], dms[2])
	if !ok {
		return 0, false
	}

	if refTag, err := x.Get(refField); err == nil {
		if ref, err := refTag.StringVal(); err == nil && strings.EqualFold(strings.TrimSpace(ref), negativeRef) {
			deg = -deg
		}
	}
	return deg, true
}

func dmsToDecimal(d, m, s float64) (float64, bool) {
	v := d + m/60.0 + s/3600.0
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 180 {
		return 0, false
	}
	return v, true
}

func roundCoordinate(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
