// Package geo holds the two addressing schemes used for surveys: the discrete
// AreaID cell (habits, nearby users) and the continuous bounding box
// (occupancy queries). They are intentionally independent of each other.
package geo

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s2"
)

const (
	// Radius in degrees used when a query doesn't provide a usable one
	DefaultRadius = 0.01
	// Reports older than this don't take part in occupancy estimation
	RecencyWindow = 3 * time.Hour
)

type TimeBucket int

const (
	BucketNone TimeBucket = iota
	BucketRecent
	BucketMid
	BucketOld
)

func (b TimeBucket) String() string {
	switch b {
	case BucketRecent:
		return "0-1"
	case BucketMid:
		return "1-2"
	case BucketOld:
		return "2-3"
	default:
		return "none"
	}
}

// AreaID rounds both coordinates to 2 decimals and joins them, e.g. "1.30,103.78".
func AreaID(lat, lon float64) string {
	return fixed2(lat) + "," + fixed2(lon)
}

var hundred = big.NewFloat(100)

// fixed2 formats v with 2 decimals, rounding its exact binary value half away
// from zero, so 1.625 gives "1.63" while 1.005 (stored as 1.00499...) gives "1.00".
func fixed2(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	x := new(big.Float).SetPrec(256).SetFloat64(math.Abs(v))
	x.Mul(x, hundred)
	x.Add(x, big.NewFloat(0.5))
	cents, _ := x.Int(nil)
	digits := cents.String()
	if len(digits) < 3 {
		digits = strings.Repeat("0", 3-len(digits)) + digits
	}
	sign := ""
	if v < 0 {
		sign = "-"
	}
	return sign + digits[:len(digits)-2] + "." + digits[len(digits)-2:]
}

// Bucket classifies the age of an observation. Intervals are half-open,
// so an observation exactly 1h old is already in the mid bucket.
func Bucket(observedAt, now time.Time) TimeBucket {
	age := now.Sub(observedAt)
	switch {
	case age < time.Hour:
		return BucketRecent
	case age < 2*time.Hour:
		return BucketMid
	case age < RecencyWindow:
		return BucketOld
	default:
		return BucketNone
	}
}

// ValidCoordinate reports whether lat/lon are finite and within WGS84 ranges.
func ValidCoordinate(lat, lon float64) bool {
	return s2.LatLngFromDegrees(lat, lon).IsValid()
}

// NormalizeRadius falls back to DefaultRadius for missing, non-positive or non-finite values.
func NormalizeRadius(radius float64) float64 {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return DefaultRadius
	}
	return radius
}

// BoundingBox is a rectangle in degree space, not a geodesic circle.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

func NewBoundingBox(lat, lon, radius float64) BoundingBox {
	return BoundingBox{
		MinLat: lat - radius,
		MaxLat: lat + radius,
		MinLon: lon - radius,
		MaxLon: lon + radius,
	}
}

func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
