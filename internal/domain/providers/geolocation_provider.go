package providers

import (
	"context"
	"errors"
)

// Typed geocoding failures. Synchronous facility-search callers branch on
// these; the background pipeline catches and logs them.
var (
	ErrNoGeocodeResults     = errors.New("no geocode results for address")
	ErrGeocodeQuotaExceeded = errors.New("geocoding quota exceeded")
	ErrGeocodeUnauthorized  = errors.New("geocoding request unauthorized")
)

// GeolocationProvider defines the interface for geolocation services
type GeolocationProvider interface {
	// Geocode converts an address to a geocoded address
	Geocode(ctx context.Context, address string) (*GeocodedAddress, error)

	// NearbySearch finds places around a center point. keyword may be
	// empty for a type-only search; openNow restricts to places open at
	// request time.
	NearbySearch(ctx context.Context, req NearbySearchRequest) ([]*Place, error)

	// CalculateDistance calculates the distance between two points in
	// kilometers
	CalculateDistance(ctx context.Context, from, to Coordinates) (float64, error)
}

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// GeocodedAddress represents a geocoded address
type GeocodedAddress struct {
	FormattedAddress string
	Coordinates      Coordinates
}

// NearbySearchRequest parameterizes one nearby-place search call
type NearbySearchRequest struct {
	Center    Coordinates
	RadiusKm  float64
	PlaceType string
	Keyword   string
	OpenNow   bool
}

// Place represents a geographical place returned by nearby search
type Place struct {
	ID          string
	Name        string
	Address     string
	Coordinates Coordinates
	PlaceType   string
	Rating      float64
	ReviewCount int
	OpenNow     *bool
	PhoneNumber string
	MapURL      string
}
