package geolocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
	apperrors "github.com/kakehashi-app/kakehashi-backend/pkg/errors"
)

const (
	googleGeocodeURL       = "https://maps.googleapis.com/maps/api/geocode/json"
	googleNearbyURL        = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	googleMapsPlaceURL     = "https://www.google.com/maps/place/?q=place_id:"
	defaultGeocodeCacheTTL = 60 * 60 * 24 * 30
	defaultHTTPTimeout     = 8 * time.Second
)

// GoogleGeolocationProvider implements the GeolocationProvider using Google
// Maps APIs (Geocoding + Places Nearby Search).
type GoogleGeolocationProvider struct {
	apiKey     string
	httpClient *http.Client
	cache      providers.CacheProvider
	geocodeURL string
	nearbyURL  string
}

// NewGoogleGeolocationProvider creates a new Google geolocation provider.
func NewGoogleGeolocationProvider(apiKey string, cache providers.CacheProvider) providers.GeolocationProvider {
	return NewGoogleGeolocationProviderWithOptions(apiKey, cache, googleGeocodeURL, googleNearbyURL, nil)
}

// NewGoogleGeolocationProviderWithOptions allows overriding endpoints and
// HTTP client (used for tests).
func NewGoogleGeolocationProviderWithOptions(apiKey string, cache providers.CacheProvider, geocodeURL, nearbyURL string, httpClient *http.Client) providers.GeolocationProvider {
	if strings.TrimSpace(geocodeURL) == "" {
		geocodeURL = googleGeocodeURL
	}
	if strings.TrimSpace(nearbyURL) == "" {
		nearbyURL = googleNearbyURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GoogleGeolocationProvider{
		apiKey:     apiKey,
		httpClient: httpClient,
		cache:      cache,
		geocodeURL: geocodeURL,
		nearbyURL:  nearbyURL,
	}
}

// Geocode converts an address to coordinates. Zero results and quota/auth
// failures surface as the typed provider errors.
func (g *GoogleGeolocationProvider) Geocode(ctx context.Context, address string) (*providers.GeocodedAddress, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, providers.ErrNoGeocodeResults
	}

	cacheKey := "geo:v1:geocode:" + hashKey(strings.ToLower(trimmed))
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var addr providers.GeocodedAddress
			if err := json.Unmarshal(cached, &addr); err == nil && (addr.Coordinates.Latitude != 0 || addr.Coordinates.Longitude != 0) {
				return &addr, nil
			}
		}
	}

	if g.apiKey == "" {
		return nil, providers.ErrGeocodeUnauthorized
	}

	params := url.Values{}
	params.Set("address", trimmed)
	params.Set("key", g.apiKey)

	reqURL := fmt.Sprintf("%s?%s", g.geocodeURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocode request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("geocode request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError(fmt.Sprintf("geocode request returned status %d", resp.StatusCode), nil)
	}

	var payload googleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("failed to decode geocode response", err)
	}

	if err := statusToError(payload.Status, payload.ErrorMessage); err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, providers.ErrNoGeocodeResults
	}

	result := payload.Results[0]
	addr := providers.GeocodedAddress{
		FormattedAddress: result.FormattedAddress,
		Coordinates: providers.Coordinates{
			Latitude:  result.Geometry.Location.Lat,
			Longitude: result.Geometry.Location.Lng,
		},
	}

	if g.cache != nil {
		if data, err := json.Marshal(addr); err == nil {
			_ = g.cache.Set(ctx, cacheKey, data, defaultGeocodeCacheTTL)
		}
	}

	return &addr, nil
}

// NearbySearch finds places around a center point within a radius.
func (g *GoogleGeolocationProvider) NearbySearch(ctx context.Context, sreq providers.NearbySearchRequest) ([]*providers.Place, error) {
	if g.apiKey == "" {
		return nil, providers.ErrGeocodeUnauthorized
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", sreq.Center.Latitude, sreq.Center.Longitude))
	params.Set("radius", fmt.Sprintf("%d", int(sreq.RadiusKm*1000)))
	params.Set("language", "ja")
	params.Set("key", g.apiKey)
	if sreq.PlaceType != "" {
		params.Set("type", sreq.PlaceType)
	}
	if sreq.Keyword != "" {
		params.Set("keyword", sreq.Keyword)
	}
	if sreq.OpenNow {
		params.Set("opennow", "true")
	}

	reqURL := fmt.Sprintf("%s?%s", g.nearbyURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build nearby search request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("nearby search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError(fmt.Sprintf("nearby search returned status %d", resp.StatusCode), nil)
	}

	var payload googleNearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("failed to decode nearby search response", err)
	}

	if payload.Status == "ZERO_RESULTS" {
		return nil, nil
	}
	if err := statusToError(payload.Status, payload.ErrorMessage); err != nil {
		return nil, err
	}

	places := make([]*providers.Place, 0, len(payload.Results))
	for _, r := range payload.Results {
		place := &providers.Place{
			ID:      r.PlaceID,
			Name:    r.Name,
			Address: r.Vicinity,
			Coordinates: providers.Coordinates{
				Latitude:  r.Geometry.Location.Lat,
				Longitude: r.Geometry.Location.Lng,
			},
			Rating:      r.Rating,
			ReviewCount: r.UserRatingsTotal,
			MapURL:      googleMapsPlaceURL + r.PlaceID,
		}
		if len(r.Types) > 0 {
			place.PlaceType = r.Types[0]
		}
		if r.OpeningHours != nil {
			place.OpenNow = r.OpeningHours.OpenNow
		}
		places = append(places, place)
	}

	return places, nil
}

// CalculateDistance calculates the distance between two points using the
// Haversine formula.
func (g *GoogleGeolocationProvider) CalculateDistance(ctx context.Context, from, to providers.Coordinates) (float64, error) {
	return haversineKm(from, to), nil
}

func statusToError(status, errorMessage string) error {
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS":
		return providers.ErrNoGeocodeResults
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return providers.ErrGeocodeQuotaExceeded
	case "REQUEST_DENIED":
		return providers.ErrGeocodeUnauthorized
	}
	if errorMessage != "" {
		return apperrors.NewExternalError(fmt.Sprintf("maps request failed: %s - %s", status, errorMessage), nil)
	}
	return apperrors.NewExternalError(fmt.Sprintf("maps request failed: %s", status), nil)
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

type googleGeocodeResponse struct {
	Status       string                `json:"status"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Results      []googleGeocodeResult `json:"results"`
}

type googleGeocodeResult struct {
	FormattedAddress string         `json:"formatted_address"`
	Geometry         googleGeometry `json:"geometry"`
}

type googleGeometry struct {
	Location googleLocation `json:"location"`
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googleNearbyResponse struct {
	Status       string               `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Results      []googleNearbyResult `json:"results"`
}

type googleNearbyResult struct {
	PlaceID          string              `json:"place_id"`
	Name             string              `json:"name"`
	Vicinity         string              `json:"vicinity"`
	Geometry         googleGeometry      `json:"geometry"`
	Rating           float64             `json:"rating"`
	UserRatingsTotal int                 `json:"user_ratings_total"`
	Types            []string            `json:"types"`
	OpeningHours     *googleOpeningHours `json:"opening_hours,omitempty"`
}

type googleOpeningHours struct {
	OpenNow *bool `json:"open_now,omitempty"`
}
