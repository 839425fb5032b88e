package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kakehashi-app/kakehashi-backend/internal/domain/entities"
	"github.com/kakehashi-app/kakehashi-backend/internal/domain/providers"
	"github.com/kakehashi-app/kakehashi-backend/internal/infrastructure/observability"
)

const maxFacilityResults = 10

// searchRadiiKm is the escalation ladder: widen the search until a radius
// yields results.
var searchRadiiKm = []float64{3, 5, 10}

// FacilitySearchService finds medical facilities near an address. It is the
// one component whose synchronous callers receive typed errors; the
// background pipeline catches and logs them instead.
type FacilitySearchService struct {
	geo     providers.GeolocationProvider
	metrics *observability.Metrics
}

// NewFacilitySearchService creates a new facility search service
func NewFacilitySearchService(geo providers.GeolocationProvider, metrics *observability.Metrics) *FacilitySearchService {
	return &FacilitySearchService{
		geo:     geo,
		metrics: metrics,
	}
}

// Search geocodes the address and finds nearby facilities matching the
// symptom type, ordered nearest-first, at most 10 results. Geocoding
// failures propagate as the typed provider errors.
func (s *FacilitySearchService) Search(ctx context.Context, address, symptomType, urgency string) ([]*entities.MedicalFacility, error) {
	geocoded, err := s.geo.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	placeType, keyword := placeQueryFor(symptomType)
	openOnly := urgency == entities.UrgencyImmediate

	places, err := s.searchWithEscalation(ctx, geocoded.Coordinates, placeType, keyword, openOnly)
	if err != nil {
		return nil, err
	}

	if openOnly {
		places = filterOpenNow(places)
	}

	facilities := make([]*entities.MedicalFacility, 0, len(places))
	for _, place := range places {
		distance, err := s.geo.CalculateDistance(ctx, geocoded.Coordinates, place.Coordinates)
		if err != nil {
			distance = 0
		}
		facilities = append(facilities, &entities.MedicalFacility{
			Name:        place.Name,
			Address:     place.Address,
			Latitude:    place.Coordinates.Latitude,
			Longitude:   place.Coordinates.Longitude,
			MapURL:      place.MapURL,
			PhoneNumber: place.PhoneNumber,
			Rating:      place.Rating,
			ReviewCount: place.ReviewCount,
			OpenNow:     place.OpenNow,
			DistanceKm:  distance,
		})
	}

	sort.Slice(facilities, func(i, j int) bool {
		return facilities[i].DistanceKm < facilities[j].DistanceKm
	})

	if len(facilities) > maxFacilityResults {
		facilities = facilities[:maxFacilityResults]
	}

	attachReasons(facilities, placeType)

	return facilities, nil
}

// searchWithEscalation walks the radius ladder, trying keyword search first
// and a type-only retry at each radius, stopping at the first radius that
// yields results.
func (s *FacilitySearchService) searchWithEscalation(ctx context.Context, center providers.Coordinates, placeType, keyword string, openOnly bool) ([]*providers.Place, error) {
	var lastErr error
	for i, radius := range searchRadiiKm {
		if i > 0 && s.metrics != nil {
			s.metrics.RadiusEscalations.Add(ctx, 1)
		}

		places, err := s.geo.NearbySearch(ctx, providers.NearbySearchRequest{
			Center:    center,
			RadiusKm:  radius,
			PlaceType: placeType,
			Keyword:   keyword,
			OpenNow:   openOnly,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(places) > 0 {
			return places, nil
		}

		if keyword != "" {
			places, err = s.geo.NearbySearch(ctx, providers.NearbySearchRequest{
				Center:    center,
				RadiusKm:  radius,
				PlaceType: placeType,
				OpenNow:   openOnly,
			})
			if err != nil {
				lastErr = err
				continue
			}
			if len(places) > 0 {
				return places, nil
			}
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// placeQueryFor maps a symptom type to a place type and search keyword
func placeQueryFor(symptomType string) (placeType, keyword string) {
	switch strings.ToLower(symptomType) {
	case "dental":
		return "dentist", "歯科"
	case "mental":
		return "doctor", "心療内科"
	default:
		return "hospital", "内科 クリニック"
	}
}

func filterOpenNow(places []*providers.Place) []*providers.Place {
	filtered := make([]*providers.Place, 0, len(places))
	for _, place := range places {
		if place.OpenNow != nil && !*place.OpenNow {
			continue
		}
		filtered = append(filtered, place)
	}
	return filtered
}

// attachReasons adds short human-readable recommendation reasons per
// facility, with a deterministic fallback when none apply.
func attachReasons(facilities []*entities.MedicalFacility, placeType string) {
	for i, facility := range facilities {
		var reasons []string
		if i == 0 {
			reasons = append(reasons, "最寄りの医療機関")
		}
		if facility.OpenNow != nil && *facility.OpenNow {
			reasons = append(reasons, "現在診療中")
		}
		switch {
		case facility.Rating >= 4.5:
			reasons = append(reasons, "高評価（4.5以上）")
		case facility.Rating >= 4.0:
			reasons = append(reasons, "評価良好（4.0以上）")
		}
		if placeType == "dentist" && strings.Contains(facility.Name, "歯科") {
			reasons = append(reasons, "診療科目が一致")
		}
		if hasForeignLanguageHint(facility.Name) {
			reasons = append(reasons, "外国語対応の可能性あり")
		}
		if facility.ReviewCount >= 100 {
			reasons = append(reasons, "口コミ多数")
		}
		if len(reasons) == 0 {
			reasons = append(reasons, fmt.Sprintf("候補%d", i+1))
		}
		facility.Reasons = reasons
	}
}

var foreignLanguageHints = []string{"国際", "インターナショナル", "international", "english"}

func hasForeignLanguageHint(name string) bool {
	lowered := strings.ToLower(name)
	for _, hint := range foreignLanguageHints {
		if strings.Contains(lowered, hint) {
			return true
		}
	}
	return false
}
