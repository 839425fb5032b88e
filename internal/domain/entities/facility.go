package entities

// MedicalFacility is a facility search result. Facilities are ephemeral:
// constructed per search call and persisted only inside an artifact's extra
// payload or a system-message payload.
type MedicalFacility struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	MapURL      string   `json:"map_url,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	ReviewCount int      `json:"review_count,omitempty"`
	OpenNow     *bool    `json:"open_now,omitempty"`
	DistanceKm  float64  `json:"distance_km"`
	Reasons     []string `json:"reasons,omitempty"`
}
