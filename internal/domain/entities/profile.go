package entities

import (
	"time"
)

// WorkerProfile holds the worker-side attributes the pipeline reads.
// Profiles are owned by the admin surface; this system never writes them.
type WorkerProfile struct {
	ID              string     `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Locale          string     `json:"locale" db:"locale"`
	CountryOfOrigin string     `json:"country_of_origin" db:"country_of_origin"`
	BirthDate       *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	Gender          string     `json:"gender" db:"gender"`
	Address         string     `json:"address" db:"address"`
	Phone           string     `json:"phone" db:"phone"`
	JobDescription  string     `json:"job_description" db:"job_description"`
	HiredAt         *time.Time `json:"hired_at,omitempty" db:"hired_at"`
	Notes           string     `json:"notes" db:"notes"`
}

// GroupProfile holds the employing group's attributes
type GroupProfile struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Phone    string `json:"phone" db:"phone"`
	Address  string `json:"address" db:"address"`
	Language string `json:"language" db:"language"`
}
