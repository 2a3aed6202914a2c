package models

import "time"

type Visit struct {
	ID         int64     `json:"id"`
	PersonID   int64     `json:"person_id"`
	PersonName string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	ImagePath  string    `json:"image_path"`
}

type VisitFilter struct {
	Limit    int
	PersonID *int64
}

// Sighting is a detection that did not match any known person.
// Identified is true exactly when IdentifiedAs is set.
type Sighting struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	ImagePath    string    `json:"image_path"`
	Identified   bool      `json:"identified"`
	IdentifiedAs *int64    `json:"identified_as,omitempty"`
}

type MostFrequentVisitor struct {
	Name  *string `json:"name"`
	Count int     `json:"count"`
}

type Stats struct {
	TotalPersons        int                 `json:"total_persons"`
	TotalVisits         int                 `json:"total_visits"`
	UnknownVisitors     int                 `json:"unknown_visitors"`
	VisitsToday         int                 `json:"visits_today"`
	MostFrequentVisitor MostFrequentVisitor `json:"most_frequent_visitor"`
}
