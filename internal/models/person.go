package models

import "time"

type Person struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Embedding  []float32 `json:"-"`
	VisitCount int       `json:"visit_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
}

// KnownFace is the slice of a Person the recognition loop matches against.
type KnownFace struct {
	PersonID  int64
	Name      string
	Embedding []float32
}

// PersonUpdate carries optional edits. A nil or empty Name leaves the name as is.
type PersonUpdate struct {
	Name  *string `json:"name"`
	Notes *string `json:"notes"`
}
