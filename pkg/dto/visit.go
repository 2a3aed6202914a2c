package dto

import "github.com/your-org/facewatch/internal/models"

type VisitResponse struct {
	ID         int64   `json:"id"`
	PersonID   int64   `json:"person_id"`
	Name       string  `json:"name"`
	Timestamp  string  `json:"timestamp"`
	Confidence float64 `json:"confidence"`
	ImagePath  string  `json:"image_path"`
	ImageURL   string  `json:"image_url,omitempty"`
}

type SightingResponse struct {
	ID           int64  `json:"id"`
	Timestamp    string `json:"timestamp"`
	ImagePath    string `json:"image_path"`
	ImageURL     string `json:"image_url,omitempty"`
	Identified   bool   `json:"identified"`
	IdentifiedAs *int64 `json:"identified_as,omitempty"`
}

type UploadResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func NewVisitResponse(v *models.Visit) VisitResponse {
	return VisitResponse{
		ID:         v.ID,
		PersonID:   v.PersonID,
		Name:       v.PersonName,
		Timestamp:  formatTime(v.Timestamp),
		Confidence: v.Confidence,
		ImagePath:  v.ImagePath,
		ImageURL:   ImageURL(v.ImagePath),
	}
}

func NewSightingResponse(s *models.Sighting) SightingResponse {
	return SightingResponse{
		ID:           s.ID,
		Timestamp:    formatTime(s.Timestamp),
		ImagePath:    s.ImagePath,
		ImageURL:     ImageURL(s.ImagePath),
		Identified:   s.Identified,
		IdentifiedAs: s.IdentifiedAs,
	}
}

// ImageURL is where the dashboard serves a stored crop.
func ImageURL(name string) string {
	if name == "" {
		return ""
	}
	return "/images/" + name
}
