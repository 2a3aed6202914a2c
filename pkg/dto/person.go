package dto

import (
	"time"

	"github.com/your-org/facewatch/internal/models"
)

const timeFormat = time.RFC3339

type PersonResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Notes      string `json:"notes"`
	VisitCount int    `json:"visit_count"`
	FirstSeen  string `json:"first_seen"`
	LastSeen   string `json:"last_seen"`
	CreatedAt  string `json:"created_at"`
}

type PersonDetailResponse struct {
	PersonResponse
	RecentVisits []VisitResponse `json:"recent_visits"`
}

type UpdatePersonRequest struct {
	Name  *string `json:"name"`
	Notes *string `json:"notes"`
}

type IdentifyRequest struct {
	Name  string `json:"name" binding:"required"`
	Notes string `json:"notes"`
}

func NewPersonResponse(p *models.Person) PersonResponse {
	return PersonResponse{
		ID:         p.ID,
		Name:       p.Name,
		Notes:      p.Notes,
		VisitCount: p.VisitCount,
		FirstSeen:  formatTime(p.FirstSeen),
		LastSeen:   formatTime(p.LastSeen),
		CreatedAt:  formatTime(p.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeFormat)
}
