package vision

import "github.com/your-org/facewatch/internal/models"

// Match picks the nearest known face. The match is accepted only when its
// distance is within tolerance; ties go to the earlier entry.
func Match(known []models.KnownFace, distances []float64, tolerance float64) (*models.KnownFace, float64, bool) {
	if len(known) == 0 || len(distances) != len(known) {
		return nil, 0, false
	}

	best := 0
	for i, d := range distances[1:] {
		if d < distances[best] {
			best = i + 1
		}
	}
	if distances[best] > tolerance {
		return nil, distances[best], false
	}
	return &known[best], distances[best], true
}

// Confidence maps a match distance to the score shown in notifications.
func Confidence(distance float64) float64 {
	return 1 - distance
}
