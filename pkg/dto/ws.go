package dto

import "github.com/your-org/facewatch/internal/models"

// WSMessage is pushed to dashboard websocket clients.
type WSMessage struct {
	Type string               `json:"type"`
	Data *models.Notification `json:"data"`
}
