package models

const (
	KindKnown   = "known"
	KindUnknown = "unknown"
)

// NotificationTimeLayout is the timestamp layout used in the persisted feed.
const NotificationTimeLayout = "2006-01-02 15:04:05"

type Notification struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	ImagePath  string   `json:"image_path,omitempty"`
	PersonID   *int64   `json:"person_id,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Timestamp  string   `json:"timestamp"`
}
