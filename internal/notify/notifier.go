package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/observability"
)

// Channel delivers one notification to an external service.
type Channel interface {
	Name() string
	Send(ctx context.Context, n *models.Notification, image []byte) error
}

// Event is what the monitor reports; the notifier turns it into a
// timestamped Notification.
type Event struct {
	Kind       string
	Title      string
	Message    string
	PersonID   *int64
	Confidence *float64
	ImageName  string
	Image      []byte
}

// Notifier writes every event to the log and the feed, then fans it out to
// the external channels. Channel failures are logged and counted, never
// returned, and never retried.
type Notifier struct {
	feed     *Feed
	channels []Channel
	timeout  time.Duration
	now      func() time.Time

	wg sync.WaitGroup
}

func New(feed *Feed, timeout time.Duration, channels ...Channel) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{feed: feed, channels: channels, timeout: timeout, now: time.Now}
}

// MessageText appends the confidence, when known, as a percentage.
func MessageText(message string, confidence *float64) string {
	if confidence == nil {
		return message
	}
	return fmt.Sprintf("%s (Confidence: %.1f%%)", message, *confidence*100)
}

func (n *Notifier) Notify(ctx context.Context, ev Event) *models.Notification {
	note := &models.Notification{
		ID:         uuid.NewString(),
		Kind:       ev.Kind,
		Title:      ev.Title,
		Message:    MessageText(ev.Message, ev.Confidence),
		ImagePath:  ev.ImageName,
		PersonID:   ev.PersonID,
		Confidence: ev.Confidence,
		Timestamp:  n.now().Format(models.NotificationTimeLayout),
	}

	slog.Info("visitor notification",
		"kind", note.Kind,
		"title", note.Title,
		"message", note.Message,
		"image", note.ImagePath,
	)
	observability.NotificationsSent.WithLabelValues("console", "ok").Inc()

	if n.feed != nil {
		if err := n.feed.Add(note); err != nil {
			slog.Warn("store notification in feed", "error", err)
			observability.NotificationsSent.WithLabelValues("feed", "error").Inc()
		} else {
			observability.NotificationsSent.WithLabelValues("feed", "ok").Inc()
		}
	}

	base := context.WithoutCancel(ctx)
	for _, ch := range n.channels {
		n.wg.Add(1)
		go func(ch Channel) {
			defer n.wg.Done()

			sendCtx, cancel := context.WithTimeout(base, n.timeout)
			defer cancel()

			if err := ch.Send(sendCtx, note, ev.Image); err != nil {
				slog.Warn("notification delivery failed", "channel", ch.Name(), "error", err)
				observability.NotificationsSent.WithLabelValues(ch.Name(), "error").Inc()
				return
			}
			slog.Debug("notification delivered", "channel", ch.Name(), "id", note.ID)
			observability.NotificationsSent.WithLabelValues(ch.Name(), "ok").Inc()
		}(ch)
	}
	return note
}

// Channels lists the names of the configured external channels.
func (n *Notifier) Channels() []string {
	names := make([]string, len(n.channels))
	for i, ch := range n.channels {
		names[i] = ch.Name()
	}
	return names
}

// Close waits for in-flight deliveries and closes channels that hold
// connections.
func (n *Notifier) Close() error {
	n.wg.Wait()
	var firstErr error
	for _, ch := range n.channels {
		if c, ok := ch.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
