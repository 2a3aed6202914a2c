package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/facewatch/internal/models"
)

// FeedReader is the read side of the notification feed.
type FeedReader interface {
	Recent(limit int) ([]models.Notification, error)
}

// PollFeed broadcasts feed entries written by the monitor process. It is the
// fallback when no NATS server carries notifications to the dashboard.
func PollFeed(ctx context.Context, feed FeedReader, hub *Hub, interval time.Duration) {
	p := &feedPoller{feed: feed}
	if _, err := p.next(); err != nil {
		slog.Warn("read notification feed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fresh, err := p.next()
			if err != nil {
				slog.Warn("read notification feed", "error", err)
				continue
			}
			for i := range fresh {
				hub.BroadcastNotification(&fresh[i])
			}
		}
	}
}

type feedPoller struct {
	feed   FeedReader
	lastID string
	primed bool
}

// next returns entries added since the previous call, oldest first. The
// first call only records the current head.
func (p *feedPoller) next() ([]models.Notification, error) {
	items, err := p.feed.Recent(0)
	if err != nil {
		return nil, err
	}

	var fresh []models.Notification
	for _, n := range items {
		if n.ID == p.lastID {
			break
		}
		fresh = append(fresh, n)
	}
	if len(items) > 0 {
		p.lastID = items[0].ID
	} else {
		p.lastID = ""
	}

	if !p.primed {
		p.primed = true
		return nil, nil
	}
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}
	return fresh, nil
}
