package notify

import (
	"context"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/queue"
)

// NATS publishes notifications to the NOTIFICATIONS JetStream stream.
type NATS struct {
	producer *queue.Producer
}

func NewNATS(ctx context.Context, url string) (*NATS, error) {
	p, err := queue.NewProducer(url)
	if err != nil {
		return nil, err
	}
	if err := p.EnsureStreams(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return &NATS{producer: p}, nil
}

func (c *NATS) Name() string { return "nats" }

func (c *NATS) Send(ctx context.Context, n *models.Notification, _ []byte) error {
	return c.producer.PublishNotification(ctx, n)
}

func (c *NATS) Close() error {
	c.producer.Close()
	return nil
}
