package notify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/your-org/facewatch/internal/config"
)

// BuildChannels creates every enabled external channel. A channel that
// cannot be set up is logged and skipped so the others still work.
func BuildChannels(ctx context.Context, cfg config.NotificationsConfig, client *http.Client) []Channel {
	if !cfg.Enabled {
		return nil
	}

	var channels []Channel
	add := func(name string, ch Channel, err error) {
		if err != nil {
			slog.Warn("notification channel disabled", "channel", name, "error", err)
			return
		}
		slog.Info("notification channel enabled", "channel", name)
		channels = append(channels, ch)
	}

	if cfg.Email.Enabled {
		ch, err := NewSendGrid(cfg.Email, client)
		add("email", ch, err)
	}
	if cfg.Telegram.Enabled {
		ch, err := NewTelegram(cfg.Telegram, client)
		add("telegram", ch, err)
	}
	if cfg.Shoutrrr.Enabled {
		ch, err := NewShoutrrr(cfg.Shoutrrr.URLs, cfg.Timeout())
		add("shoutrrr", ch, err)
	}
	if PublishesToNATS(cfg) {
		ch, err := NewNATS(ctx, cfg.NATS.URL)
		add("nats", ch, err)
	}
	if cfg.MQTT.Enabled {
		ch, err := NewMQTT(cfg.MQTT)
		add("mqtt", ch, err)
	}
	return channels
}

// PublishesToNATS reports whether the monitor publishes notifications to
// JetStream under cfg. Readers of the stream use it to decide between
// subscribing and polling the feed file.
func PublishesToNATS(cfg config.NotificationsConfig) bool {
	return cfg.Enabled && cfg.NATS.Enabled
}
