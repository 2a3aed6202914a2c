package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/facewatch/internal/config"
)

func TestPublishesToNATS(t *testing.T) {
	tests := []struct {
		name          string
		enabled, nats bool
		want          bool
	}{
		{"both on", true, true, true},
		{"notifications off", false, true, false},
		{"nats off", true, false, false},
		{"both off", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NotificationsConfig{Enabled: tt.enabled}
			cfg.NATS.Enabled = tt.nats
			cfg.NATS.URL = "nats://127.0.0.1:1"
			assert.Equal(t, tt.want, PublishesToNATS(cfg))
		})
	}
}

func TestBuildChannelsSkipsEverythingWhenDisabled(t *testing.T) {
	cfg := config.NotificationsConfig{Enabled: false}
	cfg.NATS.Enabled = true
	cfg.NATS.URL = "nats://127.0.0.1:1"

	assert.Empty(t, BuildChannels(context.Background(), cfg, nil))
}
