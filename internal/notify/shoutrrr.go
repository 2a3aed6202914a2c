package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/your-org/facewatch/internal/models"
)

// Shoutrrr forwards the notification text to any shoutrrr service URL
// (Discord, Slack, ntfy, Pushover and so on). Images are not attached.
type Shoutrrr struct {
	sender *router.ServiceRouter
}

func NewShoutrrr(urls []string, timeout time.Duration) (*Shoutrrr, error) {
	if len(urls) == 0 {
		return nil, errors.New("shoutrrr channel needs at least one url")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// the raw error may echo a URL with its token
		return nil, errors.New("shoutrrr: invalid service url")
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &Shoutrrr{sender: sender}, nil
}

func (s *Shoutrrr) Name() string { return "shoutrrr" }

func (s *Shoutrrr) Send(_ context.Context, n *models.Notification, _ []byte) error {
	params := stypes.Params{}
	params.SetTitle(n.Title)

	var failed int
	for _, err := range s.sender.Send(n.Message, &params) {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("shoutrrr: %d service(s) failed", failed)
	}
	return nil
}
