package video

import (
	"fmt"
	"net/url"

	"github.com/your-org/facewatch/internal/config"
)

// BuildRTSPURL returns video.url when set, otherwise the CP Plus / Dahua
// realmonitor URL for the configured DVR channel.
func BuildRTSPURL(cfg config.VideoConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	u := url.URL{
		Scheme:   "rtsp",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.IP, cfg.Port),
		Path:     "/cam/realmonitor",
		RawQuery: fmt.Sprintf("channel=%d&subtype=%d", cfg.Channel, cfg.Subtype),
	}
	if cfg.Password == "" {
		u.User = url.User(cfg.Username)
	}
	return u.String()
}

// MaskURL hides the password of a stream URL for logging.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	if u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return u.String()
}
