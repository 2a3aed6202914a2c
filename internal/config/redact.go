package config

import (
	"net/url"
	"slices"
)

// Redacted returns a copy of cfg with every credential blanked. Secret fields
// carry omitempty JSON tags, so they disappear from API responses entirely.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.APIKey = ""
	out.Video.Password = ""
	out.Video.URL = stripURLPassword(c.Video.URL)
	out.Database.Password = ""
	out.Storage.MinIO.SecretKey = ""
	out.Notifications.Email.SendGridAPIKey = ""
	out.Notifications.Telegram.BotToken = ""
	out.Notifications.MQTT.Password = ""
	// shoutrrr URLs embed tokens in the URL itself
	out.Notifications.Shoutrrr.URLs = nil
	return &out
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	out := *c
	out.Notifications.Shoutrrr.URLs = slices.Clone(c.Notifications.Shoutrrr.URLs)
	return &out
}

func stripURLPassword(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User(u.User.Username())
	return u.String()
}
