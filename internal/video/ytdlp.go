package video

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// IsYouTubeURL reports whether raw points at a YouTube page rather than a stream.
func IsYouTubeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	return host == "youtube.com" || host == "youtu.be"
}

// ResolveYouTubeURL uses yt-dlp to get the direct stream URL from a YouTube link.
func ResolveYouTubeURL(ctx context.Context, youtubeURL string) (string, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--get-url",
		"--format", "best[height<=1080]",
		"--no-playlist",
		youtubeURL,
	)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}
	return firstURL(string(output))
}

// yt-dlp may print separate video and audio URLs; the first is the video.
func firstURL(output string) (string, error) {
	first := strings.TrimSpace(strings.SplitN(strings.TrimSpace(output), "\n", 2)[0])
	if first == "" {
		return "", fmt.Errorf("yt-dlp returned empty URL")
	}
	return first, nil
}

// resolving wraps open so YouTube links are resolved on every (re)connect;
// the direct URLs yt-dlp hands out expire.
func resolving(open Opener) Opener {
	return func(ctx context.Context, raw string) (Capture, error) {
		if !IsYouTubeURL(raw) {
			return open(ctx, raw)
		}
		direct, err := ResolveYouTubeURL(ctx, raw)
		if err != nil {
			return nil, err
		}
		return open(ctx, direct)
	}
}
