package video

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsYouTubeURL(t *testing.T) {
	assert.True(t, IsYouTubeURL("https://www.youtube.com/watch?v=abc"))
	assert.True(t, IsYouTubeURL("https://youtu.be/abc"))
	assert.True(t, IsYouTubeURL("https://m.youtube.com/watch?v=abc"))
	assert.False(t, IsYouTubeURL("rtsp://admin:pw@192.168.1.64:554/cam/realmonitor?channel=1&subtype=0"))
	assert.False(t, IsYouTubeURL("https://notyoutube.com/watch"))
	assert.False(t, IsYouTubeURL("::"))
}

func TestFirstURL(t *testing.T) {
	got, err := firstURL("https://video.example/v\nhttps://audio.example/a\n")
	require.NoError(t, err)
	assert.Equal(t, "https://video.example/v", got)

	_, err = firstURL("  \n")
	assert.Error(t, err)
}

func TestResolvingPassesThroughStreams(t *testing.T) {
	var opened string
	open := resolving(func(_ context.Context, url string) (Capture, error) {
		opened = url
		return nil, nil
	})

	_, err := open(context.Background(), "rtsp://cam/stream")
	require.NoError(t, err)
	assert.Equal(t, "rtsp://cam/stream", opened)
}
