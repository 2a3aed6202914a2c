package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/pkg/dto"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastsNotifications(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastNotification(&models.Notification{ID: "n1", Kind: models.KindKnown, Title: "Alice Detected"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg dto.WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "notification", msg.Type)
	require.NotNil(t, msg.Data)
	assert.Equal(t, "Alice Detected", msg.Data.Title)
}

func TestHubKindFilter(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "?kind=unknown")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastNotification(&models.Notification{ID: "n1", Kind: models.KindKnown})
	hub.BroadcastNotification(&models.Notification{ID: "n2", Kind: models.KindUnknown})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg dto.WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "n2", msg.Data.ID)
}

func TestHubForgetsDisconnectedClients(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

type staticFeed struct {
	items []models.Notification
}

func (f *staticFeed) Recent(int) ([]models.Notification, error) {
	return f.items, nil
}

func TestFeedPollerReturnsOnlyNewEntries(t *testing.T) {
	feed := &staticFeed{items: []models.Notification{{ID: "a"}}}
	p := &feedPoller{feed: feed}

	fresh, err := p.next()
	require.NoError(t, err)
	assert.Empty(t, fresh, "existing entries are not replayed")

	// newest first, as the feed stores them
	feed.items = []models.Notification{{ID: "c"}, {ID: "b"}, {ID: "a"}}
	fresh, err = p.next()
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "b", fresh[0].ID)
	assert.Equal(t, "c", fresh[1].ID)

	fresh, err = p.next()
	require.NoError(t, err)
	assert.Empty(t, fresh)

	// cleared, then a new entry
	feed.items = nil
	_, err = p.next()
	require.NoError(t, err)
	feed.items = []models.Notification{{ID: "d"}}
	fresh, err = p.next()
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "d", fresh[0].ID)
}
