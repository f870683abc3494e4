package broadcast

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// dialHub opens a live subscriber connection against an httptest server
// wrapping the hub, for scenario S6 (bus reconnect / eviction).
func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_EvictsSubscriberOnWriteFailure(t *testing.T) {
	hub := NewHub()

	a := dialHub(t, hub)
	defer a.Close()
	b := dialHub(t, hub)

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 2 }, time.Second, 10*time.Millisecond)

	// Simulate subscriber b dying mid-broadcast.
	require.NoError(t, b.Close())

	require.Eventually(t, func() bool {
		hub.SendStatus(DeviceStatus{})
		return hub.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestFindFreePort_ReturnsWithinRange(t *testing.T) {
	port, err := FindFreePort(18080, 18100)
	require.NoError(t, err)
	require.GreaterOrEqual(t, port, 18080)
	require.LessOrEqual(t, port, 18100)
}
