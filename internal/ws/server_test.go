package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"vpinscope.com/internal/stream"
	"vpinscope.com/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("test", "error")
	os.Exit(m.Run())
}

func dialTestServer(t *testing.T, s *Server) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(s.ServeWS))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, srv
}

func readMsg(t *testing.T, conn *websocket.Conn) ServerMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ServerMsg
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestServeWSDeliversEvents(t *testing.T) {
	bus := stream.NewBus()
	s := NewServer(context.Background(), bus)

	conn, srv := dialTestServer(t, s)
	defer srv.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	bus.Publish(stream.Event{Type: stream.EventReading, Payload: &stream.ReadingPayload{BucketID: 7, VPIN: 0.42}})

	msg := readMsg(t, conn)
	require.Equal(t, "bucket_closed", msg.Type)

	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(7), data["bucket_id"])
	require.Equal(t, 0.42, data["vpin"])
}

func TestServeWSBackfillsHistory(t *testing.T) {
	bus := stream.NewBus()
	s := NewServer(context.Background(), bus)

	// Readings published before the client connects.
	for i := uint64(1); i <= 3; i++ {
		bus.Publish(stream.Event{Type: stream.EventReading, Payload: &stream.ReadingPayload{BucketID: i}})
	}

	conn, srv := dialTestServer(t, s)
	defer srv.Close()
	defer conn.Close()

	for i := uint64(1); i <= 3; i++ {
		msg := readMsg(t, conn)
		require.Equal(t, "bucket_closed", msg.Type)
		data := msg.Data.(map[string]any)
		require.Equal(t, float64(i), data["bucket_id"], "backfill must arrive in publish order")
	}
}

func TestServeWSUnregistersOnDisconnect(t *testing.T) {
	bus := stream.NewBus()
	s := NewServer(context.Background(), bus)

	conn, srv := dialTestServer(t, s)
	defer srv.Close()

	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return bus.SubscriberCount() == 0 }, 5*time.Second, 5*time.Millisecond,
		"closed connections must be unregistered from the bus")
}
