package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_PublishReachesClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish("sms_progress", map[string]int{"sent": 1})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, "sms_progress", ev.Type)
	assert.Equal(t, 1, ev.Data["sent"])
}

func TestHub_PublishWithoutRunDoesNotBlock(t *testing.T) {
	hub := NewHub(zap.NewNop())
	for i := 0; i < 300; i++ {
		hub.Publish("tick", i)
	}
	assert.Equal(t, 0, hub.Clients())
}

func TestHub_ServeAfterRunStopsClosesConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop())
	finished := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(finished)
	}()
	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection left open: %v", err)
	}
	assert.Equal(t, 0, hub.Clients())
}
