package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/servicehub-backend/internal/domain/event"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
)

func TestHub_PublishesStatusChangeToParticipant(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	buyerID := uuid.New()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, buyerID)
		hub.Register(client)
		client.Run()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Online(buyerID) == 1 }, time.Second, 10*time.Millisecond)

	jobID := uuid.New()
	hub.PublishJobStatusChanged(ctx, event.JobStatusChanged{
		JobID:    jobID,
		BuyerID:  buyerID,
		SellerID: uuid.New(),
		From:     valueobject.JobStatusProposed,
		To:       valueobject.JobStatusFunded,
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string                 `json:"type"`
		Data event.JobStatusChanged `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, event.TypeJobStatusChanged, msg.Type)
	assert.Equal(t, jobID, msg.Data.JobID)
	assert.Equal(t, valueobject.JobStatusFunded, msg.Data.To)
}

func TestHub_BroadcastDropsWhenQueueFull(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	for i := 0; i < cap(hub.broadcast); i++ {
		require.NoError(t, hub.BroadcastToUser(userID, "ping", i))
	}
	assert.Error(t, hub.BroadcastToUser(userID, "ping", "overflow"))
}
