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

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/pkg/dto"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() < want {
		t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
	}
	return conn
}

func TestHubBroadcastsAttendance(t *testing.T) {
	hub, url := startHub(t)
	all := dial(t, hub, url, 1)
	p2 := dial(t, hub, url+"?period=P2", 2)

	hub.BroadcastAttendance(&models.AttendanceEvent{
		RecordID:    "6f1c7c3e-8a47-4d0a-9d7e-2c3f6e9b1a10",
		StudentCode: "106",
		Name:        "Meera",
		Date:        "2025-01-10",
		Period:      "P1",
		SpoofStatus: "LIVE",
	})

	_ = all.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := all.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	var evt dto.WSEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if evt.Type != EventAttendanceMarked || evt.Data.StudentID != "106" || evt.Data.Period != "P1" {
		t.Errorf("event = %+v", evt)
	}

	_ = p2.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := p2.ReadMessage(); err == nil {
		t.Error("period-filtered client received another period's event")
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after close, want 0", hub.ClientCount())
	}
}
