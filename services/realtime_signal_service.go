package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ttss_backend/models"
)

// SignalHub broadcasts calculation results to connected dashboard clients
type SignalHub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

var signalHub *SignalHub

// InitSignalHub creates the global websocket hub
func InitSignalHub() *SignalHub {
	signalHub = &SignalHub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dashboard origin is enforced at the CORS layer
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	return signalHub
}

// GetSignalHub returns the global hub
func GetSignalHub() *SignalHub {
	return signalHub
}

// ServeWS upgrades the connection and keeps it registered until the
// client disconnects.
func (h *SignalHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("WebSocket client connected, total=%d", count)

	// reader loop only drains control frames; the hub is push-only
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *SignalHub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()
	conn.Close()
	log.Printf("WebSocket client disconnected, total=%d", count)
}

// ClientCount returns the number of connected clients
func (h *SignalHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// runCompleteMessage is pushed after each calculation run
type runCompleteMessage struct {
	Type         string `json:"type"`
	TradeDate    string `json:"trade_date"`
	StrategyType string `json:"strategy_type"`
	Status       string `json:"status"`
	StockCount   int    `json:"stock_count"`
	Timestamp    int64  `json:"timestamp"`
}

// BroadcastRunComplete pushes a run-complete event to every client.
// Implements signals.Broadcaster. Dead connections are dropped.
func (h *SignalHub) BroadcastRunComplete(runLog models.CalculationLog, stockCount int) {
	msg := runCompleteMessage{
		Type:         "run_complete",
		TradeDate:    runLog.TradeDate,
		StrategyType: string(runLog.StrategyType),
		Status:       runLog.Status,
		StockCount:   stockCount,
		Timestamp:    time.Now().Unix(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}
