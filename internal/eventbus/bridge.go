package eventbus

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studiowebux/keyclash/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Bridge streams bus events to websocket clients as JSON frames. Each
// connection gets its own subscription; ?topic=... restricts it.
type Bridge struct {
	bus      *Bus
	upgrader websocket.Upgrader
}

// NewBridge creates a bridge over bus
func NewBridge(bus *Bus) *Bridge {
	return &Bridge{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local tool: accept any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and pumps events until either side
// closes
func (br *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := br.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WarningLog.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var topics []Topic
	for _, t := range r.URL.Query()["topic"] {
		topics = append(topics, Topic(t))
	}
	sub := br.bus.Subscribe(topics...)
	defer br.bus.Unsubscribe(sub)

	// Reader goroutine: handles pongs and notices client close
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bus closed"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				logging.WarningLog.Printf("websocket write failed: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
