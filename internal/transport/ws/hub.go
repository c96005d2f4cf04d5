package ws

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/NeruoDissident/FracturedCity/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans the per-tick summary stream out to connected observers and
// answers their queries from a cache published by the tick loop. The
// simulation itself is single-threaded; observers only ever see the cached
// copy, never live state.
type Hub struct {
	colonyID   string
	tickRateHz int
	logger     *log.Logger

	mu       sync.Mutex
	clients  map[*client]struct{}
	lastTick uint64
	lastJobs protocol.JobListMsg
}

func NewHub(colonyID string, tickRateHz int, logger *log.Logger) *Hub {
	return &Hub{
		colonyID:   colonyID,
		tickRateHz: tickRateHz,
		logger:     logger,
		clients:    map[*client]struct{}{},
	}
}

// PublishTick is called by the tick loop after every step. Slow observers
// are disconnected rather than allowed to stall the broadcast.
func (h *Hub) PublishTick(summary protocol.TickSummaryMsg, jobs protocol.JobListMsg) {
	h.mu.Lock()
	h.lastTick = summary.Tick
	h.lastJobs = jobs
	for c := range h.clients {
		select {
		case c.send <- summary:
		default:
			h.dropLocked(c)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

func (h *Hub) jobList() protocol.JobListMsg {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastJobs
}

// ServeHTTP upgrades an observer connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws upgrade: %v", err)
		return
	}
	c := &client{
		hub:       h,
		conn:      conn,
		send:      make(chan interface{}, sendBuffer),
		sessionID: uuid.NewString(),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()
}

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan interface{}
	sessionID string
	welcomed  bool
}

func (c *client) readLoop() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			c.hub.logger.Printf("ws %s: %s bad message", c.sessionID, protocol.ErrProtoBadRequest)
			return
		}
		switch base.Type {
		case protocol.TypeHello:
			if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
				c.hub.logger.Printf("ws %s: version mismatch %q", c.sessionID, base.ProtocolVersion)
				return
			}
			c.welcomed = true
			c.trySend(protocol.WelcomeMsg{
				Type:            protocol.TypeWelcome,
				ProtocolVersion: protocol.Version,
				SessionID:       c.sessionID,
				ColonyID:        c.hub.colonyID,
				TickRateHz:      c.hub.tickRateHz,
				Tick:            c.hub.jobList().Tick,
			})
		case protocol.TypeJobList:
			if !c.welcomed {
				return
			}
			c.trySend(c.hub.jobList())
		default:
			c.hub.logger.Printf("ws %s: %s unknown type %q", c.sessionID, protocol.ErrProtoBadRequest, base.Type)
		}
	}
}

func (c *client) trySend(msg interface{}) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
