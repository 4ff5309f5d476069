// Package feed streams settled trades to websocket subscribers.
package feed

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/simexchange/internal/domain"
)

const (
	subscriberBuffer = 64
	writeWait        = 5 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

// TradeEvent is the public view of a settled trade.
type TradeEvent struct {
	TradeID    string    `json:"trade_id"`
	Ticker     string    `json:"ticker"`
	Price      int64     `json:"price"`
	Quantity   int64     `json:"quantity"`
	ExecutedAt time.Time `json:"executed_at"`
	Synthetic  bool      `json:"synthetic"`
}

type message struct {
	Type string     `json:"type"`
	Data TradeEvent `json:"data"`
}

// TradeFeed broadcasts every trade it is told about to the connected
// websocket clients. It implements engine.TradeListener.
type TradeFeed struct {
	hub       *Hub[TradeEvent]
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	onClients func(int)
}

// New creates a TradeFeed. onClients, if non-nil, is called with the
// subscriber count whenever a client connects or leaves.
func New(logger *slog.Logger, onClients func(int)) *TradeFeed {
	return &TradeFeed{
		hub:       NewHub[TradeEvent](),
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:    logger,
		onClients: onClients,
	}
}

func (f *TradeFeed) TradeExecuted(t domain.Trade) {
	f.hub.Broadcast(TradeEvent{
		TradeID:    t.TradeID,
		Ticker:     t.Ticker,
		Price:      t.Price,
		Quantity:   t.Quantity,
		ExecutedAt: t.ExecutedAt,
		Synthetic:  t.Synthetic,
	})
}

// Clients returns the number of connected subscribers.
func (f *TradeFeed) Clients() int {
	return f.hub.Len()
}

// ServeHTTP upgrades the request and streams trades until the client goes
// away. An optional ticker query parameter restricts the stream to one
// instrument.
func (f *TradeFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := f.hub.Subscribe(subscriberBuffer)
	f.clientsChanged()
	defer func() {
		f.hub.Unsubscribe(sub)
		f.clientsChanged()
	}()

	done := make(chan struct{})
	go f.readPump(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ticker != "" && ev.Ticker != ticker {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message{Type: "trade", Data: ev}); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
// It closes done when the connection fails.
func (f *TradeFeed) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *TradeFeed) clientsChanged() {
	if f.onClients != nil {
		f.onClients(f.hub.Len())
	}
}
