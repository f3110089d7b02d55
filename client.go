package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
)

type outbound struct {
	binary bool
	data   []byte
}

// Client is the WebSocket Transport of one player
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	logger     *slog.Logger
	send       chan outbound
	done       chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool
	remoteAddr string

	roomID   string
	playerID string
	attached *Connection

	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr, roomID, playerID string, logger *slog.Logger) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		logger:     logger.With("room_id", roomID, "player_id", playerID),
		send:       make(chan outbound, sendBufSize),
		done:       make(chan struct{}),
		remoteAddr: remoteAddr,
		roomID:     roomID,
		playerID:   playerID,
	}
}

// SendText queues a text frame. It never blocks; a full buffer is a send
// failure.
func (c *Client) SendText(data []byte) error {
	return c.enqueue(outbound{data: data})
}

// SendBinary queues a binary frame
func (c *Client) SendBinary(data []byte) error {
	return c.enqueue(outbound{binary: true, data: data})
}

func (c *Client) enqueue(m outbound) error {
	if c.closed.Load() {
		return fmt.Errorf("%w: connection closed", ErrSendFailure)
	}
	select {
	case c.send <- m:
		return nil
	default:
		return fmt.Errorf("%w: send buffer full", ErrSendFailure)
	}
}

// Open reports whether the connection still accepts frames
func (c *Client) Open() bool {
	return !c.closed.Load()
}

// Close shuts the connection down. Safe to call from any goroutine, any
// number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
}

// ReadPump reads frames until the connection fails, then detaches the player
func (c *Client) ReadPump() {
	defer func() {
		c.Close()
		if c.attached != nil {
			c.hub.registry.DisconnectConn(c.attached)
		}
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ws read failed", "error", err)
			}
			return
		}
		if c.closed.Load() {
			return
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.logger.Warn("message rate exceeded, disconnecting", "remote_addr", c.remoteAddr)
			return
		}

		if msgType == websocket.BinaryMessage {
			err = c.hub.registry.HandleBinaryMessage(c.roomID, c.playerID, message)
		} else {
			err = c.hub.registry.HandleMessage(c.roomID, c.playerID, message)
		}
		if errors.Is(err, ErrRoomNotFound) {
			return
		}
	}
}

// WritePump writes queued frames and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case m := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			kind := websocket.TextMessage
			if m.binary {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, m.data); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
