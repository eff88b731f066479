// ICSWatch - ICS Network Traffic Replay and Threat Classification
// Copyright 2026 ICSWatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/icswatch/icswatch

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/icswatch/icswatch/internal/logging"
)

const (
	// writeTimeout bounds every outbound frame, verdicts and keepalives
	// alike. A subscriber that cannot drain a frame in this window is
	// torn down rather than allowed to stall the write loop.
	writeTimeout = 10 * time.Second

	// pongTimeout is how long a subscriber may stay silent before the
	// read loop declares it dead. Keepalive pings go out well inside it.
	pongTimeout       = 60 * time.Second
	keepaliveInterval = (pongTimeout * 9) / 10

	// Subscribers are consumers of the replay feed; the only frames they
	// send are small control messages, so the inbound limit is tight.
	inboundLimit = 4 * 1024

	sendBufferSize = 256
)

// subscriberSeq hands out ids. Monotonic ids give the hub a stable sort
// order when fanning out, so every subscriber sees verdicts in the same
// sequence.
var subscriberSeq atomic.Uint64

// Client is one websocket subscriber: the pair of pump goroutines
// between a connection and the hub. The hub owns the send channel's
// lifecycle and closes it to disconnect the subscriber.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message
	log  zerolog.Logger
}

// NewClient wraps an upgraded connection. The caller registers the
// client with the hub and then calls Start.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := subscriberSeq.Add(1)
	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBufferSize),
		log:  logging.With().Uint64("subscriber_id", id).Logger(),
	}
}

// ID returns the subscriber's id.
func (c *Client) ID() uint64 {
	return c.id
}

// Start launches the read and write loops. Either loop exiting closes
// the connection, which unwinds the other.
func (c *Client) Start() {
	go c.writeLoop()
	go c.readLoop()
}

// readLoop drains inbound frames until the subscriber disconnects, then
// unregisters from the hub. The feed is one-way; the only inbound frame
// acted on is the application-level ping, everything else is dropped.
func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(inboundLimit)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongTimeout)); err != nil {
		c.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("subscriber closed unexpectedly")
			}
			return
		}
		c.handleInbound(msg)
	}
}

// handleInbound answers application-level pings. The pong rides the
// normal send buffer; if the subscriber is too backed up to take it,
// the keepalive cycle will catch the stall.
func (c *Client) handleInbound(msg Message) {
	switch msg.Type {
	case MessageTypePing:
		select {
		case c.send <- Message{Type: MessageTypePong}:
		default:
		}
	default:
		c.log.Debug().Str("type", msg.Type).Msg("ignoring inbound message")
	}
}

// writeLoop delivers hub messages and keepalive pings until the send
// channel closes or a write fails.
func (c *Client) writeLoop() {
	keepalive := time.NewTicker(keepaliveInterval)
	defer func() {
		keepalive.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub disconnected us; tell the peer before closing.
				_ = c.writeControl(websocket.CloseMessage)
				return
			}
			if err := c.writeJSON(msg); err != nil {
				c.log.Error().Err(err).Str("type", msg.Type).Msg("failed to write message")
				return
			}
		case <-keepalive.C:
			if err := c.writeControl(websocket.PingMessage); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeJSON(msg Message) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) writeControl(messageType int) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, nil)
}
