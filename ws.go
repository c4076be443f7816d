/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	eventSetNumber = "set.number"
	eventMakeMove  = "make.move"

	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("send buffer full")
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. It satisfies Conn.
type Client struct {
	cfg   *Config
	conn  *websocket.Conn
	lobby *Lobby
	id    string

	send chan outbound
	quit chan struct{}
	once sync.Once
}

func newClient(cfg *Config, conn *websocket.Conn, lobby *Lobby) *Client {
	return &Client{
		cfg:   cfg,
		conn:  conn,
		lobby: lobby,
		id:    uuid.NewString(),
		send:  make(chan outbound, sendBufferSize),
		quit:  make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues an event without blocking. A client that cannot keep up is
// closed, and its read pump then reports the departure.
func (c *Client) Send(event string, payload any) error {
	select {
	case <-c.quit:
		return errClientClosed
	default:
	}

	select {
	case c.send <- outbound{Event: event, Data: payload}:
		return nil
	default:
		c.close()

		return errSendBufferFull
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.quit)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.lobby.Disconnect(c.id)
		c.close()
	}()

	pongWait := 2 * c.cfg.pingInterval

	c.conn.SetReadLimit(c.cfg.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logf(c.cfg, "ERROR: Malformed message from %s: %v", c.id, err)

			continue
		}

		switch env.Event {
		case eventSetNumber:
			var msg SetNumberMessage
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				logf(c.cfg, "ERROR: Malformed %s from %s: %v", env.Event, c.id, err)

				continue
			}

			if !c.lobby.SetNumber(c.id, msg) {
				return
			}
		case eventMakeMove:
			if !c.lobby.MakeMove(c.id, env.Data) {
				return
			}
		default:
			// ignore unknown events
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.pingInterval)

	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.quit:
			return
		}
	}
}

func serveWS(cfg *Config, lobby *Lobby, counter Counter) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Upgrade failed for %s: %v", realIP(r), err)

			return
		}

		client := newClient(cfg, conn, lobby)

		if !lobby.Connect(client) {
			logf(cfg, "CONNS: Refused %s from %s", client.id, realIP(r))

			client.close()

			return
		}

		if countPresence(cfg, counter.Incr) {
			defer countPresence(cfg, counter.Decr)
		}

		logf(cfg, "CONNS: Accepted %s from %s", client.id, realIP(r))

		go client.writePump()
		client.readPump()
	}
}
