/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
)

// Messages coming from clients
type SetNumberMessage struct {
	MyNumber json.RawMessage `json:"myNumber"`
}

type MakeMoveMessage struct {
	GuessedNumber json.RawMessage `json:"guessedNumber"`
}

type connectRequest struct {
	conn Conn
	ok   chan bool
}

type numberRequest struct {
	id  string
	msg SetNumberMessage
}

type moveRequest struct {
	id  string
	raw json.RawMessage
}

type broadcastRequest struct {
	event   string
	payload any
}

// Lobby serialises every client event onto one goroutine, which is the only
// place the registry, matchmaker and session state are read or written.
type Lobby struct {
	cfg *Config

	registry   *Registry
	matchmaker *Matchmaker
	session    *Session
	reconciler *Reconciler

	register  chan connectRequest
	unreg     chan string
	numbers   chan numberRequest
	moves     chan moveRequest
	broadcast chan broadcastRequest
	done      chan struct{}
}

func newLobby(cfg *Config) *Lobby {
	registry := newRegistry()
	mm := newMatchmaker()
	session := newSession(cfg, mm, registry)

	mm.OnPair = session.Begin

	return &Lobby{
		cfg:        cfg,
		registry:   registry,
		matchmaker: mm,
		session:    session,
		reconciler: newReconciler(cfg, mm, registry),
		register:   make(chan connectRequest),
		unreg:      make(chan string),
		numbers:    make(chan numberRequest),
		moves:      make(chan moveRequest),
		broadcast:  make(chan broadcastRequest, 1),
		done:       make(chan struct{}),
	}
}

func (l *Lobby) run(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case req := <-l.register:
			req.ok <- l.handleConnect(req.conn) == nil

		case id := <-l.unreg:
			l.handleDisconnect(id)

		case nr := <-l.numbers:
			if err := l.handleSetNumber(nr.id, nr.msg); err != nil {
				logf(l.cfg, "ERROR: Dropped set.number from %s: %v", nr.id, err)
			}

		case mr := <-l.moves:
			if err := l.handleMakeMove(mr.id, mr.raw); err != nil {
				logf(l.cfg, "ERROR: Dropped make.move from %s: %v", mr.id, err)
			}

		case br := <-l.broadcast:
			l.handleBroadcast(br.event, br.payload)

		case <-ctx.Done():
			return
		}
	}
}

func (l *Lobby) handleConnect(c Conn) error {
	if err := l.registry.Connect(c); err != nil {
		logf(l.cfg, "ERROR: Registering %s: %v", c.ID(), err)

		return err
	}

	logf(l.cfg, "CONNS: Client %s connected (%d online)", c.ID(), l.registry.Len())

	return nil
}

// handleDisconnect runs the reconciler at most once per client.
func (l *Lobby) handleDisconnect(id string) {
	if _, ok := l.registry.Disconnect(id); !ok {
		return
	}

	l.reconciler.Depart(id)

	logf(l.cfg, "CONNS: Client %s disconnected (%d online)", id, l.registry.Len())
}

func (l *Lobby) handleSetNumber(id string, msg SetNumberMessage) error {
	if _, ok := l.registry.Lookup(id); !ok {
		return ErrNotFound
	}

	number, err := canonicalNumber(msg.MyNumber)
	if err != nil {
		return err
	}

	// Join may pair id right away, which sends game.begin to both sides.
	l.matchmaker.Join(id)

	return l.session.SubmitNumber(id, number)
}

func (l *Lobby) handleMakeMove(id string, raw json.RawMessage) error {
	if _, ok := l.registry.Lookup(id); !ok {
		return ErrNotFound
	}

	var msg MakeMoveMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNumber, err)
	}

	guess, err := canonicalNumber(msg.GuessedNumber)
	if err != nil {
		return err
	}

	return l.session.SubmitGuess(id, guess, raw)
}

func (l *Lobby) handleBroadcast(event string, payload any) {
	l.registry.Each(func(c Conn) {
		if err := c.Send(event, payload); err != nil {
			logf(l.cfg, "ERROR: Sending %s to %s: %v", event, c.ID(), err)
		}
	})
}

// Broadcast queues an event for every connected client. It never blocks; if a
// broadcast is already pending the new one is dropped.
func (l *Lobby) Broadcast(event string, payload any) bool {
	select {
	case l.broadcast <- broadcastRequest{event: event, payload: payload}:
		return true
	default:
		return false
	}
}

// The methods below hand events to the run loop. They return false once the
// loop has stopped so that pumps never block on a dead lobby.

// Connect reports false if the lobby has stopped or refused the client. A
// refused client was never registered and must not post a disconnect.
func (l *Lobby) Connect(c Conn) bool {
	req := connectRequest{conn: c, ok: make(chan bool, 1)}

	select {
	case l.register <- req:
	case <-l.done:
		return false
	}

	return <-req.ok
}

func (l *Lobby) Disconnect(id string) bool {
	select {
	case l.unreg <- id:
		return true
	case <-l.done:
		return false
	}
}

func (l *Lobby) SetNumber(id string, msg SetNumberMessage) bool {
	select {
	case l.numbers <- numberRequest{id: id, msg: msg}:
		return true
	case <-l.done:
		return false
	}
}

func (l *Lobby) MakeMove(id string, raw json.RawMessage) bool {
	select {
	case l.moves <- moveRequest{id: id, raw: raw}:
		return true
	case <-l.done:
		return false
	}
}
