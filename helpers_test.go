package main

import (
	"encoding/json"
	"sync"
	"time"
)

type sentEvent struct {
	Event   string
	Payload any
}

// fakeConn records everything the core sends to it.
type fakeConn struct {
	id  string
	err error

	mu   sync.Mutex
	sent []sentEvent
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string {
	return f.id
}

func (f *fakeConn) Send(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.sent = append(f.sent, sentEvent{Event: event, Payload: payload})

	return nil
}

func (f *fakeConn) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		names = append(names, s.Event)
	}

	return names
}

func (f *fakeConn) messages() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]sentEvent(nil), f.sent...)
}

func (f *fakeConn) find(event string) (sentEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.sent {
		if s.Event == event {
			return s, true
		}
	}

	return sentEvent{}, false
}

func (f *fakeConn) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = nil
}

func testConfig() *Config {
	return &Config{
		bind:              "127.0.0.1",
		broadcastInterval: 10 * time.Millisecond,
		maxMessageSize:    1024,
		pingInterval:      30 * time.Second,
		port:              8080,
	}
}

func numberMsg(n string) SetNumberMessage {
	raw, _ := json.Marshal(n)

	return SetNumberMessage{MyNumber: raw}
}

func moveRaw(n string) json.RawMessage {
	raw, _ := json.Marshal(MakeMoveMessage{GuessedNumber: mustJSON(n)})

	return raw
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return raw
}
