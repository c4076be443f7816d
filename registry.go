/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Conn is the transport-facing handle for one connected client. The core only
// ever sees the id and the ability to send a named event.
type Conn interface {
	ID() string
	Send(event string, payload any) error
}

// Registry holds one live Conn per connected client.
// It is only touched from the lobby goroutine.
type Registry struct {
	conns map[string]Conn
}

func newRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Conn),
	}
}

func (r *Registry) Connect(c Conn) error {
	if _, ok := r.conns[c.ID()]; ok {
		return ErrDuplicateClient
	}

	r.conns[c.ID()] = c

	return nil
}

// Disconnect removes the client and reports true the first time only.
func (r *Registry) Disconnect(id string) (Conn, bool) {
	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}

	delete(r.conns, id)

	return c, true
}

func (r *Registry) Lookup(id string) (Conn, bool) {
	c, ok := r.conns[id]

	return c, ok
}

func (r *Registry) Len() int {
	return len(r.conns)
}

func (r *Registry) Each(fn func(Conn)) {
	for _, c := range r.conns {
		fn(c)
	}
}
