/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Reconciler unwinds matchmaking state when a client goes away.
type Reconciler struct {
	cfg      *Config
	mm       *Matchmaker
	registry *Registry
}

func newReconciler(cfg *Config, mm *Matchmaker, registry *Registry) *Reconciler {
	return &Reconciler{
		cfg:      cfg,
		mm:       mm,
		registry: registry,
	}
}

// Depart must be called once per departed client, after it has left the registry.
func (r *Reconciler) Depart(id string) {
	opponent, err := r.mm.Opponent(id)
	if err != nil {
		r.mm.Purge(id)

		return
	}

	if c, ok := r.registry.Lookup(opponent); ok {
		if err := c.Send(eventOpponentLeft, nil); err != nil {
			logf(r.cfg, "ERROR: Sending %s to %s: %v", eventOpponentLeft, opponent, err)
		}
	}

	r.mm.Purge(id)

	if err := r.mm.Requeue(opponent); err != nil {
		logf(r.cfg, "ERROR: Requeueing %s: %v", opponent, err)

		return
	}

	logf(r.cfg, "GAMES: %s left, %s returned to matchmaking", id, opponent)
}
