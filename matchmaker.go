/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// player is the server-side record for a client that has joined matchmaking.
type player struct {
	opponent  string // empty while waiting
	turnFirst bool   // fixed when the pair forms

	chosenNumber string
	hasNumber    bool

	lastGuess string
	hasGuess  bool

	finished bool
}

// PlayerState is a read-only copy of a player record.
type PlayerState struct {
	Opponent     string
	TurnFirst    bool
	ChosenNumber string
	HasNumber    bool
	LastGuess    string
	HasGuess     bool
	Finished     bool
}

// Matchmaker owns every player record and the single waiting slot.
// It holds no locks: all calls come from the lobby goroutine.
type Matchmaker struct {
	players map[string]*player
	waiting string

	// OnPair is called once per new pair. first is the client that was
	// waiting and therefore moves first.
	OnPair func(first, second string)
}

func newMatchmaker() *Matchmaker {
	return &Matchmaker{
		players: make(map[string]*player),
	}
}

// Join queues id, or pairs it with the waiting client. Calling it again for a
// client that is already waiting or paired changes nothing.
func (m *Matchmaker) Join(id string) {
	p, ok := m.players[id]
	if !ok {
		p = &player{}
		m.players[id] = p
	}

	if p.opponent != "" || m.waiting == id {
		return
	}

	m.enqueue(id, p)
}

func (m *Matchmaker) enqueue(id string, p *player) {
	if m.waiting == "" {
		p.turnFirst = true
		m.waiting = id

		return
	}

	first := m.waiting
	w := m.players[first]

	p.opponent = first
	p.turnFirst = false
	w.opponent = id
	m.waiting = ""

	if m.OnPair != nil {
		m.OnPair(first, id)
	}
}

func (m *Matchmaker) Opponent(id string) (string, error) {
	p, ok := m.players[id]
	if !ok {
		return "", ErrNotFound
	}

	if p.opponent == "" {
		return "", ErrNoOpponent
	}

	return p.opponent, nil
}

// Requeue drops the client's pairing and match fields, then joins it again.
// The chosen number is kept so a new partner never guesses against nothing.
// The opponent's side of the pair is left for the caller to purge.
func (m *Matchmaker) Requeue(id string) error {
	p, ok := m.players[id]
	if !ok {
		return ErrNotFound
	}

	*p = player{
		chosenNumber: p.chosenNumber,
		hasNumber:    p.hasNumber,
	}

	if m.waiting == id {
		m.waiting = ""
	}

	m.enqueue(id, p)

	return nil
}

// Purge deletes the record and frees the waiting slot if id held it.
func (m *Matchmaker) Purge(id string) {
	if m.waiting == id {
		m.waiting = ""
	}

	delete(m.players, id)
}

func (m *Matchmaker) Waiting() (string, bool) {
	return m.waiting, m.waiting != ""
}

func (m *Matchmaker) Player(id string) (PlayerState, bool) {
	p, ok := m.players[id]
	if !ok {
		return PlayerState{}, false
	}

	return PlayerState{
		Opponent:     p.opponent,
		TurnFirst:    p.turnFirst,
		ChosenNumber: p.chosenNumber,
		HasNumber:    p.hasNumber,
		LastGuess:    p.lastGuess,
		HasGuess:     p.hasGuess,
		Finished:     p.finished,
	}, true
}

func (m *Matchmaker) Len() int {
	return len(m.players)
}

func (m *Matchmaker) record(id string) (*player, error) {
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}

	return p, nil
}

func (m *Matchmaker) setNumber(id, number string) error {
	p, err := m.record(id)
	if err != nil {
		return err
	}

	p.chosenNumber = number
	p.hasNumber = true

	return nil
}

func (m *Matchmaker) setGuess(id, guess string) error {
	p, err := m.record(id)
	if err != nil {
		return err
	}

	p.lastGuess = guess
	p.hasGuess = true

	return nil
}

func (m *Matchmaker) finish(a, b string) {
	for _, id := range []string{a, b} {
		if p, ok := m.players[id]; ok {
			p.finished = true
		}
	}
}
