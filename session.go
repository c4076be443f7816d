/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	eventGameBegin    = "game.begin"
	eventGameEnds     = "gameEnds"
	eventFoundValues  = "found.values"
	eventMoveMade     = "move.made"
	eventOpponentLeft = "opponent.left"
	eventActiveUsers  = "activeUsers"

	wonMessage  = "You won."
	lostMessage = "You lost."
)

type GameBeginMessage struct {
	MyTurn bool `json:"myTurn"`
}

type GameEndsMessage struct {
	Message string `json:"message"`
}

type FoundValuesMessage struct {
	FoundValuesMessage string `json:"foundValuesMessage"`
}

// Phase is where a pair stands in its match.
type Phase int

const (
	AwaitingNumbers Phase = iota
	InProgress
	Finished
)

func (p Phase) String() string {
	switch p {
	case AwaitingNumbers:
		return "awaiting numbers"
	case InProgress:
		return "in progress"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// canonicalNumber turns a myNumber/guessedNumber payload into the string that
// is stored and compared. Strings are kept verbatim and json numbers keep the
// literal text the client sent. Anything else is rejected.
func canonicalNumber(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrInvalidNumber
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidNumber, err)
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()

		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidNumber, err)
		}
		return n.String(), nil
	}

	return "", ErrInvalidNumber
}

// score counts digit hits of guess against target. The inner index runs one
// past the end of target; that slot never matches anything.
func score(guess, target string) (exact, loose int) {
	g := []rune(guess)
	t := []rune(target)

	for i := range g {
		for j := 0; j <= len(t); j++ {
			if j >= len(t) || g[i] != t[j] {
				continue
			}

			if i == j {
				exact++
			} else {
				loose++
			}
		}
	}

	return exact, loose
}

func foundValues(exact, loose int) string {
	return fmt.Sprintf("%d centrate %d necentrate", exact, loose)
}

// Session runs the turn protocol for every pair the Matchmaker forms.
type Session struct {
	cfg      *Config
	mm       *Matchmaker
	registry *Registry
}

func newSession(cfg *Config, mm *Matchmaker, registry *Registry) *Session {
	return &Session{
		cfg:      cfg,
		mm:       mm,
		registry: registry,
	}
}

// Begin tells both sides of a new pair whether they move first.
func (s *Session) Begin(first, second string) {
	for _, id := range []string{first, second} {
		p, err := s.mm.record(id)
		if err != nil {
			continue
		}

		s.send(id, eventGameBegin, GameBeginMessage{MyTurn: p.turnFirst})
	}

	logf(s.cfg, "GAMES: Paired %s (first) with %s", first, second)
}

func (s *Session) SubmitNumber(id, number string) error {
	return s.mm.setNumber(id, number)
}

// SubmitGuess scores guess against the opponent's number and relays the move.
// raw is echoed to both sides as the move.made payload.
func (s *Session) SubmitGuess(id, guess string, raw json.RawMessage) error {
	opponent, err := s.mm.Opponent(id)
	if err != nil {
		return err
	}

	me, err := s.mm.record(id)
	if err != nil {
		return err
	}
	if me.finished {
		return ErrMatchFinished
	}

	if err := s.mm.setGuess(opponent, guess); err != nil {
		return err
	}

	them, err := s.mm.record(opponent)
	if err != nil {
		return err
	}

	if them.hasNumber && guess == them.chosenNumber {
		s.mm.finish(id, opponent)

		s.send(id, eventGameEnds, GameEndsMessage{Message: wonMessage})
		s.send(opponent, eventGameEnds, GameEndsMessage{Message: lostMessage})

		logf(s.cfg, "GAMES: %s guessed the number of %s", id, opponent)
	} else {
		exact, loose := score(guess, them.chosenNumber)

		s.send(id, eventFoundValues, FoundValuesMessage{FoundValuesMessage: foundValues(exact, loose)})
	}

	s.send(id, eventMoveMade, raw)
	s.send(opponent, eventMoveMade, raw)

	return nil
}

// Phase reports the state of the match id is part of.
func (s *Session) Phase(id string) (Phase, error) {
	opponent, err := s.mm.Opponent(id)
	if err != nil {
		return AwaitingNumbers, err
	}

	me, err := s.mm.record(id)
	if err != nil {
		return AwaitingNumbers, err
	}

	them, err := s.mm.record(opponent)
	if err != nil {
		return AwaitingNumbers, err
	}

	switch {
	case me.finished:
		return Finished, nil
	case me.hasNumber && them.hasNumber:
		return InProgress, nil
	}

	return AwaitingNumbers, nil
}

func (s *Session) send(id, event string, payload any) {
	c, ok := s.registry.Lookup(id)
	if !ok {
		return
	}

	if err := c.Send(event, payload); err != nil {
		logf(s.cfg, "ERROR: Sending %s to %s: %v", event, id, err)
	}
}
