package game

import (
	"encoding/json"

	"github.com/Oliversrensen/TCG-TBD/internal/card"
)

// PlayerState is one side of a match.
type PlayerState struct {
	HeroHealth int              `json:"heroHealth"`
	Hand       []*card.Instance `json:"hand"`
	Board      []*card.Instance `json:"board"`
	Deck       []*card.Instance `json:"deck"`
}

// Clone returns a deep copy of the player state.
func (p *PlayerState) Clone() *PlayerState {
	return &PlayerState{
		HeroHealth: p.HeroHealth,
		Hand:       cloneInstances(p.Hand),
		Board:      cloneInstances(p.Board),
		Deck:       cloneInstances(p.Deck),
	}
}

func cloneInstances(list []*card.Instance) []*card.Instance {
	out := make([]*card.Instance, len(list))
	for i, inst := range list {
		out[i] = inst.Clone()
	}
	return out
}

// PersistentEffect is a timed effect attached to the board independent of any
// card instance. It ticks once per matching phase of its owner's turn and is
// removed when TurnsRemaining reaches zero.
type PersistentEffect struct {
	ID             string
	OwnerIndex     int
	TriggerPhase   card.EffectPhase
	TurnsRemaining int
	Payload        card.EffectPayload
	SourceName     string
}

// Clone returns a copy of the effect. Payloads are immutable values and are
// shared between copies.
func (e *PersistentEffect) Clone() *PersistentEffect {
	cp := *e
	return &cp
}

// MarshalJSON renders the effect in the wire DTO shape, with the payload as a
// type-tagged object.
func (e *PersistentEffect) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":             e.ID,
		"ownerIndex":     e.OwnerIndex,
		"triggerPhase":   string(e.TriggerPhase),
		"turnsRemaining": e.TurnsRemaining,
		"effect":         card.PayloadJSON(e.Payload),
		"sourceCardName": e.SourceName,
	})
}

// GameState is the single source of truth for one match. Every accepted
// action produces a new value; a rejected action leaves the previous value
// untouched.
type GameState struct {
	CurrentTurn       int                 `json:"currentTurn"`
	ManaRemaining     int                 `json:"manaRemaining"`
	Players           [2]*PlayerState     `json:"players"`
	Winner            *int                `json:"winner"`
	LastAction        string              `json:"lastAction,omitempty"`
	Error             string              `json:"error,omitempty"`
	PersistentEffects []*PersistentEffect `json:"persistentEffects"`
}

// Clone returns a structural deep copy of the state. The engine clones before
// mutating so rejected actions never leave visible side effects.
func (s *GameState) Clone() *GameState {
	next := &GameState{
		CurrentTurn:   s.CurrentTurn,
		ManaRemaining: s.ManaRemaining,
		Players:       [2]*PlayerState{s.Players[0].Clone(), s.Players[1].Clone()},
		LastAction:    s.LastAction,
		Error:         s.Error,
	}
	if s.Winner != nil {
		w := *s.Winner
		next.Winner = &w
	}
	next.PersistentEffects = make([]*PersistentEffect, len(s.PersistentEffects))
	for i, eff := range s.PersistentEffects {
		next.PersistentEffects[i] = eff.Clone()
	}
	return next
}

// Player returns the state for the given side.
func (s *GameState) Player(idx int) *PlayerState {
	return s.Players[idx]
}

// Opponent returns the index of the other side.
func Opponent(idx int) int {
	return 1 - idx
}
