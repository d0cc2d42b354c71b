package game

import "errors"

// ActionType discriminates client intents within a match.
type ActionType string

const (
	ActionPlayCreature ActionType = "play_creature"
	ActionPlaySpell    ActionType = "play_spell"
	ActionAttack       ActionType = "attack"
	ActionEndTurn      ActionType = "end_turn"
)

// Action is a client intent against a match. BoardIndex is accepted for
// client layout purposes but the board is append-only server side.
type Action struct {
	Type               ActionType `json:"type"`
	CardInstanceID     string     `json:"cardInstanceId,omitempty"`
	TargetID           string     `json:"targetId,omitempty"`
	AttackerInstanceID string     `json:"attackerInstanceId,omitempty"`
	BoardIndex         int        `json:"boardIndex,omitempty"`
}

// Rule rejection errors. The messages are surfaced verbatim to clients in
// state broadcasts.
var (
	ErrGameOver           = errors.New("Game already over")
	ErrNotYourTurn        = errors.New("Not your turn")
	ErrCardNotInHand      = errors.New("Card not in hand or unknown card")
	ErrNotACreature       = errors.New("Not a creature")
	ErrNotASpell          = errors.New("Not a spell")
	ErrNotEnoughMana      = errors.New("Not enough mana")
	ErrSpellNeedsTarget   = errors.New("This spell requires a target")
	ErrInvalidTarget      = errors.New("Invalid target")
	ErrAttackerNotOnBoard = errors.New("Attacker not on your board or unknown card")
	ErrInvalidAttacker    = errors.New("Invalid attacker")
	ErrAlreadyAttacked    = errors.New("Already attacked this turn")
	ErrOwnHeroTarget      = errors.New("Can only attack enemy hero")
	ErrOwnCreatureTarget  = errors.New("Can only attack enemy creature")
	ErrMustAttackTaunt    = errors.New("Must attack a Taunt creature first")
	ErrNoSummonTarget     = errors.New("No valid minion to summon")
	ErrUnknownSpellEffect = errors.New("Unknown spell effect")
	ErrUnknownAction      = errors.New("Unknown action")
)
