package game

import (
	"fmt"

	"github.com/Oliversrensen/TCG-TBD/internal/card"
	"go.uber.org/zap"
)

// Rand is the source of randomness for summon_random spells. Injectable so
// tests can supply a deterministic sequence.
type Rand interface {
	Intn(n int) int
}

// Rules holds the tunable match constants.
type Rules struct {
	HeroHealth  int
	ManaPerTurn int
	InitialDraw int
	MaxHandSize int
}

// DefaultRules returns the standard match constants.
func DefaultRules() Rules {
	return Rules{
		HeroHealth:  50,
		ManaPerTurn: 10,
		InitialDraw: 5,
		MaxHandSize: 10,
	}
}

// Engine is the pure rules engine. Apply validates a client intent against a
// state and returns the successor state or a rule rejection. The engine holds
// no per-match state; the same instance serves every match in the process.
type Engine struct {
	catalog *card.Catalog
	factory *card.DeckFactory
	ids     *card.IDGenerator
	rules   Rules
	rng     Rand
	logger  *zap.Logger
}

// NewEngine creates an engine bound to a catalog, id generator, and random
// source.
func NewEngine(catalog *card.Catalog, ids *card.IDGenerator, rules Rules, rng Rand, logger *zap.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		factory: card.NewDeckFactory(catalog, ids),
		ids:     ids,
		rules:   rules,
		rng:     rng,
		logger:  logger,
	}
}

func sidePrefix(playerIndex int) string {
	return fmt.Sprintf("p%d", playerIndex)
}

// NewMatchState builds the initial state for a new match: full hero health,
// full mana, player 0 to act, both players holding their opening hands.
func (e *Engine) NewMatchState() (*GameState, error) {
	players := [2]*PlayerState{}
	for i := 0; i < 2; i++ {
		deck, err := e.factory.BuildDeck(sidePrefix(i), card.DefaultDeckList())
		if err != nil {
			return nil, fmt.Errorf("build deck for player %d: %w", i, err)
		}
		hand, deck := card.DrawCards(nil, deck, e.rules.InitialDraw, e.rules.MaxHandSize)
		players[i] = &PlayerState{
			HeroHealth: e.rules.HeroHealth,
			Hand:       hand,
			Board:      []*card.Instance{},
			Deck:       deck,
		}
	}
	return &GameState{
		CurrentTurn:       0,
		ManaRemaining:     e.rules.ManaPerTurn,
		Players:           players,
		Winner:            nil,
		PersistentEffects: []*PersistentEffect{},
	}, nil
}

// Apply validates and applies a single action for the given player. On
// success it returns a new state; the input state is never mutated. On
// rejection it returns a rule error and no state.
func (e *Engine) Apply(s *GameState, playerIndex int, action Action) (*GameState, error) {
	next, err := e.apply(s, playerIndex, action)
	if err != nil {
		e.logger.Debug("action rejected",
			zap.Int("player", playerIndex),
			zap.String("action", string(action.Type)),
			zap.Error(err),
		)
		return nil, err
	}
	e.logger.Debug("action applied",
		zap.Int("player", playerIndex),
		zap.String("action", string(action.Type)),
	)
	return next, nil
}

func (e *Engine) apply(s *GameState, playerIndex int, action Action) (*GameState, error) {
	if s.Winner != nil {
		return nil, ErrGameOver
	}
	if s.CurrentTurn != playerIndex {
		return nil, ErrNotYourTurn
	}

	next := s.Clone()
	next.Error = ""
	next.LastAction = ""

	switch action.Type {
	case ActionPlayCreature:
		return e.playCreature(next, playerIndex, action)
	case ActionPlaySpell:
		return e.playSpell(next, playerIndex, action)
	case ActionAttack:
		return e.attack(next, playerIndex, action)
	case ActionEndTurn:
		return e.endTurn(next, playerIndex)
	default:
		return nil, ErrUnknownAction
	}
}

// location selects which collection holds an instance.
type location int

const (
	inHand location = iota
	onBoard
)

// resolveOwn finds an instance in the acting player's hand or board and its
// catalog template. Instances referencing card ids absent from the catalog
// are treated as missing; forged client payloads never resolve.
func (e *Engine) resolveOwn(s *GameState, playerIndex int, instanceID string, loc location) (*card.Instance, *card.Template, bool) {
	list := s.Players[playerIndex].Hand
	if loc == onBoard {
		list = s.Players[playerIndex].Board
	}
	for _, inst := range list {
		if inst.InstanceID != instanceID {
			continue
		}
		t, ok := e.catalog.Get(inst.CardID)
		if !ok {
			return nil, nil, false
		}
		return inst, t, true
	}
	return nil, nil, false
}

// target is a resolved hero or board creature.
type target struct {
	playerIndex int
	instance    *card.Instance // nil for heroes
}

func (t target) isHero() bool {
	return t.instance == nil
}

// resolveTarget resolves "hero-0", "hero-1", or a board creature instance id.
// Creatures with catalog-unknown card ids do not resolve.
func (e *Engine) resolveTarget(s *GameState, targetID string) (target, bool) {
	switch targetID {
	case "hero-0":
		return target{playerIndex: 0}, true
	case "hero-1":
		return target{playerIndex: 1}, true
	}
	for pi := 0; pi < 2; pi++ {
		for _, inst := range s.Players[pi].Board {
			if inst.InstanceID != targetID {
				continue
			}
			if _, ok := e.catalog.Get(inst.CardID); !ok {
				return target{}, false
			}
			return target{playerIndex: pi, instance: inst}, true
		}
	}
	return target{}, false
}

// runTriggers fires the instance's triggers matching the event.
func (e *Engine) runTriggers(inst *card.Instance, event card.TriggerEvent) {
	t, ok := e.catalog.Get(inst.CardID)
	if !ok || t.Kind != card.KindCreature {
		return
	}
	for _, tr := range t.Triggers {
		if tr.Event != event {
			continue
		}
		switch eff := tr.Effect.(type) {
		case card.GainAttack:
			inst.AttackBuff += eff.Value
		case card.GainHealth:
			inst.HealthBuff += eff.Value
			inst.CurrentHealth += eff.Value
		case card.Heal:
			maxHealth := t.Health + inst.HealthBuff
			inst.CurrentHealth += eff.Value
			if inst.CurrentHealth > maxHealth {
				inst.CurrentHealth = maxHealth
			}
		}
	}
}

func effectiveAttack(t *card.Template, inst *card.Instance) int {
	return t.Attack + inst.AttackBuff
}

// damageHero applies damage to a hero, flooring at zero. Returns true when
// the hero died.
func (e *Engine) damageHero(s *GameState, playerIndex, damage int) bool {
	p := s.Players[playerIndex]
	p.HeroHealth -= damage
	if p.HeroHealth < 0 {
		p.HeroHealth = 0
	}
	return p.HeroHealth == 0
}

// damageCreature applies damage to a board creature, optionally running its
// on_damage triggers and removing it when dead. Combat defers both so the
// exchange resolves simultaneously.
func (e *Engine) damageCreature(s *GameState, ownerIndex int, inst *card.Instance, damage int, runTriggers, remove bool) {
	inst.CurrentHealth -= damage
	if runTriggers {
		e.runTriggers(inst, card.OnDamage)
	}
	if remove && inst.CurrentHealth <= 0 {
		removeFromBoard(s.Players[ownerIndex], inst.InstanceID)
	}
}

func removeFromBoard(p *PlayerState, instanceID string) {
	for i, inst := range p.Board {
		if inst.InstanceID == instanceID {
			p.Board = append(p.Board[:i], p.Board[i+1:]...)
			return
		}
	}
}

func removeFromHand(p *PlayerState, instanceID string) {
	for i, inst := range p.Hand {
		if inst.InstanceID == instanceID {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return
		}
	}
}

func findOnBoard(p *PlayerState, instanceID string) *card.Instance {
	for _, inst := range p.Board {
		if inst.InstanceID == instanceID {
			return inst
		}
	}
	return nil
}

func removeDeadCreatures(s *GameState) {
	for pi := 0; pi < 2; pi++ {
		p := s.Players[pi]
		alive := p.Board[:0]
		for _, inst := range p.Board {
			if inst.CurrentHealth > 0 {
				alive = append(alive, inst)
			}
		}
		p.Board = alive
	}
}

func (e *Engine) playCreature(next *GameState, playerIndex int, action Action) (*GameState, error) {
	inst, t, ok := e.resolveOwn(next, playerIndex, action.CardInstanceID, inHand)
	if !ok {
		return nil, ErrCardNotInHand
	}
	if t.Kind != card.KindCreature {
		return nil, ErrNotACreature
	}
	if next.ManaRemaining < t.Cost {
		return nil, ErrNotEnoughMana
	}

	player := next.Players[playerIndex]
	removeFromHand(player, inst.InstanceID)
	placed := &card.Instance{
		InstanceID:       inst.InstanceID,
		CardID:           inst.CardID,
		CurrentHealth:    t.Health,
		AttackedThisTurn: false,
	}
	player.Board = append(player.Board, placed)
	e.runTriggers(placed, card.OnSummon)
	next.ManaRemaining -= t.Cost
	next.LastAction = fmt.Sprintf("%d played %s", playerIndex, t.Name)
	return next, nil
}

func (e *Engine) playSpell(next *GameState, playerIndex int, action Action) (*GameState, error) {
	inst, t, ok := e.resolveOwn(next, playerIndex, action.CardInstanceID, inHand)
	if !ok {
		return nil, ErrCardNotInHand
	}
	if t.Kind != card.KindSpell {
		return nil, ErrNotASpell
	}
	if next.ManaRemaining < t.Cost {
		return nil, ErrNotEnoughMana
	}

	player := next.Players[playerIndex]

	switch spell := t.Spell.(type) {
	case card.DamageSpell:
		if action.TargetID == "" {
			return nil, ErrSpellNeedsTarget
		}
		tgt, ok := e.resolveTarget(next, action.TargetID)
		if !ok {
			return nil, ErrInvalidTarget
		}
		removeFromHand(player, inst.InstanceID)
		next.ManaRemaining -= t.Cost
		if tgt.isHero() {
			if e.damageHero(next, tgt.playerIndex, spell.Damage) {
				w := playerIndex
				next.Winner = &w
			}
		} else {
			e.damageCreature(next, tgt.playerIndex, tgt.instance, spell.Damage, true, true)
		}
		next.LastAction = fmt.Sprintf("%d cast %s on %s", playerIndex, t.Name, action.TargetID)
		return next, nil

	case card.DrawSpell:
		removeFromHand(player, inst.InstanceID)
		next.ManaRemaining -= t.Cost
		player.Hand, player.Deck = card.DrawCards(player.Hand, player.Deck, spell.Count, e.rules.MaxHandSize)
		next.LastAction = fmt.Sprintf("%d cast %s (draw %d)", playerIndex, t.Name, spell.Count)
		return next, nil

	case card.SummonSpell:
		pool := e.summonPool(spell.Pool)
		if len(pool) == 0 {
			return nil, ErrNoSummonTarget
		}
		removeFromHand(player, inst.InstanceID)
		next.ManaRemaining -= t.Cost
		chosen := pool[e.rng.Intn(len(pool))]
		summoned := e.factory.NewInstance(chosen, sidePrefix(playerIndex))
		player.Board = append(player.Board, summoned)
		next.LastAction = fmt.Sprintf("%d cast %s (summoned %s)", playerIndex, t.Name, chosen.Name)
		return next, nil

	case card.PersistentSpell:
		removeFromHand(player, inst.InstanceID)
		next.ManaRemaining -= t.Cost
		next.PersistentEffects = append(next.PersistentEffects, &PersistentEffect{
			ID:             e.ids.NextEffect(),
			OwnerIndex:     playerIndex,
			TriggerPhase:   spell.Phase,
			TurnsRemaining: spell.Duration,
			Payload:        spell.Payload,
			SourceName:     t.Name,
		})
		next.LastAction = fmt.Sprintf("%d cast %s (%d turn effect)", playerIndex, t.Name, spell.Duration)
		return next, nil

	default:
		return nil, ErrUnknownSpellEffect
	}
}

// summonPool resolves pool ids against the catalog, keeping creatures only.
// An empty pool means all creature templates.
func (e *Engine) summonPool(ids []string) []*card.Template {
	if len(ids) == 0 {
		return e.catalog.Creatures()
	}
	pool := make([]*card.Template, 0, len(ids))
	for _, id := range ids {
		t, ok := e.catalog.Get(id)
		if !ok || t.Kind != card.KindCreature {
			continue
		}
		pool = append(pool, t)
	}
	return pool
}

func (e *Engine) attack(next *GameState, playerIndex int, action Action) (*GameState, error) {
	attacker, t, ok := e.resolveOwn(next, playerIndex, action.AttackerInstanceID, onBoard)
	if !ok {
		return nil, ErrAttackerNotOnBoard
	}
	if attacker.AttackedThisTurn {
		return nil, ErrAlreadyAttacked
	}
	if t.Kind != card.KindCreature {
		return nil, ErrInvalidAttacker
	}

	tgt, ok := e.resolveTarget(next, action.TargetID)
	if !ok {
		return nil, ErrInvalidTarget
	}
	enemyIndex := Opponent(playerIndex)
	if tgt.isHero() && tgt.playerIndex != enemyIndex {
		return nil, ErrOwnHeroTarget
	}
	if !tgt.isHero() && tgt.playerIndex != enemyIndex {
		return nil, ErrOwnCreatureTarget
	}

	// Taunt rule: any enemy Taunt creature must be attacked before the hero
	// or other creatures.
	if taunts := e.tauntInstanceIDs(next, enemyIndex); len(taunts) > 0 {
		if tgt.isHero() || !taunts[action.TargetID] {
			return nil, ErrMustAttackTaunt
		}
	}

	e.runTriggers(attacker, card.OnAttack)
	damage := effectiveAttack(t, attacker)

	player := next.Players[playerIndex]
	if tgt.isHero() {
		if e.damageHero(next, enemyIndex, damage) {
			w := playerIndex
			next.Winner = &w
		}
		attacker.AttackedThisTurn = true
	} else {
		// Simultaneous exchange: both sides take damage before on_damage
		// triggers fire and before removal, and counter damage uses the
		// defender's base attack, not its buffs.
		targetTemplate, _ := e.catalog.Get(tgt.instance.CardID)
		counterDamage := 0
		if targetTemplate != nil && targetTemplate.Kind == card.KindCreature {
			counterDamage = targetTemplate.Attack
		}
		e.damageCreature(next, enemyIndex, tgt.instance, damage, false, false)
		e.damageCreature(next, playerIndex, attacker, counterDamage, false, false)
		if defender := findOnBoard(next.Players[enemyIndex], action.TargetID); defender != nil {
			e.runTriggers(defender, card.OnDamage)
		}
		if atk := findOnBoard(player, action.AttackerInstanceID); atk != nil {
			e.runTriggers(atk, card.OnDamage)
		}
		removeDeadCreatures(next)
		if survivor := findOnBoard(player, action.AttackerInstanceID); survivor != nil {
			survivor.AttackedThisTurn = true
		}
	}
	next.LastAction = fmt.Sprintf("%d attacked %s", playerIndex, action.TargetID)
	return next, nil
}

func (e *Engine) tauntInstanceIDs(s *GameState, playerIndex int) map[string]bool {
	var taunts map[string]bool
	for _, inst := range s.Players[playerIndex].Board {
		t, ok := e.catalog.Get(inst.CardID)
		if !ok || !t.HasKeyword(card.KeywordTaunt) {
			continue
		}
		if taunts == nil {
			taunts = make(map[string]bool)
		}
		taunts[inst.InstanceID] = true
	}
	return taunts
}

func (e *Engine) endTurn(next *GameState, playerIndex int) (*GameState, error) {
	ended, err := e.processPersistentEffects(next, playerIndex, card.EndOfTurn)
	if err != nil {
		return nil, err
	}
	if ended {
		return next, nil
	}

	next.CurrentTurn = Opponent(playerIndex)
	next.ManaRemaining = e.rules.ManaPerTurn
	for _, inst := range next.Players[playerIndex].Board {
		inst.AttackedThisTurn = false
	}

	active := next.Players[next.CurrentTurn]
	active.Hand, active.Deck = card.DrawCards(active.Hand, active.Deck, 1, e.rules.MaxHandSize)

	ended, err = e.processPersistentEffects(next, next.CurrentTurn, card.StartOfTurn)
	if err != nil {
		return nil, err
	}
	if ended {
		return next, nil
	}

	next.LastAction = fmt.Sprintf("%d ended turn", playerIndex)
	return next, nil
}

// processPersistentEffects applies every effect owned by the player matching
// the phase, then decrements and expires them. Returns true when an effect
// ended the game, short-circuiting the rest of the turn transition.
func (e *Engine) processPersistentEffects(s *GameState, playerIndex int, phase card.EffectPhase) (bool, error) {
	for _, eff := range s.PersistentEffects {
		if eff.OwnerIndex != playerIndex || eff.TriggerPhase != phase {
			continue
		}
		ended, err := e.applyPersistentEffect(s, eff)
		if err != nil {
			return false, err
		}
		if ended {
			return true, nil
		}
	}

	kept := s.PersistentEffects[:0]
	for _, eff := range s.PersistentEffects {
		if eff.OwnerIndex == playerIndex && eff.TriggerPhase == phase {
			eff.TurnsRemaining--
			if eff.TurnsRemaining <= 0 {
				continue
			}
		}
		kept = append(kept, eff)
	}
	s.PersistentEffects = kept
	return false, nil
}

// applyPersistentEffect applies one tick of an effect. Unknown payload kinds
// are an error, never a silent no-op.
func (e *Engine) applyPersistentEffect(s *GameState, eff *PersistentEffect) (bool, error) {
	owner := eff.OwnerIndex
	enemy := Opponent(owner)

	switch payload := eff.Payload.(type) {
	case card.DamageEnemyMinions:
		for _, inst := range append([]*card.Instance(nil), s.Players[enemy].Board...) {
			e.damageCreature(s, enemy, inst, payload.Damage, true, true)
		}
	case card.DamageEnemyHero:
		if e.damageHero(s, enemy, payload.Damage) {
			w := owner
			s.Winner = &w
			return true, nil
		}
	case card.DrawCardsEffect:
		p := s.Players[owner]
		p.Hand, p.Deck = card.DrawCards(p.Hand, p.Deck, payload.Count, e.rules.MaxHandSize)
	case card.HealHero:
		p := s.Players[owner]
		p.HeroHealth += payload.Amount
		if p.HeroHealth > e.rules.HeroHealth {
			p.HeroHealth = e.rules.HeroHealth
		}
	case card.DamageAllMinions:
		for pi := 0; pi < 2; pi++ {
			for _, inst := range append([]*card.Instance(nil), s.Players[pi].Board...) {
				e.damageCreature(s, pi, inst, payload.Damage, true, true)
			}
		}
	default:
		return false, fmt.Errorf("unknown persistent effect payload %T from %s", eff.Payload, eff.SourceName)
	}
	return false, nil
}
