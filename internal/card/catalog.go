package card

import (
	"encoding/json"
	"fmt"
)

// Kind distinguishes creature cards from spell cards.
type Kind string

const (
	KindCreature Kind = "creature"
	KindSpell    Kind = "spell"
)

// Keyword names that alter combat rules.
const (
	KeywordTaunt = "Taunt"
)

// TriggerEvent identifies when a creature trigger fires.
type TriggerEvent string

const (
	OnSummon TriggerEvent = "on_summon"
	OnAttack TriggerEvent = "on_attack"
	OnDamage TriggerEvent = "on_damage"
)

// TriggerEffect is a tagged union of the effects a creature trigger can apply.
type TriggerEffect interface {
	triggerEffect()
}

// GainAttack permanently raises the creature's attack.
type GainAttack struct {
	Value int
}

// GainHealth raises both the creature's maximum and current health.
type GainHealth struct {
	Value int
}

// Heal restores current health up to the creature's maximum.
type Heal struct {
	Value int
}

func (GainAttack) triggerEffect() {}
func (GainHealth) triggerEffect() {}
func (Heal) triggerEffect()       {}

// Trigger binds an effect to the event that fires it.
type Trigger struct {
	Event  TriggerEvent
	Effect TriggerEffect
}

// EffectPhase identifies when a persistent effect ticks.
type EffectPhase string

const (
	StartOfTurn EffectPhase = "start_of_turn"
	EndOfTurn   EffectPhase = "end_of_turn"
)

// EffectPayload is a tagged union of what a persistent effect does each tick.
type EffectPayload interface {
	effectPayload()
}

// DamageEnemyMinions deals damage to every creature on the enemy board.
type DamageEnemyMinions struct {
	Damage int
}

// DamageEnemyHero deals damage to the enemy hero; can end the game.
type DamageEnemyHero struct {
	Damage int
}

// DrawCardsEffect draws cards for the effect's owner.
type DrawCardsEffect struct {
	Count int
}

// HealHero heals the owner's hero, capped at maximum hero health.
type HealHero struct {
	Amount int
}

// DamageAllMinions deals damage to every creature on both boards.
type DamageAllMinions struct {
	Damage int
}

func (DamageEnemyMinions) effectPayload() {}
func (DamageEnemyHero) effectPayload()    {}
func (DrawCardsEffect) effectPayload()    {}
func (HealHero) effectPayload()           {}
func (DamageAllMinions) effectPayload()   {}

// SpellSpec is a tagged union of spell behaviors. Only damage spells take a
// target; the other kinds resolve without one.
type SpellSpec interface {
	spellSpec()
}

// DamageSpell deals Damage to a chosen hero or creature.
type DamageSpell struct {
	Damage int
}

// DrawSpell draws Count cards for the caster.
type DrawSpell struct {
	Count int
}

// SummonSpell summons a random creature from Pool (all creatures when empty).
type SummonSpell struct {
	Pool []string
}

// PersistentSpell attaches a timed effect to the board.
type PersistentSpell struct {
	Phase    EffectPhase
	Duration int
	Payload  EffectPayload
}

func (DamageSpell) spellSpec()     {}
func (DrawSpell) spellSpec()       {}
func (SummonSpell) spellSpec()     {}
func (PersistentSpell) spellSpec() {}

// Template is an immutable card definition. One per card id; instances
// reference templates by id and are invalid if the id is not in the catalog.
type Template struct {
	ID         string
	Name       string
	Kind       Kind
	Cost       int
	Attack     int
	Health     int
	Keywords   []string
	Triggers   []Trigger
	Spell      SpellSpec
	FlavorText string
}

// HasKeyword reports whether the template carries the given keyword.
func (t *Template) HasKeyword(keyword string) bool {
	for _, k := range t.Keywords {
		if k == keyword {
			return true
		}
	}
	return false
}

// MarshalJSON renders the template in the client DTO shape served by the
// catalog endpoint.
func (t *Template) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":   t.ID,
		"name": t.Name,
		"type": string(t.Kind),
		"cost": t.Cost,
	}
	if t.Kind == KindCreature {
		out["attack"] = t.Attack
		out["health"] = t.Health
	}
	if len(t.Keywords) > 0 {
		out["keywords"] = t.Keywords
	}
	if t.FlavorText != "" {
		out["flavorText"] = t.FlavorText
	}
	if len(t.Triggers) > 0 {
		triggers := make([]map[string]any, 0, len(t.Triggers))
		for _, tr := range t.Triggers {
			triggers = append(triggers, map[string]any{
				"event":  string(tr.Event),
				"effect": triggerEffectJSON(tr.Effect),
			})
		}
		out["triggers"] = triggers
	}
	switch spell := t.Spell.(type) {
	case DamageSpell:
		out["spellEffect"] = "damage"
		out["spellPower"] = spell.Damage
	case DrawSpell:
		out["spellEffect"] = "draw"
		out["spellDraw"] = spell.Count
		out["requiresTarget"] = false
	case SummonSpell:
		out["spellEffect"] = "summon_random"
		out["requiresTarget"] = false
		if len(spell.Pool) > 0 {
			out["spellSummonPool"] = spell.Pool
		}
	case PersistentSpell:
		out["spellEffect"] = "create_persistent"
		out["requiresTarget"] = false
		out["spellPersistent"] = map[string]any{
			"triggerPhase": string(spell.Phase),
			"duration":     spell.Duration,
			"effect":       PayloadJSON(spell.Payload),
		}
	}
	return json.Marshal(out)
}

func triggerEffectJSON(e TriggerEffect) map[string]any {
	switch eff := e.(type) {
	case GainAttack:
		return map[string]any{"type": "gain_attack", "value": eff.Value}
	case GainHealth:
		return map[string]any{"type": "gain_health", "value": eff.Value}
	case Heal:
		return map[string]any{"type": "heal", "value": eff.Value}
	default:
		return map[string]any{"type": fmt.Sprintf("%T", e)}
	}
}

// PayloadJSON renders a persistent effect payload in the wire DTO shape.
func PayloadJSON(p EffectPayload) map[string]any {
	switch eff := p.(type) {
	case DamageEnemyMinions:
		return map[string]any{"type": "deal_damage_all_enemy_minions", "damage": eff.Damage}
	case DamageEnemyHero:
		return map[string]any{"type": "deal_damage_enemy_hero", "damage": eff.Damage}
	case DrawCardsEffect:
		return map[string]any{"type": "draw_cards", "count": eff.Count}
	case HealHero:
		return map[string]any{"type": "heal_hero", "amount": eff.Amount}
	case DamageAllMinions:
		return map[string]any{"type": "deal_damage_all_minions", "damage": eff.Damage}
	default:
		return map[string]any{"type": fmt.Sprintf("%T", p)}
	}
}

// Catalog is the immutable id -> template table, built once at startup.
type Catalog struct {
	templates map[string]*Template
	ordered   []*Template
}

// NewCatalog builds a catalog from the given templates.
func NewCatalog(templates []*Template) (*Catalog, error) {
	byID := make(map[string]*Template, len(templates))
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("card template with empty id")
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate card template id %q", t.ID)
		}
		byID[t.ID] = t
	}
	return &Catalog{templates: byID, ordered: templates}, nil
}

// Get looks up a template by card id.
func (c *Catalog) Get(cardID string) (*Template, bool) {
	t, ok := c.templates[cardID]
	return t, ok
}

// Templates returns all templates in definition order.
func (c *Catalog) Templates() []*Template {
	return c.ordered
}

// Creatures returns all creature templates in definition order.
func (c *Catalog) Creatures() []*Template {
	out := make([]*Template, 0, len(c.ordered))
	for _, t := range c.ordered {
		if t.Kind == KindCreature {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of templates in the catalog.
func (c *Catalog) Len() int {
	return len(c.templates)
}
