package card

import (
	"fmt"
	"sync"
)

// Instance is a single card owned by a player. It lives in exactly one of
// hand, board, or deck at a time; combat and triggers mutate it in place.
type Instance struct {
	InstanceID       string `json:"instanceId"`
	CardID           string `json:"cardId"`
	CurrentHealth    int    `json:"currentHealth,omitempty"`
	AttackedThisTurn bool   `json:"attackedThisTurn,omitempty"`
	AttackBuff       int    `json:"attackBuff,omitempty"`
	HealthBuff       int    `json:"healthBuff,omitempty"`
}

// Clone returns a copy of the instance.
func (i *Instance) Clone() *Instance {
	cp := *i
	return &cp
}

// IDGenerator hands out unique card instance and persistent effect ids.
// It replaces the module-level counters of earlier revisions so tests can
// inject a fresh generator and get deterministic ids.
type IDGenerator struct {
	mu        sync.Mutex
	instances int
	effects   int
}

// NewIDGenerator returns a generator starting from zero.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NextInstance returns the next instance id with the given side prefix,
// e.g. "p0-7".
func (g *IDGenerator) NextInstance(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.instances++
	return fmt.Sprintf("%s-%d", prefix, g.instances)
}

// NextEffect returns the next persistent effect id, e.g. "pe-3".
func (g *IDGenerator) NextEffect() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.effects++
	return fmt.Sprintf("pe-%d", g.effects)
}

// DeckEntry is one line of a deck list.
type DeckEntry struct {
	CardID string `json:"cardId"`
	Count  int    `json:"count"`
}

// DeckFactory builds starting decks and performs draws.
type DeckFactory struct {
	catalog *Catalog
	ids     *IDGenerator
}

// NewDeckFactory creates a factory bound to a catalog and id generator.
func NewDeckFactory(catalog *Catalog, ids *IDGenerator) *DeckFactory {
	return &DeckFactory{catalog: catalog, ids: ids}
}

// NewInstance creates a fresh instance of the given template with full health.
func (f *DeckFactory) NewInstance(t *Template, prefix string) *Instance {
	inst := &Instance{
		InstanceID: f.ids.NextInstance(prefix),
		CardID:     t.ID,
	}
	if t.Kind == KindCreature {
		inst.CurrentHealth = t.Health
	}
	return inst
}

// BuildDeck expands a deck list into an ordered sequence of instances with
// unique ids. Entries referencing unknown card ids are rejected.
func (f *DeckFactory) BuildDeck(prefix string, list []DeckEntry) ([]*Instance, error) {
	deck := make([]*Instance, 0, len(list))
	for _, entry := range list {
		t, ok := f.catalog.Get(entry.CardID)
		if !ok {
			return nil, fmt.Errorf("deck list references unknown card %q", entry.CardID)
		}
		for i := 0; i < entry.Count; i++ {
			deck = append(deck, &Instance{
				InstanceID: f.ids.NextInstance(prefix),
				CardID:     t.ID,
			})
		}
	}
	return deck, nil
}

// DrawCards moves up to count cards from the tail of deck into hand, stopping
// early when the deck empties. Cards drawn while the hand is at maxHandSize
// are discarded, not returned to the deck; the hand never exceeds the cap.
func DrawCards(hand, deck []*Instance, count, maxHandSize int) (newHand, newDeck []*Instance) {
	for i := 0; i < count && len(deck) > 0; i++ {
		top := deck[len(deck)-1]
		deck = deck[:len(deck)-1]
		if len(hand) >= maxHandSize {
			continue
		}
		hand = append(hand, top)
	}
	return hand, deck
}
