package card

// DefaultTemplates is the built-in card set.
func DefaultTemplates() []*Template {
	return []*Template{
		{
			ID:     "murloc",
			Name:   "Murloc",
			Kind:   KindCreature,
			Cost:   1,
			Attack: 1,
			Health: 2,
		},
		{
			ID:       "shieldbearer",
			Name:     "Shieldbearer",
			Kind:     KindCreature,
			Cost:     2,
			Attack:   0,
			Health:   4,
			Keywords: []string{KeywordTaunt},
		},
		{
			ID:     "ogre",
			Name:   "Ogre",
			Kind:   KindCreature,
			Cost:   4,
			Attack: 4,
			Health: 4,
		},
		{
			ID:     "berserker",
			Name:   "Berserker",
			Kind:   KindCreature,
			Cost:   3,
			Attack: 2,
			Health: 3,
			Triggers: []Trigger{
				{Event: OnDamage, Effect: GainAttack{Value: 2}},
			},
			FlavorText: "Anger is a gift.",
		},
		{
			ID:     "dragon",
			Name:   "Dragon",
			Kind:   KindCreature,
			Cost:   7,
			Attack: 6,
			Health: 6,
		},
		{
			ID:         "fireball",
			Name:       "Fireball",
			Kind:       KindSpell,
			Cost:       4,
			Spell:      DamageSpell{Damage: 6},
			FlavorText: "Fire! Fire! Fire!",
		},
		{
			ID:         "frostbolt",
			Name:       "Frostbolt",
			Kind:       KindSpell,
			Cost:       2,
			Spell:      DamageSpell{Damage: 3},
			FlavorText: "Cool as ice.",
		},
		{
			ID:         "arcane_intellect",
			Name:       "Arcane Intellect",
			Kind:       KindSpell,
			Cost:       3,
			Spell:      DrawSpell{Count: 2},
			FlavorText: "Knowledge is power.",
		},
		{
			ID:         "animal_companion",
			Name:       "Animal Companion",
			Kind:       KindSpell,
			Cost:       3,
			Spell:      SummonSpell{Pool: []string{"murloc", "shieldbearer", "ogre"}},
			FlavorText: "Who's a good boy?",
		},
		{
			ID:   "curse_of_agony",
			Name: "Curse of Agony",
			Kind: KindSpell,
			Cost: 2,
			Spell: PersistentSpell{
				Phase:    EndOfTurn,
				Duration: 3,
				Payload:  DamageEnemyMinions{Damage: 1},
			},
			FlavorText: "Slow and painful.",
		},
	}
}

// DefaultDeckList is the deck every player starts with. Cards are drawn from
// the tail, so the last five entries form the opening hand.
func DefaultDeckList() []DeckEntry {
	return []DeckEntry{
		{CardID: "dragon", Count: 1},
		{CardID: "frostbolt", Count: 1},
		{CardID: "fireball", Count: 1},
		{CardID: "ogre", Count: 1},
		{CardID: "murloc", Count: 2},
		{CardID: "frostbolt", Count: 1},
		{CardID: "ogre", Count: 1},
		{CardID: "fireball", Count: 1},
		{CardID: "murloc", Count: 2},
	}
}
