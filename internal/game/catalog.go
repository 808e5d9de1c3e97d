package game

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Rarity string

const (
	RarityR   Rarity = "R"
	RaritySR  Rarity = "SR"
	RaritySSR Rarity = "SSR"
	RarityUR  Rarity = "UR"
)

// Default draw weights per rarity. A catalog entry may override its own
// weight; zero means "use the rarity default".
var rarityWeights = map[Rarity]float64{
	RarityR:   70,
	RaritySR:  20,
	RaritySSR: 9,
	RarityUR:  1,
}

// Main skills are audience types, sub-skills are acts. A character starts
// with a subset of this space, which is what makes job matching strict.
var (
	MainSkills = []string{"NOBLE", "MERCHANT", "COMMONER", "OUTLAW"}
	SubSkills  = []string{"DANCE", "SONG", "POETRY", "LUTE", "JUGGLE", "TAROT", "BANQUET", "MASQUE"}
)

// CharacterDefinition is one static catalog entry. The catalog is
// read-only after load; owned instances copy from it, never point into it.
type CharacterDefinition struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Rarity   Rarity              `json:"rarity"`
	Weight   float64             `json:"weight,omitempty"`
	ImageRef string              `json:"image_ref,omitempty"`
	Skills   map[string][]string `json:"skills"`
}

type Catalog struct {
	defs        []CharacterDefinition
	byID        map[string]*CharacterDefinition
	totalWeight float64
}

// NewCatalog validates the definitions and precomputes the cumulative
// weight sum used by the gacha draw.
func NewCatalog(defs []CharacterDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	c := &Catalog{defs: defs, byID: make(map[string]*CharacterDefinition, len(defs))}
	mains := make(map[string]bool, len(MainSkills))
	for _, m := range MainSkills {
		mains[m] = true
	}
	subs := make(map[string]bool, len(SubSkills))
	for _, s := range SubSkills {
		subs[s] = true
	}
	for i := range c.defs {
		d := &c.defs[i]
		if d.ID == "" || d.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: id and name are required", i)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog entry %q: duplicate id", d.ID)
		}
		if d.Weight == 0 {
			w, ok := rarityWeights[d.Rarity]
			if !ok {
				return nil, fmt.Errorf("catalog entry %q: unknown rarity %q", d.ID, d.Rarity)
			}
			d.Weight = w
		}
		if d.Weight < 0 {
			return nil, fmt.Errorf("catalog entry %q: negative weight", d.ID)
		}
		if len(d.Skills) == 0 {
			return nil, fmt.Errorf("catalog entry %q: at least one skill is required", d.ID)
		}
		for main, list := range d.Skills {
			if !mains[main] {
				return nil, fmt.Errorf("catalog entry %q: unknown main skill %q", d.ID, main)
			}
			if len(list) == 0 {
				return nil, fmt.Errorf("catalog entry %q: main skill %q has no sub-skills", d.ID, main)
			}
			for _, sub := range list {
				if !subs[sub] {
					return nil, fmt.Errorf("catalog entry %q: unknown sub-skill %q", d.ID, sub)
				}
			}
		}
		c.byID[d.ID] = d
		c.totalWeight += d.Weight
	}
	if c.totalWeight <= 0 {
		return nil, fmt.Errorf("catalog has no drawable entries")
	}
	return c, nil
}

// LoadCatalog reads a JSON array of definitions. An empty path yields the
// built-in roster.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultRoster())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var defs []CharacterDefinition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(defs)
}

func (c *Catalog) Definitions() []CharacterDefinition { return c.defs }

func (c *Catalog) Len() int { return len(c.defs) }

func (c *Catalog) TotalWeight() float64 { return c.totalWeight }

// Definition returns the entry with the given id, or ErrUnknownCharacter.
func (c *Catalog) Definition(id string) (*CharacterDefinition, error) {
	d, ok := c.byID[id]
	if !ok {
		return nil, ErrUnknownCharacter
	}
	return d, nil
}

// DefaultRoster is the roster used when no catalog file is configured.
func DefaultRoster() []CharacterDefinition {
	return []CharacterDefinition{
		{ID: "mira", Name: "Mira", Rarity: RarityR, Skills: map[string][]string{
			"COMMONER": {"DANCE", "SONG"},
		}},
		{ID: "petra", Name: "Petra", Rarity: RarityR, Skills: map[string][]string{
			"COMMONER": {"JUGGLE"},
			"MERCHANT": {"BANQUET"},
		}},
		{ID: "sable", Name: "Sable", Rarity: RarityR, Skills: map[string][]string{
			"OUTLAW": {"TAROT", "SONG"},
		}},
		{ID: "wren", Name: "Wren", Rarity: RarityR, Skills: map[string][]string{
			"COMMONER": {"POETRY", "LUTE"},
		}},
		{ID: "odile", Name: "Odile", Rarity: RaritySR, Skills: map[string][]string{
			"NOBLE":    {"DANCE", "MASQUE"},
			"MERCHANT": {"BANQUET"},
		}},
		{ID: "katya", Name: "Katya", Rarity: RaritySR, Skills: map[string][]string{
			"MERCHANT": {"LUTE", "SONG"},
			"OUTLAW":   {"JUGGLE"},
		}},
		{ID: "iselda", Name: "Iselda", Rarity: RaritySSR, Skills: map[string][]string{
			"NOBLE":  {"POETRY", "MASQUE", "SONG"},
			"OUTLAW": {"TAROT"},
		}},
		{ID: "vesna", Name: "Vesna", Rarity: RarityUR, Skills: map[string][]string{
			"NOBLE":    {"DANCE", "SONG", "MASQUE"},
			"MERCHANT": {"BANQUET", "LUTE"},
			"COMMONER": {"POETRY"},
		}},
	}
}

// Instantiate builds a fresh level-1 owned instance of the definition.
// The caller supplies the UID and acquisition time.
func (d *CharacterDefinition) Instantiate(uid string, now time.Time) *OwnedGirl {
	g := &OwnedGirl{
		UID:        uid,
		GirlID:     d.ID,
		Name:       d.Name,
		Rarity:     d.Rarity,
		Level:      1,
		Skills:     make(map[string]*SkillState, len(d.Skills)),
		AcquiredAt: now,
	}
	for main, subs := range d.Skills {
		st := &SkillState{Level: 1, SubSkills: make(map[string]*SubSkillState, len(subs))}
		for _, sub := range subs {
			st.SubSkills[sub] = &SubSkillState{Level: 1}
		}
		g.Skills[main] = st
	}
	return g
}
