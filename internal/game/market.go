package game

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// Demand is what a posting asks for. Matching is exact on both skill ids
// plus the sub-skill level floor; there is no partial credit.
type Demand struct {
	MainSkillID string `json:"main_skill_id"`
	SubSkillID  string `json:"sub_skill_id"`
	MinLevel    int    `json:"min_level"`
}

type Reward struct {
	Currency int64 `json:"currency"`
	XP       int   `json:"xp"`
}

type MarketPosting struct {
	JobID     string     `json:"job_id"`
	Demand    Demand     `json:"demand"`
	Reward    Reward     `json:"reward"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// MarketSet is one player's job board. It persists until the player
// regenerates it; regeneration replaces the whole set, never merges.
type MarketSet struct {
	PlayerID    string          `json:"player_id"`
	Postings    []MarketPosting `json:"postings"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Posting returns the posting with the given job id, or ErrUnknownJob.
func (m *MarketSet) Posting(jobID string) (*MarketPosting, error) {
	for i := range m.Postings {
		if m.Postings[i].JobID == jobID {
			return &m.Postings[i], nil
		}
	}
	return nil, ErrUnknownJob
}

func (m *MarketSet) removePosting(jobID string) {
	for i := range m.Postings {
		if m.Postings[i].JobID == jobID {
			m.Postings = append(m.Postings[:i], m.Postings[i+1:]...)
			return
		}
	}
}

// Matches reports whether the girl satisfies the demand: the demanded
// main skill is present, the demanded sub-skill is present under it, and
// the sub-skill level clears the floor.
func (g *OwnedGirl) Matches(d Demand) bool {
	sk, ok := g.Skills[d.MainSkillID]
	if !ok {
		return false
	}
	sub, ok := sk.SubSkills[d.SubSkillID]
	if !ok {
		return false
	}
	return sub.Level >= d.MinLevel
}

// skillPair is one (main, sub) combination present somewhere in the
// catalog. Demands are drawn from this set so every posting is
// attainable by at least one catalog character.
type skillPair struct {
	main, sub string
}

func catalogPairs(c *Catalog) []skillPair {
	seen := make(map[skillPair]bool)
	for _, d := range c.defs {
		for main, subs := range d.Skills {
			for _, sub := range subs {
				seen[skillPair{main, sub}] = true
			}
		}
	}
	pairs := make([]skillPair, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].main != pairs[j].main {
			return pairs[i].main < pairs[j].main
		}
		return pairs[i].sub < pairs[j].sub
	})
	return pairs
}

// marketLevel scales demand difficulty with the overall strength of the
// collection.
func marketLevel(p *Profile) int {
	total := 0
	for _, g := range p.Collection {
		total += g.Level
	}
	level := 1 + total/10
	if level > 8 {
		level = 8
	}
	return level
}

// GenerateMarket builds a fresh posting set for the profile. The count
// grows with the collection within configured bounds; pay and XP scale
// with the demanded level.
func GenerateMarket(p *Profile, c *Catalog, mb MarketBalance, rng *rand.Rand, now time.Time) *MarketSet {
	count := mb.BasePostings + len(p.Collection)/2
	if count < mb.MinPostings {
		count = mb.MinPostings
	}
	if count > mb.MaxPostings {
		count = mb.MaxPostings
	}
	pairs := catalogPairs(c)
	ceiling := marketLevel(p)
	set := &MarketSet{
		PlayerID:    p.PlayerID,
		Postings:    make([]MarketPosting, 0, count),
		GeneratedAt: now,
	}
	for i := 0; i < count; i++ {
		pair := pairs[rng.Intn(len(pairs))]
		level := 1 + rng.Intn(ceiling)
		pay := mb.PayBase + int64(level)*mb.PayPerLevel + rng.Int63n(21)
		if pay < mb.PayMin {
			pay = mb.PayMin
		}
		if pay > mb.PayMax {
			pay = mb.PayMax
		}
		set.Postings = append(set.Postings, MarketPosting{
			JobID: fmt.Sprintf("J%d", i+1),
			Demand: Demand{
				MainSkillID: pair.main,
				SubSkillID:  pair.sub,
				MinLevel:    level,
			},
			Reward: Reward{
				Currency: pay,
				XP:       mb.XPBase + level*mb.XPPerLevel,
			},
		})
	}
	return set
}

// WorkResult reports one work attempt. A mismatch is a normal outcome,
// not an error: stamina is still spent and Matched is false.
type WorkResult struct {
	JobID    string      `json:"job_id"`
	GirlUID  string      `json:"girl_uid"`
	Matched  bool        `json:"matched"`
	Demand   Demand      `json:"demand"`
	Pay      int64       `json:"pay"`
	XP       int         `json:"xp"`
	Stamina  int         `json:"stamina"`
	Currency int64       `json:"currency"`
	Girl     GrantReport `json:"girl"`
	Skill    GrantReport `json:"skill"`
	SubSkill GrantReport `json:"sub_skill"`
}
