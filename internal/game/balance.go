package game

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// Curve is a level-up table: Curve[level-1] is the XP needed to advance
// from that level to the next. Levels past the end are capped.
type Curve []int

// Threshold reports the XP needed to leave the given level. ok is false
// when the level is at or past the end of the table.
func (c Curve) Threshold(level int) (int, bool) {
	if level < 1 || level > len(c) {
		return 0, false
	}
	return c[level-1], true
}

// MaxLevel is the highest level the curve can reach.
func (c Curve) MaxLevel() int { return len(c) + 1 }

type MarketBalance struct {
	BasePostings int   `json:"base_postings"`
	MinPostings  int   `json:"min_postings"`
	MaxPostings  int   `json:"max_postings"`
	PayBase      int64 `json:"pay_base"`
	PayPerLevel  int64 `json:"pay_per_level"`
	PayMin       int64 `json:"pay_min"`
	PayMax       int64 `json:"pay_max"`
	XPBase       int   `json:"xp_base"`
	XPPerLevel   int   `json:"xp_per_level"`
}

type UpgradeBalance struct {
	GirlBase      int64 `json:"girl_base"`
	GirlPerLevel  int64 `json:"girl_per_level"`
	SkillBase     int64 `json:"skill_base"`
	SkillPerLevel int64 `json:"skill_per_level"`
	SubBase       int64 `json:"sub_base"`
	SubPerLevel   int64 `json:"sub_per_level"`
}

type DismantleBalance struct {
	RarityPayout map[Rarity]int64 `json:"rarity_payout"`
	PerLevel     int64            `json:"per_level"`
}

// Balance gathers every tuning knob. Defaults come from DefaultBalance;
// a deployment may override any subset through a JSON file.
type Balance struct {
	StarterCurrency int64
	StarterGirlID   string
	StaminaCap      int
	StaminaInterval time.Duration
	GachaCost       int64
	GirlCurve       Curve
	SkillCurve      Curve
	SubSkillCurve   Curve
	Market          MarketBalance
	Upgrade         UpgradeBalance
	Dismantle       DismantleBalance
}

func DefaultBalance() Balance {
	return Balance{
		StarterCurrency: 500,
		StaminaCap:      12,
		StaminaInterval: 10 * time.Minute,
		GachaCost:       100,
		GirlCurve:       buildCurve(100, 60, 1.2, 60),
		SkillCurve:      buildCurve(40, 12, 1.1, 40),
		SubSkillCurve:   buildCurve(30, 9, 1.05, 40),
		Market: MarketBalance{
			BasePostings: 4,
			MinPostings:  3,
			MaxPostings:  10,
			PayBase:      55,
			PayPerLevel:  15,
			PayMin:       40,
			PayMax:       420,
			XPBase:       8,
			XPPerLevel:   5,
		},
		Upgrade: UpgradeBalance{
			GirlBase:      120,
			GirlPerLevel:  45,
			SkillBase:     80,
			SkillPerLevel: 30,
			SubBase:       60,
			SubPerLevel:   25,
		},
		Dismantle: DismantleBalance{
			RarityPayout: map[Rarity]int64{
				RarityR:   50,
				RaritySR:  150,
				RaritySSR: 400,
				RarityUR:  1000,
			},
			PerLevel: 20,
		},
	}
}

// buildCurve generates a threshold table from base + level*linear +
// level^exp, rounded. Kept as data so deployments can replace the whole
// table instead of tweaking the formula.
func buildCurve(base, linear float64, exp float64, levels int) Curve {
	c := make(Curve, levels)
	for i := range c {
		level := float64(i + 1)
		c[i] = int(math.Round(base + level*linear + math.Pow(level, exp)))
	}
	return c
}

// balanceFile is the override shape. Absent fields keep their defaults.
type balanceFile struct {
	StarterCurrency *int64            `json:"starter_currency"`
	StarterGirlID   *string           `json:"starter_girl_id"`
	StaminaCap      *int              `json:"stamina_cap"`
	StaminaInterval *string           `json:"stamina_interval"`
	GachaCost       *int64            `json:"gacha_cost"`
	GirlCurve       []int             `json:"girl_curve"`
	SkillCurve      []int             `json:"skill_curve"`
	SubSkillCurve   []int             `json:"sub_skill_curve"`
	Market          *MarketBalance    `json:"market"`
	Upgrade         *UpgradeBalance   `json:"upgrade"`
	Dismantle       *DismantleBalance `json:"dismantle"`
}

// LoadBalance returns the defaults, overridden by the JSON file at path
// when one is given.
func LoadBalance(path string) (Balance, error) {
	b := DefaultBalance()
	if path == "" {
		return b, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Balance{}, fmt.Errorf("read balance: %w", err)
	}
	var f balanceFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return Balance{}, fmt.Errorf("parse balance: %w", err)
	}
	if f.StarterCurrency != nil {
		b.StarterCurrency = *f.StarterCurrency
	}
	if f.StarterGirlID != nil {
		b.StarterGirlID = *f.StarterGirlID
	}
	if f.StaminaCap != nil {
		b.StaminaCap = *f.StaminaCap
	}
	if f.StaminaInterval != nil {
		d, err := time.ParseDuration(*f.StaminaInterval)
		if err != nil {
			return Balance{}, fmt.Errorf("parse stamina_interval: %w", err)
		}
		b.StaminaInterval = d
	}
	if f.GachaCost != nil {
		b.GachaCost = *f.GachaCost
	}
	if len(f.GirlCurve) > 0 {
		b.GirlCurve = Curve(f.GirlCurve)
	}
	if len(f.SkillCurve) > 0 {
		b.SkillCurve = Curve(f.SkillCurve)
	}
	if len(f.SubSkillCurve) > 0 {
		b.SubSkillCurve = Curve(f.SubSkillCurve)
	}
	if f.Market != nil {
		b.Market = *f.Market
	}
	if f.Upgrade != nil {
		b.Upgrade = *f.Upgrade
	}
	if f.Dismantle != nil {
		b.Dismantle = *f.Dismantle
	}
	if err := b.validate(); err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (b Balance) validate() error {
	if b.StaminaCap < 1 {
		return fmt.Errorf("stamina_cap must be >= 1")
	}
	if b.StaminaInterval <= 0 {
		return fmt.Errorf("stamina_interval must be positive")
	}
	if b.GachaCost < 1 {
		return fmt.Errorf("gacha_cost must be >= 1")
	}
	for _, c := range []Curve{b.GirlCurve, b.SkillCurve, b.SubSkillCurve} {
		for i, v := range c {
			if v <= 0 {
				return fmt.Errorf("curve threshold at level %d must be positive", i+1)
			}
		}
	}
	m := b.Market
	if m.MinPostings < 1 || m.MaxPostings < m.MinPostings {
		return fmt.Errorf("market posting bounds are inconsistent")
	}
	if m.PayMin < 0 || m.PayMax < m.PayMin {
		return fmt.Errorf("market pay bounds are inconsistent")
	}
	return nil
}
