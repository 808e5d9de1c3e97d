package game

// GrantReport describes one XP application at a single tier.
type GrantReport struct {
	XPGranted    int  `json:"xp_granted"`
	LevelsGained int  `json:"levels_gained"`
	Level        int  `json:"level"`
	XP           int  `json:"xp"`
	Capped       bool `json:"capped,omitempty"`
}

// grantXP adds XP against a curve, carrying the remainder across as many
// level-ups as the amount covers. At the end of the table levels freeze
// but XP keeps accumulating, reported as capped rather than dropped.
func grantXP(level, xp *int, amount int, curve Curve) GrantReport {
	if amount < 0 {
		amount = 0
	}
	*xp += amount
	gained := 0
	for {
		need, ok := curve.Threshold(*level)
		if !ok {
			return GrantReport{XPGranted: amount, LevelsGained: gained, Level: *level, XP: *xp, Capped: true}
		}
		if *xp < need {
			return GrantReport{XPGranted: amount, LevelsGained: gained, Level: *level, XP: *xp}
		}
		*xp -= need
		*level++
		gained++
	}
}

// GrantGirlXP, GrantSkillXP, and GrantSubSkillXP apply one XP grant at the
// corresponding tier using that tier's curve from the balance tables.
func (b *Balance) GrantGirlXP(g *OwnedGirl, amount int) GrantReport {
	return grantXP(&g.Level, &g.XP, amount, b.GirlCurve)
}

func (b *Balance) GrantSkillXP(s *SkillState, amount int) GrantReport {
	return grantXP(&s.Level, &s.XP, amount, b.SkillCurve)
}

func (b *Balance) GrantSubSkillXP(s *SubSkillState, amount int) GrantReport {
	return grantXP(&s.Level, &s.XP, amount, b.SubSkillCurve)
}
