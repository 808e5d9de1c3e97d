package game

// Draw picks one catalog entry from a uniform variate in
// [0, TotalWeight()). Walking the cumulative sum keeps per-entry odds
// proportional to weight without any precomputed alias table; the
// catalog is small enough that linear scan is fine.
func (c *Catalog) Draw(u float64) *CharacterDefinition {
	acc := 0.0
	for i := range c.defs {
		acc += c.defs[i].Weight
		if u < acc {
			return &c.defs[i]
		}
	}
	// Float rounding can leave u a hair past the last boundary.
	return &c.defs[len(c.defs)-1]
}

// GachaResult is one roll action: every pull from a single up-front
// debit, plus the balance after.
type GachaResult struct {
	Pulls    []*OwnedGirl `json:"pulls"`
	Cost     int64        `json:"cost"`
	Currency int64        `json:"currency"`
}
