package game

import "time"

// RegenerateStamina applies lazy regeneration up to now: one unit per
// full interval since the last tick, capped. The tick advances by whole
// intervals only and is never set to now directly, so partial progress
// toward the next unit survives reads, including reads at the cap.
// Calling twice with the same now is a no-op the second time. Returns
// the units gained.
func RegenerateStamina(p *Profile, now time.Time, cap int, interval time.Duration) int {
	if p.Stamina > cap {
		p.Stamina = cap
	}
	if now.Before(p.LastStaminaTick) {
		return 0
	}
	elapsed := now.Sub(p.LastStaminaTick)
	units := int(elapsed / interval)
	if units <= 0 {
		return 0
	}
	p.LastStaminaTick = p.LastStaminaTick.Add(time.Duration(units) * interval)
	if p.Stamina >= cap {
		return 0
	}
	gained := units
	if p.Stamina+gained > cap {
		gained = cap - p.Stamina
	}
	p.Stamina += gained
	return gained
}
