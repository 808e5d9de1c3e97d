package game

import (
	"errors"
	"time"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrProfileExists       = errors.New("profile already exists")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientStamina = errors.New("insufficient stamina")
	ErrUnknownJob          = errors.New("unknown job")
	ErrUnknownGirl         = errors.New("unknown girl")
	ErrUnknownSkill        = errors.New("unknown skill")
	ErrUnknownCharacter    = errors.New("unknown catalog character")
	ErrLevelCapped         = errors.New("already at the level cap")
	ErrInvalidAmount       = errors.New("amount must be > 0")
	ErrUnauthorized        = errors.New("unauthorized")
)

// SubSkillState is the innermost progression tier.
type SubSkillState struct {
	Level int `json:"level"`
	XP    int `json:"xp"`
}

// SkillState is a main skill and the sub-skills nested under it.
type SkillState struct {
	Level     int                       `json:"level"`
	XP        int                       `json:"xp"`
	SubSkills map[string]*SubSkillState `json:"sub_skills"`
}

// OwnedGirl is one acquired instance. Duplicates of the same catalog
// character are distinct instances with their own UID and progression.
type OwnedGirl struct {
	UID        string                 `json:"uid"`
	GirlID     string                 `json:"girl_id"`
	Name       string                 `json:"name"`
	Rarity     Rarity                 `json:"rarity"`
	Level      int                    `json:"level"`
	XP         int                    `json:"xp"`
	Skills     map[string]*SkillState `json:"skills"`
	AcquiredAt time.Time              `json:"acquired_at"`
}

// Profile is the per-player aggregate. Every action loads it, mutates it
// in memory, and persists it back as a unit.
type Profile struct {
	PlayerID        string       `json:"player_id"`
	Currency        int64        `json:"currency"`
	Stamina         int          `json:"stamina"`
	LastStaminaTick time.Time    `json:"last_stamina_tick"`
	Collection      []*OwnedGirl `json:"collection"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Girl returns the owned instance with the given UID, or ErrUnknownGirl.
func (p *Profile) Girl(uid string) (*OwnedGirl, error) {
	for _, g := range p.Collection {
		if g.UID == uid {
			return g, nil
		}
	}
	return nil, ErrUnknownGirl
}

func (p *Profile) removeGirl(uid string) bool {
	for i, g := range p.Collection {
		if g.UID == uid {
			p.Collection = append(p.Collection[:i], p.Collection[i+1:]...)
			return true
		}
	}
	return false
}

// Debit and Credit are the only mutators of Currency. The balance never
// goes negative; a short debit fails whole with ErrInsufficientFunds.
func (p *Profile) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Currency < amount {
		return ErrInsufficientFunds
	}
	p.Currency -= amount
	return nil
}

func (p *Profile) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	p.Currency += amount
	return nil
}

// PlayerState bundles everything persisted for one player. Market is nil
// until the player first opens the job board.
type PlayerState struct {
	Profile *Profile   `json:"profile"`
	Market  *MarketSet `json:"market,omitempty"`
}
