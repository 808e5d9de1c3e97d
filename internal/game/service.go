package game

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"
)

// Store is the persistence contract. Mutate must give the callback
// exclusive access to that player's state for its duration and persist
// the (possibly replaced) state only when the callback returns nil.
type Store interface {
	Create(ctx context.Context, state *PlayerState) error
	View(ctx context.Context, playerID string) (*PlayerState, error)
	Mutate(ctx context.Context, playerID string, fn func(*PlayerState) error) (*PlayerState, error)
}

type Service struct {
	store   Store
	catalog *Catalog
	bal     Balance
	log     *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
	rand    *mathrand.Rand
}

func NewService(store Store, catalog *Catalog, bal Balance, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		catalog: catalog,
		bal:     bal,
		log:     logger,
		now:     time.Now,
		rand:    mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock and WithRand replace the time and randomness sources.
// Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithRand(r *mathrand.Rand) *Service {
	s.rand = r
	return s
}

func (s *Service) Catalog() *Catalog { return s.catalog }

func (s *Service) Balance() Balance { return s.bal }

func (s *Service) uniform(max float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64() * max
}

func (s *Service) cloneRand() *mathrand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mathrand.New(mathrand.NewSource(s.rand.Int63()))
}

// refresh applies lazy stamina regeneration as of now. Every operation
// that loads a profile goes through it before doing anything else.
func (s *Service) refresh(p *Profile, now time.Time) {
	RegenerateStamina(p, now, s.bal.StaminaCap, s.bal.StaminaInterval)
}

// StartProfile creates a fresh profile with the starter grant, full
// stamina, and one guaranteed starting girl. A second start for the same
// player fails with ErrProfileExists.
func (s *Service) StartProfile(ctx context.Context, playerID string) (*Profile, error) {
	if playerID == "" {
		return nil, fmt.Errorf("player id is required")
	}
	now := s.now()
	var def *CharacterDefinition
	if s.bal.StarterGirlID != "" {
		d, err := s.catalog.Definition(s.bal.StarterGirlID)
		if err != nil {
			return nil, fmt.Errorf("starter girl %q: %w", s.bal.StarterGirlID, err)
		}
		def = d
	} else {
		def = s.catalog.Draw(s.uniform(s.catalog.TotalWeight()))
	}
	p := &Profile{
		PlayerID:        playerID,
		Currency:        s.bal.StarterCurrency,
		Stamina:         s.bal.StaminaCap,
		LastStaminaTick: now,
		CreatedAt:       now,
	}
	starter := def.Instantiate(allocateUID(p, def.ID), now)
	p.Collection = append(p.Collection, starter)
	if err := s.store.Create(ctx, &PlayerState{Profile: p}); err != nil {
		return nil, err
	}
	s.log.Info("profile started", "player_id", playerID, "starter", starter.GirlID)
	return p, nil
}

// Profile loads the profile, applies regeneration, and persists the
// refreshed state.
func (s *Service) Profile(ctx context.Context, playerID string) (*Profile, error) {
	now := s.now()
	state, err := s.store.Mutate(ctx, playerID, func(st *PlayerState) error {
		s.refresh(st.Profile, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state.Profile, nil
}

// Collection returns the owned girls in acquisition order.
func (s *Service) Collection(ctx context.Context, playerID string) ([]*OwnedGirl, error) {
	p, err := s.Profile(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return p.Collection, nil
}

// Roll performs times gacha draws against a single up-front debit of
// cost*times. If the balance is short, nothing is drawn and nothing
// changes. Duplicates are allowed; every pull is a fresh level-1
// instance.
func (s *Service) Roll(ctx context.Context, playerID string, times int) (*GachaResult, error) {
	if times < 1 {
		return nil, fmt.Errorf("times must be >= 1")
	}
	now := s.now()
	cost := s.bal.GachaCost * int64(times)
	var res *GachaResult
	_, err := s.store.Mutate(ctx, playerID, func(st *PlayerState) error {
		p := st.Profile
		s.refresh(p, now)
		if err := p.Debit(cost); err != nil {
			return err
		}
		pulls := make([]*OwnedGirl, 0, times)
		for i := 0; i < times; i++ {
			def := s.catalog.Draw(s.uniform(s.catalog.TotalWeight()))
			g := def.Instantiate(allocateUID(p, def.ID), now)
			p.Collection = append(p.Collection, g)
			pulls = append(pulls, g)
		}
		res = &GachaResult{Pulls: pulls, Cost: cost, Currency: p.Currency}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("gacha roll", "player_id", playerID, "times", times, "cost", cost)
	return res, nil
}

// Market returns the player's current job board, generating one on first
// open. It never replaces an existing set; that is RegenerateMarket's
// job.
func (s *Service) Market(ctx context.Context, playerID string) (*MarketSet, error) {
	now := s.now()
	rng := s.cloneRand()
	state, err := s.store.Mutate(ctx, playerID, func(st *PlayerState) error {
		s.refresh(st.Profile, now)
		if st.Market == nil {
			st.Market = GenerateMarket(st.Profile, s.catalog, s.bal.Market, rng, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state.Market, nil
}

// RegenerateMarket discards the current posting set and generates a new
// one. Unconsumed postings do not carry over.
func (s *Service) RegenerateMarket(ctx context.Context, playerID string) (*MarketSet, error) {
	now := s.now()
	rng := s.cloneRand()
	state, err := s.store.Mutate(ctx, playerID, func(st *PlayerState) error {
		s.refresh(st.Profile, now)
		st.Market = GenerateMarket(st.Profile, s.catalog, s.bal.Market, rng, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("market regenerated", "player_id", playerID, "postings", len(state.Market.Postings))
	return state.Market, nil
}

// Work sends a girl to a posting. Gate order is fixed: unknown job,
// unknown girl, insufficient stamina, then the match check. A mismatch
// still consumes one stamina and consumes nothing else; a match pays the
// reward, grants XP at all three tiers, and removes the posting.
func (s *Service) Work(ctx context.Context, playerID, jobID, girlUID string) (*WorkResult, error) {
	now := s.now()
	var res *WorkResult
	_, err := s.store.Mutate(ctx, playerID, func(st *PlayerState) error {
		p := st.Profile
		s.refresh(p, now)
		if st.Market == nil {
			return ErrUnknownJob
		}
		posting, err := st.Market.Posting(jobID)
		if err != nil {
			return err
		}
		girl, err := p.Girl(girlUID)
		if err != nil {
			return err
		}
		if p.Stamina < 1 {
			return ErrInsufficientStamina
		}
		p.Stamina--
		res = &WorkResult{
			JobID:   jobID,
			GirlUID: girlUID,
			Demand:  posting.Demand,
		}
		if !girl.Matches(posting.Demand) {
			res.Stamina = p.Stamina
			res.Currency = p.Currency
			return nil
		}
		if err := p.Credit(posting.Reward.Currency); err != nil {
			return err
		}
		res.Matched = true
		res.Pay = posting.Reward.Currency
		res.XP = posting.Reward.XP
		res.Girl = s.bal.GrantGirlXP(girl, posting.Reward.XP)
		sk := girl.Skills[posting.Demand.MainSkillID]
		res.Skill = s.bal.GrantSkillXP(sk, posting.Reward.XP)
		res.SubSkill = s.bal.GrantSubSkillXP(sk.SubSkills[posting.Demand.SubSkillID], posting.Reward.XP)
		st.Market.removePosting(jobID)
		res.Stamina = p.Stamina
		res.Currency = p.Currency
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("work resolved", "player_id", playerID, "job_id", jobID, "matched", res.Matched)
	return res, nil
}

type UpgradeTier string

const (
	TierGirl     UpgradeTier = "girl"
	TierSkill    UpgradeTier = "skill"
	TierSubSkill UpgradeTier = "sub_skill"
)

type UpgradeResult struct {
	GirlUID     string      `json:"girl_uid"`
	Tier        UpgradeTier `json:"tier"`
	MainSkillID string      `json:"main_skill_id,omitempty"`
	SubSkillID  string      `json:"sub_skill_id,omitempty"`
	Cost        int64       `json:"cost"`
	Currency    int64       `json:"currency"`
	Report      GrantReport `json:"report"`
}

// Upgrade spends currency to push one tier of one girl to its next
// level. The grant is exactly the XP remaining to the next threshold, so
// it never jumps more than one level.
func (s *Service) Upgrade(ctx context.Context, playerID, girlUID string, tier UpgradeTier, mainID, subID string) (*UpgradeResult, error) {
	now := s.now()
	var res *UpgradeResult
	_, err := s.store.Mutate(ctx, playerID, func(st *PlayerState) error {
		p := st.Profile
		s.refresh(p, now)
		girl, err := p.Girl(girlUID)
		if err != nil {
			return err
		}
		var (
			level, xp *int
			curve     Curve
			cost      int64
		)
		ub := s.bal.Upgrade
		switch tier {
		case TierGirl:
			level, xp = &girl.Level, &girl.XP
			curve = s.bal.GirlCurve
			cost = ub.GirlBase + int64(girl.Level)*ub.GirlPerLevel
		case TierSkill:
			sk, ok := girl.Skills[mainID]
			if !ok {
				return ErrUnknownSkill
			}
			level, xp = &sk.Level, &sk.XP
			curve = s.bal.SkillCurve
			cost = ub.SkillBase + int64(sk.Level)*ub.SkillPerLevel
		case TierSubSkill:
			sk, ok := girl.Skills[mainID]
			if !ok {
				return ErrUnknownSkill
			}
			sub, ok := sk.SubSkills[subID]
			if !ok {
				return ErrUnknownSkill
			}
			level, xp = &sub.Level, &sub.XP
			curve = s.bal.SubSkillCurve
			cost = ub.SubBase + int64(sub.Level)*ub.SubPerLevel
		default:
			return fmt.Errorf("unknown upgrade tier %q", tier)
		}
		need, ok := curve.Threshold(*level)
		if !ok {
			return ErrLevelCapped
		}
		if err := p.Debit(cost); err != nil {
			return err
		}
		res = &UpgradeResult{
			GirlUID:     girlUID,
			Tier:        tier,
			MainSkillID: mainID,
			SubSkillID:  subID,
			Cost:        cost,
			Currency:    p.Currency,
			Report:      grantXP(level, xp, need-*xp, curve),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type DismantleResult struct {
	GirlUID  string `json:"girl_uid"`
	Payout   int64  `json:"payout"`
	Currency int64  `json:"currency"`
}

// Dismantle removes a girl from the collection and credits the payout
// from the rarity table plus the per-level bonus.
func (s *Service) Dismantle(ctx context.Context, playerID, girlUID string) (*DismantleResult, error) {
	now := s.now()
	var res *DismantleResult
	_, err := s.store.Mutate(ctx, playerID, func(st *PlayerState) error {
		p := st.Profile
		s.refresh(p, now)
		girl, err := p.Girl(girlUID)
		if err != nil {
			return err
		}
		payout := s.bal.Dismantle.RarityPayout[girl.Rarity] + int64(girl.Level)*s.bal.Dismantle.PerLevel
		p.removeGirl(girlUID)
		if payout > 0 {
			if err := p.Credit(payout); err != nil {
				return err
			}
		}
		res = &DismantleResult{GirlUID: girlUID, Payout: payout, Currency: p.Currency}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("girl dismantled", "player_id", playerID, "girl_uid", girlUID, "payout", res.Payout)
	return res, nil
}

// allocateUID issues instance ids of the form "girlID-n", n counting up
// per catalog character within the profile.
func allocateUID(p *Profile, girlID string) string {
	n := 1
	for _, g := range p.Collection {
		if g.GirlID == girlID {
			n++
		}
	}
	for {
		uid := fmt.Sprintf("%s-%d", girlID, n)
		if _, err := p.Girl(uid); err != nil {
			return uid
		}
		n++
	}
}
