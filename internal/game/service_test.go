package game_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"troupe/internal/game"
	"troupe/internal/store"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newTestService(t *testing.T, defs []game.CharacterDefinition, mutate func(*game.Balance)) (*game.Service, time.Time) {
	t.Helper()
	if defs == nil {
		defs = game.DefaultRoster()
	}
	catalog, err := game.NewCatalog(defs)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	bal := game.DefaultBalance()
	if mutate != nil {
		mutate(&bal)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := game.NewService(store.NewMemory(), catalog, bal, nil).
		WithClock(fixedClock(now)).
		WithRand(rand.New(rand.NewSource(42)))
	return svc, now
}

func soloRoster() []game.CharacterDefinition {
	return []game.CharacterDefinition{
		{ID: "mira", Name: "Mira", Rarity: game.RarityR, Skills: map[string][]string{
			"COMMONER": {"DANCE"},
		}},
	}
}

func TestStartProfileGrantsStarterPack(t *testing.T) {
	svc, _ := newTestService(t, nil, func(b *game.Balance) {
		b.StarterGirlID = "mira"
	})
	ctx := context.Background()

	p, err := svc.StartProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if p.Currency != svc.Balance().StarterCurrency {
		t.Fatalf("currency=%d want %d", p.Currency, svc.Balance().StarterCurrency)
	}
	if p.Stamina != svc.Balance().StaminaCap {
		t.Fatalf("stamina=%d want cap", p.Stamina)
	}
	if len(p.Collection) != 1 || p.Collection[0].GirlID != "mira" {
		t.Fatalf("starter girl wrong: %+v", p.Collection)
	}
	if p.Collection[0].UID != "mira-1" {
		t.Fatalf("uid=%q", p.Collection[0].UID)
	}

	if _, err := svc.StartProfile(ctx, "alice"); !errors.Is(err, game.ErrProfileExists) {
		t.Fatalf("second start: %v", err)
	}
}

func TestProfilePersistsRegeneration(t *testing.T) {
	svc, now := newTestService(t, nil, func(b *game.Balance) {
		b.StarterGirlID = "mira"
		b.StaminaCap = 10
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Drain below cap, then advance the clock.
	_, err := svc.RegenerateMarket(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	set, err := svc.Market(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if _, err := svc.Work(ctx, "alice", set.Postings[0].JobID, "mira-1"); err != nil {
		t.Fatalf("work: %v", err)
	}

	svc.WithClock(fixedClock(now.Add(25 * time.Minute)))
	p, err := svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.Stamina != 10 {
		t.Fatalf("stamina=%d want back at cap 10", p.Stamina)
	}

	// The refreshed tick must have been persisted, not just computed.
	again, err := svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if !again.LastStaminaTick.Equal(p.LastStaminaTick) {
		t.Fatalf("tick not persisted: %v vs %v", again.LastStaminaTick, p.LastStaminaTick)
	}
}

func TestRollAllOrNothing(t *testing.T) {
	svc, _ := newTestService(t, nil, func(b *game.Balance) {
		b.StarterGirlID = "mira"
		b.StarterCurrency = 500
		b.GachaCost = 100
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// 6 draws cost 600 against a 500 balance: nothing may change.
	if _, err := svc.Roll(ctx, "alice", 6); !errors.Is(err, game.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	p, err := svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.Currency != 500 {
		t.Fatalf("failed roll debited: %d", p.Currency)
	}
	if len(p.Collection) != 1 {
		t.Fatalf("failed roll granted pulls: %d", len(p.Collection))
	}

	res, err := svc.Roll(ctx, "alice", 5)
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if res.Cost != 500 || res.Currency != 0 {
		t.Fatalf("cost=%d currency=%d", res.Cost, res.Currency)
	}
	if len(res.Pulls) != 5 {
		t.Fatalf("pulls=%d want 5", len(res.Pulls))
	}
	for _, g := range res.Pulls {
		if g.Level != 1 || g.XP != 0 {
			t.Fatalf("pull not fresh: %+v", g)
		}
	}
}

func TestRollDuplicatesGetDistinctUIDs(t *testing.T) {
	svc, _ := newTestService(t, soloRoster(), func(b *game.Balance) {
		b.StarterGirlID = "mira"
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := svc.Roll(ctx, "alice", 3)
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	seen := map[string]bool{"mira-1": true}
	for _, g := range res.Pulls {
		if seen[g.UID] {
			t.Fatalf("duplicate uid %q", g.UID)
		}
		seen[g.UID] = true
	}
}

func TestMarketFirstOpenThenStable(t *testing.T) {
	svc, _ := newTestService(t, nil, func(b *game.Balance) {
		b.StarterGirlID = "mira"
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	first, err := svc.Market(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if len(first.Postings) == 0 {
		t.Fatalf("first open generated no postings")
	}
	second, err := svc.Market(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if len(second.Postings) != len(first.Postings) {
		t.Fatalf("plain read replaced the board")
	}
	for i := range first.Postings {
		if first.Postings[i] != second.Postings[i] {
			t.Fatalf("posting %d changed on read", i)
		}
	}
}

func TestRegenerateMarketReplacesWholesale(t *testing.T) {
	svc, _ := newTestService(t, soloRoster(), func(b *game.Balance) {
		b.StarterGirlID = "mira"
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	first, err := svc.Market(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	// Consume a posting, then regenerate: the count resets, nothing
	// carries over.
	if _, err := svc.Work(ctx, "alice", first.Postings[0].JobID, "mira-1"); err != nil {
		t.Fatalf("work: %v", err)
	}
	afterWork, err := svc.Market(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if len(afterWork.Postings) != len(first.Postings)-1 {
		t.Fatalf("consumed posting still present")
	}

	fresh, err := svc.RegenerateMarket(ctx, "alice")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(fresh.Postings) == len(afterWork.Postings) {
		t.Fatalf("regeneration did not replace the set")
	}
	if _, err := fresh.Posting("J1"); err != nil {
		t.Fatalf("fresh set missing J1: %v", err)
	}
}

func TestWorkSuccess(t *testing.T) {
	svc, _ := newTestService(t, soloRoster(), func(b *game.Balance) {
		b.StarterGirlID = "mira"
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	set, err := svc.Market(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	// With a single-character roster every demand is COMMONER/DANCE;
	// starter sub-skill level 1 always clears the lowest floor.
	var posting *game.MarketPosting
	for i := range set.Postings {
		if set.Postings[i].Demand.MinLevel == 1 {
			posting = &set.Postings[i]
			break
		}
	}
	if posting == nil {
		t.Fatalf("no level-1 posting in %+v", set.Postings)
	}
	before, err := svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}

	res, err := svc.Work(ctx, "alice", posting.JobID, "mira-1")
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if !res.Matched {
		t.Fatalf("expected match: %+v", res)
	}
	if res.Pay != posting.Reward.Currency || res.XP != posting.Reward.XP {
		t.Fatalf("reward mismatch: %+v vs %+v", res, posting.Reward)
	}
	if res.Stamina != before.Stamina-1 {
		t.Fatalf("stamina=%d want %d", res.Stamina, before.Stamina-1)
	}
	if res.Currency != before.Currency+posting.Reward.Currency {
		t.Fatalf("currency=%d", res.Currency)
	}
	if res.Girl.XPGranted != posting.Reward.XP || res.Skill.XPGranted != posting.Reward.XP || res.SubSkill.XPGranted != posting.Reward.XP {
		t.Fatalf("xp not granted at all tiers: %+v", res)
	}

	after, err := svc.Market(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if _, err := after.Posting(posting.JobID); !errors.Is(err, game.ErrUnknownJob) {
		t.Fatalf("posting not consumed")
	}
}

func TestWorkMismatchSpendsStaminaOnly(t *testing.T) {
	roster := []game.CharacterDefinition{
		{ID: "mira", Name: "Mira", Rarity: game.RarityR, Skills: map[string][]string{
			"COMMONER": {"DANCE"},
		}},
		{ID: "odile", Name: "Odile", Rarity: game.RarityR, Weight: 0.000001, Skills: map[string][]string{
			"NOBLE": {"MASQUE"},
		}},
	}
	svc, _ := newTestService(t, roster, func(b *game.Balance) {
		b.StarterGirlID = "mira"
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Regenerate until the board offers a NOBLE/MASQUE job, which the
	// starter cannot match.
	var posting *game.MarketPosting
	for i := 0; i < 50 && posting == nil; i++ {
		set, err := svc.RegenerateMarket(ctx, "alice")
		if err != nil {
			t.Fatalf("regenerate: %v", err)
		}
		for j := range set.Postings {
			if set.Postings[j].Demand.MainSkillID == "NOBLE" {
				posting = &set.Postings[j]
				break
			}
		}
	}
	if posting == nil {
		t.Fatalf("never generated a NOBLE posting")
	}
	before, err := svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}

	res, err := svc.Work(ctx, "alice", posting.JobID, "mira-1")
	if err != nil {
		t.Fatalf("mismatch must not be an error: %v", err)
	}
	if res.Matched {
		t.Fatalf("expected mismatch")
	}
	if res.Pay != 0 || res.XP != 0 {
		t.Fatalf("mismatch paid out: %+v", res)
	}
	if res.Stamina != before.Stamina-1 {
		t.Fatalf("stamina=%d want %d", res.Stamina, before.Stamina-1)
	}
	if res.Currency != before.Currency {
		t.Fatalf("currency changed on mismatch")
	}

	// The posting survives a mismatch.
	set, err := svc.Market(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if _, err := set.Posting(posting.JobID); err != nil {
		t.Fatalf("posting consumed on mismatch: %v", err)
	}
}

func TestWorkGateOrder(t *testing.T) {
	svc, _ := newTestService(t, soloRoster(), func(b *game.Balance) {
		b.StarterGirlID = "mira"
		b.StaminaCap = 1
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	set, err := svc.Market(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}

	// Unknown job beats unknown girl.
	if _, err := svc.Work(ctx, "alice", "J99", "nobody-1"); !errors.Is(err, game.ErrUnknownJob) {
		t.Fatalf("want ErrUnknownJob, got %v", err)
	}
	// Unknown girl beats stamina.
	if _, err := svc.Work(ctx, "alice", set.Postings[0].JobID, "nobody-1"); !errors.Is(err, game.ErrUnknownGirl) {
		t.Fatalf("want ErrUnknownGirl, got %v", err)
	}

	// Precondition errors must not have spent anything.
	p, err := svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.Stamina != 1 {
		t.Fatalf("precondition error spent stamina: %d", p.Stamina)
	}

	if _, err := svc.Work(ctx, "alice", set.Postings[0].JobID, "mira-1"); err != nil {
		t.Fatalf("work: %v", err)
	}
	set, err = svc.Market(ctx, "alice")
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if len(set.Postings) == 0 {
		t.Fatalf("board exhausted early")
	}
	if _, err := svc.Work(ctx, "alice", set.Postings[0].JobID, "mira-1"); !errors.Is(err, game.ErrInsufficientStamina) {
		t.Fatalf("want ErrInsufficientStamina, got %v", err)
	}
}

func TestWorkUnknownPlayer(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	if _, err := svc.Work(context.Background(), "ghost", "J1", "mira-1"); !errors.Is(err, game.ErrProfileNotFound) {
		t.Fatalf("want ErrProfileNotFound, got %v", err)
	}
}

func TestUpgradeBuysExactlyOneLevel(t *testing.T) {
	svc, _ := newTestService(t, soloRoster(), func(b *game.Balance) {
		b.StarterGirlID = "mira"
		b.StarterCurrency = 100_000
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	res, err := svc.Upgrade(ctx, "alice", "mira-1", game.TierGirl, "", "")
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if res.Report.Level != 2 || res.Report.LevelsGained != 1 {
		t.Fatalf("report=%+v", res.Report)
	}
	ub := svc.Balance().Upgrade
	if res.Cost != ub.GirlBase+1*ub.GirlPerLevel {
		t.Fatalf("cost=%d", res.Cost)
	}

	sub, err := svc.Upgrade(ctx, "alice", "mira-1", game.TierSubSkill, "COMMONER", "DANCE")
	if err != nil {
		t.Fatalf("sub upgrade: %v", err)
	}
	if sub.Report.Level != 2 {
		t.Fatalf("sub level=%d", sub.Report.Level)
	}

	if _, err := svc.Upgrade(ctx, "alice", "mira-1", game.TierSkill, "NOBLE", ""); !errors.Is(err, game.ErrUnknownSkill) {
		t.Fatalf("want ErrUnknownSkill, got %v", err)
	}
}

func TestUpgradeInsufficientFundsMutatesNothing(t *testing.T) {
	svc, _ := newTestService(t, soloRoster(), func(b *game.Balance) {
		b.StarterGirlID = "mira"
		b.StarterCurrency = 1
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Upgrade(ctx, "alice", "mira-1", game.TierGirl, "", ""); !errors.Is(err, game.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	p, err := svc.Profile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.Currency != 1 || p.Collection[0].Level != 1 {
		t.Fatalf("failed upgrade mutated state: %+v", p)
	}
}

func TestDismantlePayout(t *testing.T) {
	svc, _ := newTestService(t, nil, func(b *game.Balance) {
		b.StarterGirlID = "iselda" // SSR
	})
	ctx := context.Background()
	if _, err := svc.StartProfile(ctx, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	before, _ := svc.Profile(ctx, "alice")

	res, err := svc.Dismantle(ctx, "alice", "iselda-1")
	if err != nil {
		t.Fatalf("dismantle: %v", err)
	}
	db := svc.Balance().Dismantle
	want := db.RarityPayout[game.RaritySSR] + 1*db.PerLevel
	if res.Payout != want {
		t.Fatalf("payout=%d want %d", res.Payout, want)
	}
	if res.Currency != before.Currency+want {
		t.Fatalf("currency=%d", res.Currency)
	}
	p, _ := svc.Profile(ctx, "alice")
	if len(p.Collection) != 0 {
		t.Fatalf("girl not removed")
	}
	if _, err := svc.Dismantle(ctx, "alice", "iselda-1"); !errors.Is(err, game.ErrUnknownGirl) {
		t.Fatalf("want ErrUnknownGirl, got %v", err)
	}
}
