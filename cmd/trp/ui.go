package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"troupe/internal/game"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func colorizeRarity(r game.Rarity) string {
	switch r {
	case game.RarityUR:
		return danger.Sprint(string(r))
	case game.RaritySSR:
		return warn.Sprint(string(r))
	case game.RaritySR:
		return accent.Sprint(string(r))
	default:
		return neutral.Sprint(string(r))
	}
}

func renderProfile(p *game.Profile) {
	accent.Printf("\n== PROFILE %s ==\n", p.PlayerID)
	fmt.Printf("Coins:   %d\n", p.Currency)
	fmt.Printf("Stamina: %d\n", p.Stamina)
	fmt.Printf("Girls:   %d\n", len(p.Collection))
	fmt.Println()
}

func renderGachaResult(res *game.GachaResult) {
	accent.Printf("\n== GACHA x%d ==\n", len(res.Pulls))
	for _, g := range res.Pulls {
		fmt.Printf("%-4s %-16s %s\n", colorizeRarity(g.Rarity), g.Name, neutral.Sprint(g.UID))
	}
	fmt.Printf("Spent %d coins, %d left.\n\n", res.Cost, res.Currency)
}

func renderCollection(girls []*game.OwnedGirl) {
	accent.Println("\n== YOUR TROUPE ==")
	if len(girls) == 0 {
		printInfo("No girls yet. Try `trp roll`.")
		return
	}
	fmt.Printf("%-14s %-4s %-16s %5s %-40s\n", "UID", "RAR", "NAME", "LEVEL", "SKILLS")
	for _, g := range girls {
		fmt.Printf("%-14s %-4s %-16s %5d %-40s\n",
			g.UID,
			colorizeRarity(g.Rarity),
			truncate(g.Name, 16),
			g.Level,
			truncate(skillSummary(g), 40),
		)
	}
	fmt.Println()
}

func skillSummary(g *game.OwnedGirl) string {
	mains := make([]string, 0, len(g.Skills))
	for main := range g.Skills {
		mains = append(mains, main)
	}
	sort.Strings(mains)
	parts := make([]string, 0, len(mains))
	for _, main := range mains {
		sk := g.Skills[main]
		subs := make([]string, 0, len(sk.SubSkills))
		for sub := range sk.SubSkills {
			subs = append(subs, sub)
		}
		sort.Strings(subs)
		subParts := make([]string, 0, len(subs))
		for _, sub := range subs {
			subParts = append(subParts, fmt.Sprintf("%s:%d", sub, sk.SubSkills[sub].Level))
		}
		parts = append(parts, fmt.Sprintf("%s lv%d (%s)", main, sk.Level, strings.Join(subParts, " ")))
	}
	return strings.Join(parts, "; ")
}

func renderCatalog(defs []game.CharacterDefinition) {
	accent.Println("\n== CATALOG ==")
	fmt.Printf("%-12s %-4s %-16s %8s %-40s\n", "ID", "RAR", "NAME", "WEIGHT", "SKILLS")
	for _, d := range defs {
		mains := make([]string, 0, len(d.Skills))
		for main := range d.Skills {
			mains = append(mains, main)
		}
		sort.Strings(mains)
		parts := make([]string, 0, len(mains))
		for _, main := range mains {
			parts = append(parts, fmt.Sprintf("%s[%s]", main, strings.Join(d.Skills[main], ",")))
		}
		fmt.Printf("%-12s %-4s %-16s %8.1f %-40s\n",
			d.ID,
			colorizeRarity(d.Rarity),
			truncate(d.Name, 16),
			d.Weight,
			truncate(strings.Join(parts, " "), 40),
		)
	}
	fmt.Println()
}

func renderMarket(set *game.MarketSet) {
	accent.Println("\n== JOB BOARD ==")
	if len(set.Postings) == 0 {
		printInfo("The board is empty. Run `trp market --refresh`.")
		return
	}
	fmt.Printf("%-6s %-10s %-10s %6s %8s %6s\n", "JOB", "AUDIENCE", "ACT", "LEVEL", "PAY", "XP")
	for _, p := range set.Postings {
		fmt.Printf("%-6s %-10s %-10s %6d %8d %6d\n",
			p.JobID,
			p.Demand.MainSkillID,
			p.Demand.SubSkillID,
			p.Demand.MinLevel,
			p.Reward.Currency,
			p.Reward.XP,
		)
	}
	fmt.Println()
}

func renderWorkResult(res *game.WorkResult) {
	if !res.Matched {
		printWarn(fmt.Sprintf("No luck: the job wanted %s/%s lv%d+. Stamina left: %d.",
			res.Demand.MainSkillID, res.Demand.SubSkillID, res.Demand.MinLevel, res.Stamina))
		return
	}
	printSuccess(fmt.Sprintf("Done! +%d coins, +%d xp. Stamina left: %d.", res.Pay, res.XP, res.Stamina))
	if res.Girl.LevelsGained > 0 {
		printSuccess(fmt.Sprintf("She reached lv%d.", res.Girl.Level))
	}
	if res.SubSkill.LevelsGained > 0 {
		printInfo(fmt.Sprintf("%s is now lv%d.", res.Demand.SubSkillID, res.SubSkill.Level))
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
