// Package bot is the chat gateway: a thin adapter that maps prefix
// commands from Discord messages onto the game service. The Discord user
// id is the player id, so no separate signup or token flow is needed
// here.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"troupe/internal/game"
)

type Bot struct {
	session *discordgo.Session
	game    *game.Service
	prefix  string
	log     *slog.Logger
}

func New(token, prefix string, gameSvc *game.Service, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	b := &Bot{
		session: session,
		game:    gameSvc,
		prefix:  prefix,
		log:     logger,
	}
	session.AddHandler(b.onMessage)
	return b, nil
}

func (b *Bot) Start() error {
	return b.session.Open()
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, b.prefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(m.Content, b.prefix))
	if len(fields) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reply := b.dispatch(ctx, m.Author.ID, fields[0], fields[1:])
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.log.Error("send reply failed", "channel", m.ChannelID, "err", err)
	}
}

func (b *Bot) dispatch(ctx context.Context, playerID, cmd string, args []string) string {
	switch strings.ToLower(cmd) {
	case "start":
		return b.cmdStart(ctx, playerID)
	case "profile":
		return b.cmdProfile(ctx, playerID)
	case "roll":
		return b.cmdRoll(ctx, playerID, args)
	case "girls", "collection":
		return b.cmdGirls(ctx, playerID)
	case "market":
		return b.cmdMarket(ctx, playerID, args)
	case "work":
		return b.cmdWork(ctx, playerID, args)
	case "upgrade":
		return b.cmdUpgrade(ctx, playerID, args)
	case "scrap", "dismantle":
		return b.cmdDismantle(ctx, playerID, args)
	case "help":
		return b.cmdHelp()
	default:
		return ""
	}
}

func (b *Bot) cmdStart(ctx context.Context, playerID string) string {
	p, err := b.game.StartProfile(ctx, playerID)
	if err != nil {
		return friendlyError(err)
	}
	starter := p.Collection[0]
	return fmt.Sprintf("Troupe founded! You start with %d coins, %d stamina, and **%s** (%s) at your side. Try `%sroll` or `%smarket`.",
		p.Currency, p.Stamina, starter.Name, starter.Rarity, b.prefix, b.prefix)
}

func (b *Bot) cmdProfile(ctx context.Context, playerID string) string {
	p, err := b.game.Profile(ctx, playerID)
	if err != nil {
		return friendlyError(err)
	}
	return fmt.Sprintf("**Profile**\nCoins: %d\nStamina: %d/%d\nGirls: %d",
		p.Currency, p.Stamina, b.game.Balance().StaminaCap, len(p.Collection))
}

func (b *Bot) cmdRoll(ctx context.Context, playerID string, args []string) string {
	times := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > 10 {
			return "Usage: roll [1-10]"
		}
		times = n
	}
	res, err := b.game.Roll(ctx, playerID, times)
	if err != nil {
		return friendlyError(err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Spent %d coins:\n", res.Cost)
	for _, g := range res.Pulls {
		fmt.Fprintf(&sb, "- [%s] **%s** (`%s`)\n", g.Rarity, g.Name, g.UID)
	}
	fmt.Fprintf(&sb, "Coins left: %d", res.Currency)
	return sb.String()
}

func (b *Bot) cmdGirls(ctx context.Context, playerID string) string {
	girls, err := b.game.Collection(ctx, playerID)
	if err != nil {
		return friendlyError(err)
	}
	if len(girls) == 0 {
		return "Your troupe is empty. Try a roll."
	}
	var sb strings.Builder
	sb.WriteString("**Your troupe**\n")
	for _, g := range girls {
		fmt.Fprintf(&sb, "- `%s` [%s] %s lv%d", g.UID, g.Rarity, g.Name, g.Level)
		mains := make([]string, 0, len(g.Skills))
		for main := range g.Skills {
			mains = append(mains, main)
		}
		sort.Strings(mains)
		parts := make([]string, 0, len(mains))
		for _, main := range mains {
			parts = append(parts, fmt.Sprintf("%s lv%d", main, g.Skills[main].Level))
		}
		fmt.Fprintf(&sb, " (%s)\n", strings.Join(parts, ", "))
	}
	return sb.String()
}

func (b *Bot) cmdMarket(ctx context.Context, playerID string, args []string) string {
	var (
		set *game.MarketSet
		err error
	)
	if len(args) > 0 && (args[0] == "new" || args[0] == "refresh") {
		set, err = b.game.RegenerateMarket(ctx, playerID)
	} else {
		set, err = b.game.Market(ctx, playerID)
	}
	if err != nil {
		return friendlyError(err)
	}
	if len(set.Postings) == 0 {
		return fmt.Sprintf("The board is empty. `%smarket new` posts fresh jobs.", b.prefix)
	}
	var sb strings.Builder
	sb.WriteString("**Job board**\n")
	for _, p := range set.Postings {
		fmt.Fprintf(&sb, "- `%s` %s/%s lv%d+ pays %d coins, %d xp\n",
			p.JobID, p.Demand.MainSkillID, p.Demand.SubSkillID, p.Demand.MinLevel,
			p.Reward.Currency, p.Reward.XP)
	}
	fmt.Fprintf(&sb, "Send someone with `%swork <job> <girl-uid>`.", b.prefix)
	return sb.String()
}

func (b *Bot) cmdWork(ctx context.Context, playerID string, args []string) string {
	if len(args) != 2 {
		return "Usage: work <job-id> <girl-uid>"
	}
	res, err := b.game.Work(ctx, playerID, args[0], args[1])
	if err != nil {
		return friendlyError(err)
	}
	if !res.Matched {
		return fmt.Sprintf("She couldn't land the gig: it wanted %s/%s lv%d+. Stamina left: %d.",
			res.Demand.MainSkillID, res.Demand.SubSkillID, res.Demand.MinLevel, res.Stamina)
	}
	msg := fmt.Sprintf("Gig done! +%d coins, +%d xp.", res.Pay, res.XP)
	if res.Girl.LevelsGained > 0 {
		msg += fmt.Sprintf(" She reached lv%d!", res.Girl.Level)
	}
	return msg + fmt.Sprintf(" Stamina left: %d.", res.Stamina)
}

func (b *Bot) cmdUpgrade(ctx context.Context, playerID string, args []string) string {
	if len(args) == 0 {
		return "Usage: upgrade <girl-uid> [main-skill [sub-skill]]"
	}
	tier := game.TierGirl
	var mainID, subID string
	switch len(args) {
	case 1:
	case 2:
		tier, mainID = game.TierSkill, strings.ToUpper(args[1])
	default:
		tier, mainID, subID = game.TierSubSkill, strings.ToUpper(args[1]), strings.ToUpper(args[2])
	}
	res, err := b.game.Upgrade(ctx, playerID, args[0], tier, mainID, subID)
	if err != nil {
		return friendlyError(err)
	}
	return fmt.Sprintf("Upgraded to lv%d for %d coins. Coins left: %d.",
		res.Report.Level, res.Cost, res.Currency)
}

func (b *Bot) cmdDismantle(ctx context.Context, playerID string, args []string) string {
	if len(args) != 1 {
		return "Usage: scrap <girl-uid>"
	}
	res, err := b.game.Dismantle(ctx, playerID, args[0])
	if err != nil {
		return friendlyError(err)
	}
	return fmt.Sprintf("She left the troupe. +%d coins, %d total.", res.Payout, res.Currency)
}

func (b *Bot) cmdHelp() string {
	return strings.Join([]string{
		"**Commands**",
		"`start` found your troupe",
		"`profile` coins and stamina",
		"`roll [n]` draw new girls",
		"`girls` list your troupe",
		"`market [new]` show or refresh the job board",
		"`work <job> <girl-uid>` send a girl to a job",
		"`upgrade <girl-uid> [main [sub]]` buy a level",
		"`scrap <girl-uid>` dismantle for coins",
	}, "\n")
}

func friendlyError(err error) string {
	switch {
	case errors.Is(err, game.ErrProfileNotFound):
		return "You don't have a troupe yet. Use `start` first."
	case errors.Is(err, game.ErrProfileExists):
		return "You already run a troupe."
	case errors.Is(err, game.ErrInsufficientFunds):
		return "Not enough coins."
	case errors.Is(err, game.ErrInsufficientStamina):
		return "Out of stamina. Come back after a rest."
	case errors.Is(err, game.ErrUnknownJob):
		return "No such job on the board."
	case errors.Is(err, game.ErrUnknownGirl):
		return "No girl with that uid in your troupe."
	case errors.Is(err, game.ErrUnknownSkill):
		return "She doesn't have that skill."
	case errors.Is(err, game.ErrLevelCapped):
		return "Already at the level cap."
	default:
		return "Something went wrong, try again."
	}
}
