package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	cl "troupe/internal/cli"
	"troupe/internal/config"
	"troupe/internal/game"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "trp",
		Short:        "Troupe CLI game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newStartCmd(&apiBase),
		newLoginCmd(),
		newLogoutCmd(),
		newProfileCmd(&apiBase),
		newRollCmd(&apiBase),
		newGirlsCmd(&apiBase),
		newCatalogCmd(&apiBase),
		newMarketCmd(&apiBase),
		newWorkCmd(&apiBase),
		newUpgradeCmd(&apiBase),
		newScrapCmd(&apiBase),
		newBrowseCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func loadedSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, err
	}
	return sess, nil
}

func newStartCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Found a new troupe and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.Start(ctx, "")
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				PlayerID: out.Profile.PlayerID,
				Token:    out.Token,
			}); err != nil {
				return err
			}
			printSuccess("Troupe founded. Session saved.")
			printWarn("Keep your token safe, it is shown only once:")
			fmt.Println(out.Token)
			renderProfile(out.Profile)
			return nil
		},
	}
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save an existing token as the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print("Token: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return err
			}
			token := strings.TrimSpace(string(raw))
			if token == "" {
				return fmt.Errorf("token is required")
			}
			playerID := token
			if i := strings.LastIndex(token, "."); i > 0 {
				playerID = token[:i]
			}
			if err := cl.SaveSession(cl.Session{PlayerID: playerID, Token: token}); err != nil {
				return err
			}
			printSuccess("Session saved.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newProfileCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show coins, stamina, and troupe size",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadedSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			p, err := newClient(apiBase).Profile(ctx, sess.Token)
			if err != nil {
				return err
			}
			renderProfile(p)
			return nil
		},
	}
}

func newRollCmd(apiBase *string) *cobra.Command {
	var times int
	cmd := &cobra.Command{
		Use:   "roll",
		Short: "Spend coins on gacha draws",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadedSession()
			if err != nil {
				return err
			}
			if times < 1 || times > 10 {
				return fmt.Errorf("-n must be between 1 and 10")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := newClient(apiBase).Roll(ctx, sess.Token, times)
			if err != nil {
				return err
			}
			renderGachaResult(res)
			return nil
		},
	}
	cmd.Flags().IntVarP(&times, "times", "n", 1, "number of draws")
	return cmd
}

func newGirlsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "girls",
		Short:   "List your troupe",
		Aliases: []string{"collection"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadedSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			girls, err := newClient(apiBase).Collection(ctx, sess.Token)
			if err != nil {
				return err
			}
			renderCollection(girls)
			return nil
		},
	}
}

func newCatalogCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List every character in the gacha pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadedSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			defs, err := newClient(apiBase).Catalog(ctx, sess.Token)
			if err != nil {
				return err
			}
			renderCatalog(defs)
			return nil
		},
	}
}

func newMarketCmd(apiBase *string) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Show the job board",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadedSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			var set *game.MarketSet
			if refresh {
				set, err = client.RegenerateMarket(ctx, sess.Token)
			} else {
				set, err = client.Market(ctx, sess.Token)
			}
			if err != nil {
				return err
			}
			renderMarket(set)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "replace the board with fresh postings")
	return cmd
}

func newWorkCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "work JOB GIRL_UID",
		Short: "Send a girl to a job posting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadedSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := newClient(apiBase).Work(ctx, sess.Token, args[0], args[1])
			if err != nil {
				return err
			}
			renderWorkResult(res)
			return nil
		},
	}
}

func newUpgradeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade GIRL_UID [MAIN_SKILL [SUB_SKILL]]",
		Short: "Buy the next level for a girl, a skill, or a sub-skill",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadedSession()
			if err != nil {
				return err
			}
			tier := game.TierGirl
			var mainID, subID string
			switch len(args) {
			case 2:
				tier, mainID = game.TierSkill, strings.ToUpper(args[1])
			case 3:
				tier, mainID, subID = game.TierSubSkill, strings.ToUpper(args[1]), strings.ToUpper(args[2])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := newClient(apiBase).Upgrade(ctx, sess.Token, args[0], tier, mainID, subID)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Upgraded %s to lv%d for %d coins. Coins left: %d.",
				describeTier(res), res.Report.Level, res.Cost, res.Currency))
			return nil
		},
	}
}

func newScrapCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scrap GIRL_UID",
		Short: "Dismantle a girl for coins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadedSession()
			if err != nil {
				return err
			}
			confirm, err := promptChoice(fmt.Sprintf("Dismantle %s", args[0]), []string{"yes", "no"}, "no")
			if err != nil {
				return err
			}
			if confirm != "yes" {
				printInfo("Kept her.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := newClient(apiBase).Dismantle(ctx, sess.Token, args[0])
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Dismantled for %d coins. Total: %d.", res.Payout, res.Currency))
			return nil
		},
	}
}

func describeTier(res *game.UpgradeResult) string {
	switch res.Tier {
	case game.TierSkill:
		return fmt.Sprintf("%s %s", res.GirlUID, res.MainSkillID)
	case game.TierSubSkill:
		return fmt.Sprintf("%s %s/%s", res.GirlUID, res.MainSkillID, res.SubSkillID)
	default:
		return res.GirlUID
	}
}
