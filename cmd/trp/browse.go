package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	cl "troupe/internal/cli"
	"troupe/internal/game"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newBrowseCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Interactive job board and troupe browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadedSession()
			if err != nil {
				return err
			}
			client := newClient(apiBase)
			m, err := newBrowseModel(client, sess.Token)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}

const (
	tabJobs = iota
	tabGirls
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	tabStyle    = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("8"))
	activeTab   = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("14")).Underline(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tableBorder = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("8"))
)

type browseModel struct {
	client *cl.Client
	token  string

	tab       int
	jobs      table.Model
	girls     table.Model
	market    *game.MarketSet
	troupe    []*game.OwnedGirl
	activeUID string
	status    string
	errMsg    string
}

type refreshMsg struct {
	market *game.MarketSet
	troupe []*game.OwnedGirl
	err    error
}

type workMsg struct {
	res *game.WorkResult
	err error
}

func newBrowseModel(client *cl.Client, token string) (*browseModel, error) {
	jobs := table.New(
		table.WithColumns([]table.Column{
			{Title: "JOB", Width: 6},
			{Title: "AUDIENCE", Width: 10},
			{Title: "ACT", Width: 10},
			{Title: "LV", Width: 4},
			{Title: "PAY", Width: 7},
			{Title: "XP", Width: 5},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	girls := table.New(
		table.WithColumns([]table.Column{
			{Title: "UID", Width: 14},
			{Title: "RAR", Width: 4},
			{Title: "NAME", Width: 16},
			{Title: "LV", Width: 4},
			{Title: "SKILLS", Width: 36},
		}),
		table.WithHeight(10),
	)
	m := &browseModel{
		client: client,
		token:  token,
		jobs:   jobs,
		girls:  girls,
	}
	return m, nil
}

func (m *browseModel) Init() tea.Cmd {
	return m.refreshCmd(false)
}

func (m *browseModel) refreshCmd(regenerate bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var (
			market *game.MarketSet
			err    error
		)
		if regenerate {
			market, err = m.client.RegenerateMarket(ctx, m.token)
		} else {
			market, err = m.client.Market(ctx, m.token)
		}
		if err != nil {
			return refreshMsg{err: err}
		}
		troupe, err := m.client.Collection(ctx, m.token)
		if err != nil {
			return refreshMsg{err: err}
		}
		return refreshMsg{market: market, troupe: troupe}
	}
}

func (m *browseModel) workCmd(jobID, girlUID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		res, err := m.client.Work(ctx, m.token, jobID, girlUID)
		return workMsg{res: res, err: err}
	}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			if m.tab == tabJobs {
				m.tab = tabGirls
				m.jobs.Blur()
				m.girls.Focus()
			} else {
				m.tab = tabJobs
				m.girls.Blur()
				m.jobs.Focus()
			}
			return m, nil
		case "r":
			m.status = "Refreshing the board..."
			m.errMsg = ""
			return m, m.refreshCmd(true)
		case "enter":
			if m.tab == tabGirls {
				row := m.girls.SelectedRow()
				if row != nil {
					m.activeUID = row[0]
					m.status = fmt.Sprintf("Active girl: %s", m.activeUID)
				}
				return m, nil
			}
			row := m.jobs.SelectedRow()
			if row == nil {
				return m, nil
			}
			if m.activeUID == "" {
				m.errMsg = "Pick a girl first (tab, then enter on a row)."
				return m, nil
			}
			m.status = fmt.Sprintf("Sending %s to %s...", m.activeUID, row[0])
			m.errMsg = ""
			return m, m.workCmd(row[0], m.activeUID)
		}
	case refreshMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.market = msg.market
		m.troupe = msg.troupe
		m.fillTables()
		if m.status == "" {
			m.status = "Loaded."
		}
		return m, nil
	case workMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			m.status = ""
			return m, m.refreshCmd(false)
		}
		if msg.res.Matched {
			m.status = fmt.Sprintf("%s landed %s: +%d coins, +%d xp, stamina %d",
				m.activeUID, msg.res.JobID, msg.res.Pay, msg.res.XP, msg.res.Stamina)
		} else {
			m.status = fmt.Sprintf("%s missed %s (wanted %s/%s lv%d+), stamina %d",
				m.activeUID, msg.res.JobID,
				msg.res.Demand.MainSkillID, msg.res.Demand.SubSkillID, msg.res.Demand.MinLevel,
				msg.res.Stamina)
		}
		m.errMsg = ""
		return m, m.refreshCmd(false)
	}
	var cmd tea.Cmd
	if m.tab == tabJobs {
		m.jobs, cmd = m.jobs.Update(msg)
	} else {
		m.girls, cmd = m.girls.Update(msg)
	}
	return m, cmd
}

func (m *browseModel) fillTables() {
	jobRows := make([]table.Row, 0, len(m.market.Postings))
	for _, p := range m.market.Postings {
		jobRows = append(jobRows, table.Row{
			p.JobID,
			p.Demand.MainSkillID,
			p.Demand.SubSkillID,
			strconv.Itoa(p.Demand.MinLevel),
			strconv.FormatInt(p.Reward.Currency, 10),
			strconv.Itoa(p.Reward.XP),
		})
	}
	m.jobs.SetRows(jobRows)

	girlRows := make([]table.Row, 0, len(m.troupe))
	for _, g := range m.troupe {
		girlRows = append(girlRows, table.Row{
			g.UID,
			string(g.Rarity),
			g.Name,
			strconv.Itoa(g.Level),
			truncate(skillSummary(g), 36),
		})
	}
	m.girls.SetRows(girlRows)
}

func (m *browseModel) View() string {
	var tabs string
	if m.tab == tabJobs {
		tabs = activeTab.Render("Jobs") + tabStyle.Render("Troupe")
	} else {
		tabs = tabStyle.Render("Jobs") + activeTab.Render("Troupe")
	}
	header := titleStyle.Render("troupe browser") + "  " + tabs

	var body string
	if m.tab == tabJobs {
		body = tableBorder.Render(m.jobs.View())
	} else {
		body = tableBorder.Render(m.girls.View())
	}

	lines := header + "\n" + body + "\n"
	if m.activeUID != "" {
		lines += hintStyle.Render("active girl: "+m.activeUID) + "\n"
	}
	if m.status != "" {
		lines += statusStyle.Render(m.status) + "\n"
	}
	if m.errMsg != "" {
		lines += errStyle.Render(m.errMsg) + "\n"
	}
	lines += hintStyle.Render("tab switch · enter select/send · r refresh board · q quit")
	return lines
}
