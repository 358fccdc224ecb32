package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"eraforge/internal/genesis"
	"eraforge/internal/metrics"
	"eraforge/internal/oracle"
	"eraforge/internal/session"
	"eraforge/internal/turn"
)

// Game is the session surface the terminal front end drives.
type Game interface {
	Start(userID string) (session.Session, error)
	CreateWorld(ctx context.Context, userID string) (*genesis.World, error)
	CreateCharacter(ctx context.Context, userID, details string) (*genesis.Character, error)
	BeginInitiatives(userID string) (session.Session, error)
	SubmitInitiative(ctx context.Context, userID, text string) (*turn.Result, error)
}

type phase int

const (
	phaseWelcome phase = iota
	phaseLoading
	phaseCharacter
	phasePlaying
)

type model struct {
	ctx       context.Context
	game      Game
	user      string
	phase     phase
	textInput textinput.Model
	viewport  viewport.Model
	gameLog   string
	width     int
	height    int

	year       int
	balance    decimal.Decimal
	multiplier decimal.Decimal
	metrics    metrics.Snapshot
	funded     bool
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	newsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87AFD7")).
			Italic(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D75F5F"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)
)

func newModel(ctx context.Context, game Game, user string) model {
	ti := textinput.New()
	ti.Placeholder = "Press Enter to forge a world..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	return model{
		ctx:       ctx,
		game:      game,
		user:      user,
		phase:     phaseWelcome,
		textInput: ti,
		viewport:  viewport.New(80, 20),
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

type worldCreatedMsg struct {
	world *genesis.World
	err   error
}

type characterCreatedMsg struct {
	character *genesis.Character
	err       error
}

type turnResolvedMsg struct {
	result *turn.Result
	err    error
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.logWidth()
		m.viewport.Height = max(msg.Height-6, 5)
		m.refreshLog()

	case worldCreatedMsg:
		if msg.err != nil {
			return m.fail(phaseWelcome, msg.err), nil
		}
		w := msg.world
		m.year = w.Year
		m.balance = w.Account.Balance
		m.multiplier = w.Account.Multiplier
		m.metrics = w.Metrics
		m.funded = true
		m.appendLog(gameStyle.Bold(true).Render(oracle.Era(w.Year)))
		m.appendLog(gameStyle.Width(m.logWidth()).Render(w.Description))
		m.appendLog(helpStyle.Render("Describe your character (name, age, trade) or leave empty for anyone."))
		m.phase = phaseCharacter
		m.textInput.Placeholder = "Your character..."
		return m, nil

	case characterCreatedMsg:
		if msg.err != nil {
			return m.fail(phaseCharacter, msg.err), nil
		}
		m.appendLog(gameStyle.Width(m.logWidth()).Render("Your character: " + msg.character.Description))
		if msg.character.News != "" {
			m.appendLog(newsStyle.Width(m.logWidth()).Render(msg.character.News))
		}
		if _, err := m.game.BeginInitiatives(m.user); err != nil {
			return m.fail(phaseCharacter, err), nil
		}
		m.appendLog(helpStyle.Render("What initiative will you put forward?"))
		m.phase = phasePlaying
		m.textInput.Placeholder = "Your initiative..."
		return m, nil

	case turnResolvedMsg:
		if msg.err != nil {
			return m.fail(phasePlaying, msg.err), nil
		}
		res := msg.result
		m.year = res.Year
		m.balance = res.Balance
		m.multiplier = res.Multiplier
		m.metrics = res.Metrics
		m.appendLog(gameStyle.Width(m.logWidth()).Render(res.Narrative))
		if res.News != "" {
			m.appendLog(newsStyle.Width(m.logWidth()).Render(oracle.Era(res.Year) + ": " + res.News))
		}
		m.phase = phasePlaying
		return m, nil
	}

	if m.phase != phaseLoading {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	if m.phase == phaseLoading {
		return m, nil
	}
	text := strings.TrimSpace(m.textInput.Value())
	m.textInput.Reset()

	switch text {
	case "/quit":
		return m, tea.Quit
	case "/restart":
		if _, err := m.game.Start(m.user); err != nil {
			return m.fail(m.phase, err), nil
		}
		m.gameLog = ""
		m.funded = false
		m.phase = phaseWelcome
		m.textInput.Placeholder = "Press Enter to forge a world..."
		m.refreshLog()
		return m, nil
	}

	switch m.phase {
	case phaseWelcome:
		m.phase = phaseLoading
		return m, m.createWorld()
	case phaseCharacter:
		m.phase = phaseLoading
		return m, m.createCharacter(text)
	case phasePlaying:
		if text == "" {
			return m, nil
		}
		m.appendLog(userStyle.Width(m.logWidth()).Render("> " + text))
		m.phase = phaseLoading
		return m, m.submitInitiative(text)
	}
	return m, nil
}

// fail shows the player-facing message and returns to the phase the
// failed action started from.
func (m model) fail(back phase, err error) model {
	m.appendLog(failStyle.Width(m.logWidth()).Render(session.UserMessage(err)))
	m.phase = back
	return m
}

func (m *model) appendLog(block string) {
	if m.gameLog != "" {
		m.gameLog += "\n\n"
	}
	m.gameLog += block
	m.refreshLog()
}

func (m *model) refreshLog() {
	m.viewport.SetContent(m.gameLog)
	m.viewport.GotoBottom()
}

func (m model) logWidth() int {
	if m.width == 0 {
		return 80
	}
	return int(float64(m.width) * 0.7)
}

func (m model) View() string {
	var s string

	switch m.phase {
	case phaseWelcome:
		s = fmt.Sprintf(
			"Welcome to eraforge!\n\n%s\n\n%s",
			"A world in a random era awaits. Press Enter to begin.",
			m.textInput.View(),
		)
		if m.gameLog != "" {
			s = m.viewport.View() + "\n\n" + s
		}

	case phaseLoading:
		s = lipgloss.JoinHorizontal(lipgloss.Top, m.viewport.View(), m.renderState()) +
			"\n\n  The oracle is deliberating... please wait.\n"

	default:
		mainView := lipgloss.JoinHorizontal(lipgloss.Top, m.viewport.View(), m.renderState())
		help := helpStyle.Render("Commands: /restart, /quit, or type your answer.")
		s = lipgloss.JoinVertical(lipgloss.Left,
			mainView,
			"\n"+m.textInput.View(),
			"\n"+help,
		)
	}

	return "\n" + s + "\n"
}

func (m model) renderState() string {
	if !m.funded {
		return ""
	}

	year := titleStyle.Render("YEAR") + "\n" + oracle.Era(m.year) + "\n\n"

	acct := fmt.Sprintf("Balance: %s\nMultiplier: %s\nBudget: %s\n\n",
		m.balance.StringFixed(2),
		m.multiplier.String(),
		m.balance.Mul(m.multiplier).StringFixed(2),
	)

	var b strings.Builder
	for _, key := range metrics.Keys() {
		v, _ := m.metrics.Get(key)
		fmt.Fprintf(&b, "%s: %d\n", metricLabel(key), v)
	}

	content := year + titleStyle.Render("TREASURY") + "\n" + acct + titleStyle.Render("METRICS") + "\n" + b.String()
	stateWidth := int(float64(m.width) * 0.25)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(content)
}

func metricLabel(key string) string {
	label := strings.TrimSuffix(key, "_metric")
	return strings.ReplaceAll(label, "_", " ")
}

func (m model) createWorld() tea.Cmd {
	return func() tea.Msg {
		w, err := m.game.CreateWorld(m.ctx, m.user)
		return worldCreatedMsg{world: w, err: err}
	}
}

func (m model) createCharacter(details string) tea.Cmd {
	return func() tea.Msg {
		c, err := m.game.CreateCharacter(m.ctx, m.user, details)
		return characterCreatedMsg{character: c, err: err}
	}
}

func (m model) submitInitiative(text string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.game.SubmitInitiative(m.ctx, m.user, text)
		return turnResolvedMsg{result: res, err: err}
	}
}

// Run starts a fresh session for user and blocks until the player quits.
func Run(ctx context.Context, game Game, user string) error {
	if _, err := game.Start(user); err != nil {
		return err
	}
	p := tea.NewProgram(newModel(ctx, game, user), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
