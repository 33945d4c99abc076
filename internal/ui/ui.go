package ui

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Logger is the package-level structured logger.
var Logger *log.Logger

// Styles — initialized in Init().
var (
	headerStyle  lipgloss.Style
	successStyle lipgloss.Style
	warningStyle lipgloss.Style
	errorStyle   lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
	promptStyle  lipgloss.Style
	accentStyle  lipgloss.Style
)

// Init sets up color detection, lipgloss styles, and the structured logger.
// Call this once at CLI startup.
func Init(noColorFlag bool) {
	noColor := noColorFlag || os.Getenv("NO_COLOR") != ""

	// Reset terminal to sane state. Some tools leave the terminal in raw
	// mode where \n doesn't include carriage return, corrupting output.
	SanitizeTerminal()

	// Pre-set dark background to prevent termenv OSC query that leaks ^[[I focus events
	lipgloss.SetHasDarkBackground(true)

	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	accentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))

	Logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})
	if noColor {
		Logger.SetStyles(log.DefaultStyles())
	}
}

// SanitizeTerminal resets the terminal to a sane state.
// This fixes display corruption when the terminal was left in raw mode
// (where \n doesn't reset cursor to column 0) by a previous process.
func SanitizeTerminal() {
	cmd := exec.Command("stty", "sane")
	cmd.Stdin = os.Stdin
	_ = cmd.Run()

	fmt.Fprint(os.Stderr, "\033[0m\r")
}

func Bold(s string) string   { return boldStyle.Render(s) }
func Dim(s string) string    { return dimStyle.Render(s) }
func Red(s string) string    { return errorStyle.Render(s) }
func Green(s string) string  { return successStyle.Render(s) }
func Yellow(s string) string { return warningStyle.Render(s) }

// CommandBanner renders a small forkline-branded banner for a command.
func CommandBanner(command string, subtitle string) {
	// Reset cursor to column 0 in case a prompt left us mid-line
	fmt.Fprint(os.Stderr, "\r")

	brand := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Render("forkline")

	cmdLine := accentStyle.Render(fmt.Sprintf("─── %s ───", strings.ToUpper(command)))

	content := fmt.Sprintf("%s\n%s", brand, cmdLine)
	if subtitle != "" {
		content += "\n" + dimStyle.Render(subtitle)
	}

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		PaddingLeft(1).
		PaddingRight(1).
		Render(content)

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, box)
	fmt.Fprintln(os.Stderr)
}

// Status prints a styled status message.
func Status(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", accentStyle.Render("▸"), msg)
}

// Warning prints a styled warning message.
func Warning(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", warningStyle.Render("⚠"), msg)
}

// Error prints a styled error message.
func Error(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("✗"), msg)
}

// Info prints a styled informational message.
func Info(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", accentStyle.Render("▸"), msg)
}

// Success prints a green check with a message.
func Success(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", successStyle.Render("✓"), msg)
}

// Detail prints an indented key-value detail line.
func Detail(key, value string) {
	label := dimStyle.Render(fmt.Sprintf("  %s", key))
	fmt.Fprintf(os.Stderr, "%s %s\n", label, value)
}

// KeyValue prints a bold key with a value, for structured output blocks.
func KeyValue(key, value string) {
	fmt.Fprintf(os.Stderr, "  %s  %s\n", boldStyle.Render(key), value)
}

// SectionHeader prints a styled section divider with a label.
func SectionHeader(label string) {
	line := headerStyle.Render(fmt.Sprintf("── %s ──", label))
	fmt.Fprintf(os.Stderr, "\n%s\n\n", line)
}

// EmptyState prints a styled message for empty results.
func EmptyState(msg string) {
	fmt.Fprintf(os.Stderr, "  %s\n", dimStyle.Render(msg))
}

// Progress prints a dimmed n/m progress line.
func Progress(index, total int, msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", dimStyle.Render(fmt.Sprintf("[%d/%d]", index, total)), msg)
}

// Table prints a formatted table with headers and rows.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, boldStyle.Render(strings.Join(headers, "\t")))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

// PressEnter blocks until the user hits enter. Used while a patch is being
// fixed up by hand in another terminal.
func PressEnter(prompt string) {
	fmt.Fprintf(os.Stderr, "%s ", promptStyle.Render(prompt))
	reader := bufio.NewReader(os.Stdin)
	_, _ = reader.ReadString('\n')
}

// =============================================================================
// Bubbletea-based interactive prompts
// =============================================================================

// confirmModel is a bubbletea model for y/n confirmation.
type confirmModel struct {
	prompt   string
	cursor   int // 0 = yes, 1 = no
	decided  bool
	accepted bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.accepted = true
			m.decided = true
			return m, tea.Quit
		case "n", "N":
			m.accepted = false
			m.decided = true
			return m, tea.Quit
		case "left", "h":
			m.cursor = 0
		case "right", "l":
			m.cursor = 1
		case "enter", " ":
			m.accepted = m.cursor == 0
			m.decided = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.accepted = false
			m.decided = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	yes := "  Yes  "
	no := "  No  "

	if m.cursor == 0 {
		yes = successStyle.Render("▸ Yes ")
		no = dimStyle.Render("  No  ")
	} else {
		yes = dimStyle.Render("  Yes ")
		no = errorStyle.Render("▸ No  ")
	}

	return fmt.Sprintf("%s\n\n  %s  %s\n\n%s",
		promptStyle.Render(m.prompt),
		yes, no,
		dimStyle.Render("  ←/→ to select • enter to confirm • y/n for quick select"))
}

// Confirm prompts the user with a yes/no question and returns the response.
func Confirm(prompt string) (bool, error) {
	m := confirmModel{prompt: prompt, cursor: 0}
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	fmt.Fprintln(os.Stderr) // newline after prompt
	return result.(confirmModel).accepted, nil
}

// resolveModel is a bubbletea model for the failed-patch decision.
type resolveModel struct {
	patch   string
	cursor  int
	decided bool
	result  string
}

var resolveOptions = []struct {
	key   string
	label string
	desc  string
}{
	{"s", "Skip", "Leave this file alone and continue"},
	{"r", "Retry", "Run the patch again"},
	{"m", "Manual", "I fixed the file by hand, count it as applied"},
	{"a", "Abort", "Stop the whole run"},
}

func (m resolveModel) Init() tea.Cmd { return nil }

func (m resolveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "s", "S":
			m.result = "skip"
			m.decided = true
			return m, tea.Quit
		case "r", "R":
			m.result = "retry"
			m.decided = true
			return m, tea.Quit
		case "m", "M":
			m.result = "manual"
			m.decided = true
			return m, tea.Quit
		case "a", "A":
			m.result = "abort"
			m.decided = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(resolveOptions)-1 {
				m.cursor++
			}
		case "enter", " ":
			m.result = strings.ToLower(resolveOptions[m.cursor].label)
			m.decided = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.result = "abort"
			m.decided = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m resolveModel) View() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(errorStyle.Render("✗") + " " + promptStyle.Render(fmt.Sprintf("Patch failed: %s", m.patch)))
	b.WriteString("\n\n")

	for i, opt := range resolveOptions {
		cursor := "  "
		if i == m.cursor {
			cursor = promptStyle.Render("▸ ")
		}

		key := dimStyle.Render(fmt.Sprintf("[%s]", opt.key))
		label := opt.label
		if i == m.cursor {
			label = boldStyle.Render(label)
		}

		b.WriteString(fmt.Sprintf("%s%s %s  %s\n", cursor, key, label, dimStyle.Render(opt.desc)))
	}

	b.WriteString(fmt.Sprintf("\n%s", dimStyle.Render("  ↑/↓ navigate • enter confirm • s/r/m/a quick select")))

	return b.String()
}

// ResolveFailure asks what to do about a patch that did not apply.
// Returns "skip", "retry", "manual", or "abort".
func ResolveFailure(patch string) (string, error) {
	m := resolveModel{patch: patch, cursor: 0}
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return "abort", err
	}
	fmt.Fprintln(os.Stderr) // newline after prompt
	return result.(resolveModel).result, nil
}

// selectModel is a bubbletea model for picking one option from a list.
type selectModel struct {
	title    string
	options  []string
	cursor   int
	canceled bool
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case "enter", " ":
			return m, tea.Quit
		case "ctrl+c", "esc", "q":
			m.canceled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m selectModel) View() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n  %s\n", boldStyle.Render(m.title)))
	b.WriteString(fmt.Sprintf("  %s\n\n", dimStyle.Render("↑/↓ navigate • enter select • esc cancel")))

	for i, opt := range m.options {
		cursor := "  "
		label := opt
		if i == m.cursor {
			cursor = promptStyle.Render("▸ ")
			label = boldStyle.Render(opt)
		}
		b.WriteString(fmt.Sprintf("%s%s\n", cursor, label))
	}

	return b.String()
}

// Select displays an interactive single-choice list. Returns the chosen
// index, or -1 when the user cancels.
func Select(title string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, nil
	}
	m := selectModel{title: title, options: options, cursor: 0}
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return -1, err
	}
	fmt.Fprintln(os.Stderr) // newline after prompt

	final := result.(selectModel)
	if final.canceled {
		return -1, nil
	}
	return final.cursor, nil
}

// inputModel is a bubbletea model for a single line of free text.
type inputModel struct {
	prompt   string
	value    []rune
	canceled bool
}

func (m inputModel) Init() tea.Cmd { return nil }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.canceled = true
			return m, tea.Quit
		case tea.KeyBackspace:
			if len(m.value) > 0 {
				m.value = m.value[:len(m.value)-1]
			}
		case tea.KeyRunes, tea.KeySpace:
			m.value = append(m.value, msg.Runes...)
		}
	}
	return m, nil
}

func (m inputModel) View() string {
	return fmt.Sprintf("%s %s%s\n%s",
		promptStyle.Render(m.prompt),
		string(m.value),
		boldStyle.Render("▌"),
		dimStyle.Render("  enter to accept • esc to cancel"))
}

// Input prompts for a single line of text. Returns the empty string when
// the user cancels.
func Input(prompt string) (string, error) {
	m := inputModel{prompt: prompt}
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr) // newline after prompt

	final := result.(inputModel)
	if final.canceled {
		return "", nil
	}
	return strings.TrimSpace(string(final.value)), nil
}

// Spinner displays an animated spinner with a message on stderr.
// Call Stop() to clear it. Stop() is safe to call multiple times.
type Spinner struct {
	msg      string
	stop     chan struct{}
	done     sync.WaitGroup
	stopOnce sync.Once
}

// NewSpinner starts a spinner with the given message.
func NewSpinner(msg string) *Spinner {
	s := &Spinner{
		msg:  msg,
		stop: make(chan struct{}),
	}
	s.done.Add(1)
	go s.run()
	return s
}

func (s *Spinner) run() {
	defer s.done.Done()
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	i := 0
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	// Render first frame immediately so spinner is visible even if stopped quickly
	frame := accentStyle.Render(frames[0])
	fmt.Fprintf(os.Stderr, "\r%s %s", frame, dimStyle.Render(s.msg))
	i++

	for {
		select {
		case <-s.stop:
			fmt.Fprintf(os.Stderr, "\r\033[K")
			return
		case <-ticker.C:
			frame := accentStyle.Render(frames[i%len(frames)])
			fmt.Fprintf(os.Stderr, "\r%s %s", frame, dimStyle.Render(s.msg))
			i++
		}
	}
}

// Stop halts the spinner and clears its line.
// Safe to call multiple times.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.done.Wait()
}
