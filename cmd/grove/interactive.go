package main

import (
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle  = lipgloss.NewStyle().Bold(true)
	problemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

var errPromptAborted = fmt.Errorf("aborted")

// treeEntry is one tree collected during interactive init.
type treeEntry struct {
	Name string
	URL  string
	Path string
}

// inputModel wraps a textinput with a prompt line and inline
// validation; enter is rejected while the value fails validation.
type inputModel struct {
	prompt  string
	input   textinput.Model
	check   func(string) error
	problem string
	done    bool
	aborted bool
}

func newInputModel(prompt, placeholder string, check func(string) error) inputModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	return inputModel{prompt: prompt, input: ti, check: check}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.check != nil {
				if err := m.check(m.input.Value()); err != nil {
					m.problem = err.Error()
					return m, nil
				}
			}
			m.done = true
			return m, tea.Quit
		}
	}
	m.problem = ""
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done {
		return ""
	}
	view := promptStyle.Render(m.prompt) + "\n" + m.input.View() + "\n"
	if m.problem != "" {
		view += problemStyle.Render(m.problem) + "\n"
	}
	return view
}

// confirmModel is a minimal yes/no prompt. Anything other than y
// answers no; esc aborts.
type confirmModel struct {
	prompt  string
	yes     bool
	done    bool
	aborted bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.aborted = true
	case tea.KeyEnter:
		m.done = true
	case tea.KeyRunes:
		m.yes = len(key.Runes) == 1 && (key.Runes[0] == 'y' || key.Runes[0] == 'Y')
		m.done = true
	default:
		return m, nil
	}
	return m, tea.Quit
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	return promptStyle.Render(m.prompt) + " [y/N] "
}

func promptInput(prompt, placeholder string, check func(string) error) (string, error) {
	out, err := tea.NewProgram(newInputModel(prompt, placeholder, check)).Run()
	if err != nil {
		return "", err
	}
	m := out.(inputModel)
	if m.aborted {
		return "", errPromptAborted
	}
	return strings.TrimSpace(m.input.Value()), nil
}

func promptConfirm(prompt string) (bool, error) {
	out, err := tea.NewProgram(confirmModel{prompt: prompt}).Run()
	if err != nil {
		return false, err
	}
	m := out.(confirmModel)
	if m.aborted {
		return false, errPromptAborted
	}
	return m.yes, nil
}

// treeNameFromURL extracts a tree name from a Git URL. Handles both SSH
// (git@host:org/repo.git) and HTTPS (https://host/org/repo.git).
func treeNameFromURL(url string) string {
	url = strings.TrimRight(url, "/")
	if idx := strings.LastIndex(url, ":"); idx != -1 && !strings.Contains(url, "://") {
		url = url[idx+1:]
	}
	return strings.TrimSuffix(path.Base(url), ".git")
}

func validTreeName(name string, seen map[string]bool) error {
	if name == "" {
		return fmt.Errorf("tree name is required")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid tree name %q", name)
	}
	if strings.ContainsAny(name, "/\\ ") {
		return fmt.Errorf("tree name must not contain separators or spaces")
	}
	if seen[name] {
		return fmt.Errorf("tree %q is already added", name)
	}
	return nil
}

// interactiveAddTrees collects tree entries until the user stops.
// existing names are rejected as duplicates.
func interactiveAddTrees(existing map[string]bool) ([]treeEntry, error) {
	seen := make(map[string]bool)
	for name := range existing {
		seen[name] = true
	}

	var trees []treeEntry
	for {
		url, err := promptInput(
			"Git repository URL (empty for a local tree)",
			"git@example.com:org/repo.git",
			func(s string) error {
				s = strings.TrimSpace(s)
				if s == "" {
					return nil
				}
				return validTreeName(treeNameFromURL(s), seen)
			},
		)
		if err != nil {
			return nil, err
		}

		name := treeNameFromURL(url)
		if url == "" {
			name, err = promptInput("Tree name", "my-project", func(s string) error {
				return validTreeName(strings.TrimSpace(s), seen)
			})
			if err != nil {
				return nil, err
			}
		}

		treePath, err := promptInput("Path (relative to grove.root)", name, nil)
		if err != nil {
			return nil, err
		}
		if treePath == "" {
			treePath = name
		}

		seen[name] = true
		trees = append(trees, treeEntry{Name: name, URL: url, Path: treePath})
		fmt.Printf("  added %s (%s)\n", name, treePath)

		more, err := promptConfirm("Add another tree?")
		if err != nil {
			return nil, err
		}
		if !more {
			return trees, nil
		}
	}
}
