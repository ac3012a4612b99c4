package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrInterrupted is returned when the user presses ctrl+c while waiting.
var ErrInterrupted = errors.New("interrupted")

// spinnerResult carries the outcome of the work back to the caller.
type spinnerResult struct {
	data any
	err  error
}

type workDoneMsg struct {
	result spinnerResult
}

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	done     bool
	result   spinnerResult
	workFunc func() spinnerResult
}

func newSpinnerModel(message string, workFunc func() spinnerResult) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorCyan)
	return spinnerModel{
		spinner:  s,
		message:  message,
		workFunc: workFunc,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.doWork())
}

func (m spinnerModel) doWork() tea.Cmd {
	return func() tea.Msg {
		return workDoneMsg{result: m.workFunc()}
	}
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.result = spinnerResult{err: ErrInterrupted}
			return m, tea.Quit
		}

	case workDoneMsg:
		m.done = true
		m.result = msg.result
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), DimStyle.Render(m.message+"..."))
}

// RunWithSpinnerSimple runs workFunc while a spinner with message is shown.
// Anything workFunc prints to the terminal will fight with the spinner, so
// callers buffer their output until it returns.
func RunWithSpinnerSimple[T any](message string, workFunc func() (T, error)) (T, error) {
	var zero T

	m := newSpinnerModel(message, func() spinnerResult {
		data, err := workFunc()
		return spinnerResult{data: data, err: err}
	})

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return zero, err
	}

	result := final.(spinnerModel).result
	if result.err != nil {
		return zero, result.err
	}
	data, _ := result.data.(T)
	return data, nil
}
