package prompt

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrAborted is returned when the operator quits the prompt instead of answering.
var ErrAborted = errors.New("prompt aborted")

const noneOption = -1

// Prompter asks the operator to pick one of options. ok is false when the
// operator explicitly picked none of them. suggested is preselected.
type Prompter interface {
	Select(ctx context.Context, title string, options []string, suggested int) (index int, ok bool, err error)
}

// Terminal prompts on the controlling terminal.
type Terminal struct{}

func (Terminal) Select(ctx context.Context, title string, options []string, suggested int) (int, bool, error) {
	choice := suggested
	if choice < 0 || choice >= len(options) {
		choice = 0
	}

	opts := make([]huh.Option[int], 0, len(options)+1)
	for i, label := range options {
		opts = append(opts, huh.NewOption(label, i))
	}
	opts = append(opts, huh.NewOption("None of these", noneOption))

	sel := huh.NewSelect[int]().
		Title(title).
		Options(opts...).
		Value(&choice)

	if err := huh.NewForm(huh.NewGroup(sel)).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return 0, false, ErrAborted
		}
		return 0, false, err
	}
	if choice == noneOption {
		return 0, false, nil
	}
	return choice, true, nil
}

// Decliner answers every prompt with "none", for unattended runs.
type Decliner struct{}

func (Decliner) Select(context.Context, string, []string, int) (int, bool, error) {
	return 0, false, nil
}

// ForMode returns the prompter for an interactive mode of "always", "never"
// or "auto". Auto prompts only when stdin is a terminal.
func ForMode(mode string) Prompter {
	switch mode {
	case "always":
		return Terminal{}
	case "never":
		return Decliner{}
	}
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return Terminal{}
	}
	return Decliner{}
}
