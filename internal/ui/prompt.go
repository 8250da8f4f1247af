package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/rileyhilliard/proxmon/internal/errors"
)

// errNoTTY is returned when a prompt is needed but stdin is not a terminal.
func errNoTTY(what string) error {
	return errors.New(errors.ErrInput,
		what+" needs an interactive terminal",
		"Pass the value with a flag, or --yes to skip confirmation")
}

// Confirm asks a yes/no question. It defaults to no.
func Confirm(title, description string) (bool, error) {
	if !IsTerminal(os.Stdin) {
		return false, errNoTTY("Confirmation")
	}
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrInput, "Prompt cancelled", "")
	}
	return ok, nil
}

// Input prompts for a single line of text.
func Input(title, placeholder string) (string, error) {
	if !IsTerminal(os.Stdin) {
		return "", errNoTTY(title)
	}
	var v string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Placeholder(placeholder).
				Value(&v),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrInput, "Prompt cancelled", "")
	}
	return strings.TrimSpace(v), nil
}

// Password prompts for a secret without echoing it.
func Password(title string) (string, error) {
	if !IsTerminal(os.Stdin) {
		return "", errNoTTY(title)
	}
	var v string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&v),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrInput, "Prompt cancelled", "")
	}
	return v, nil
}

// Select asks the user to pick one of options.
func Select(title string, options ...string) (string, error) {
	if !IsTerminal(os.Stdin) {
		return "", errNoTTY(title)
	}
	var v string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(huh.NewOptions(options...)...).
				Value(&v),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrInput, "Prompt cancelled", "")
	}
	return v, nil
}
