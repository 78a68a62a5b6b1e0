package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

var errNoTerminal = errors.New("--ask-password requires an interactive terminal")

// promptPassword asks for the database password without echoing it.
func promptPassword(user string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errNoTerminal
	}

	title := "Database password"
	if user != "" {
		title = fmt.Sprintf("Password for %s", user)
	}

	var password string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&password).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", fmt.Errorf("password prompt cancelled")
		}
		return "", fmt.Errorf("password prompt: %w", err)
	}
	return password, nil
}

// ResolvePassword prompts for the password when --ask-password is set.
func (f *Flags) ResolvePassword() error {
	if !f.AskPassword || f.Config == nil {
		return nil
	}

	password, err := promptPassword(f.Config.Database.User)
	if err != nil {
		return err
	}
	f.Config.Database.Password = password
	return nil
}
