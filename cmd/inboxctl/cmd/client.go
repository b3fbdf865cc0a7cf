package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/wesm/inboxctl/internal/compose"
	"github.com/wesm/inboxctl/internal/contacts"
	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mailbox"
)

// errNeedsConfirmation is returned when a prompt cannot be shown and --yes
// was not given.
var errNeedsConfirmation = errors.New("confirmation required: rerun with --yes or from a terminal")

// client bundles the controllers a command works with.
type client struct {
	gw       *gateway.Client
	user     mail.User
	mailbox  *mailbox.Controller
	contacts *contacts.Directory
	compose  *compose.Session
}

// newClient validates the config and builds the gateway client and the
// controllers on top of it.
func newClient() (*client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config (%s): %w", cfg.ConfigPath, err)
	}
	gw, err := gateway.New(gateway.Config{
		URL:           cfg.Gateway.URL,
		APIKey:        cfg.Gateway.APIKey,
		AllowInsecure: cfg.Gateway.AllowInsecure,
		Timeout:       cfg.Gateway.Timeout.Duration,
		RateLimitQPS:  cfg.Gateway.RateLimitQPS,
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway client: %w", err)
	}

	user := mail.User{ID: cfg.User.ID, Email: cfg.User.Email}
	prompter := terminalPrompter{}
	mb := mailbox.New(gw, user, mailbox.Options{
		PageSize:    cfg.View.PageSize,
		MaxInFlight: cfg.Gateway.MaxInFlight,
	}).WithLogger(logger).WithPrompter(prompter)
	dir := contacts.New(gw, user).WithLogger(logger)
	session := compose.New(gw, user, dir, mb).WithLogger(logger).WithPrompter(prompter)

	return &client{gw: gw, user: user, mailbox: mb, contacts: dir, compose: session}, nil
}

// findMessage loads folder and returns the message with id.
func (c *client) findMessage(ctx context.Context, folder string, id int64) (mail.Message, error) {
	if err := c.mailbox.LoadFolder(ctx, folder); err != nil {
		return mail.Message{}, err
	}
	msg, ok := c.mailbox.Message(id)
	if !ok {
		return mail.Message{}, fmt.Errorf("message %d not found in %s", id, folder)
	}
	return msg, nil
}

// terminalPrompter asks on the terminal with a huh confirm. With --yes it
// accepts without asking; without a terminal it refuses.
type terminalPrompter struct{}

func (terminalPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		return false, errNeedsConfirmation
	}
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

var (
	_ mailbox.Prompter = terminalPrompter{}
	_ compose.Prompter = terminalPrompter{}
)
