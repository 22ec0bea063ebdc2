package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/sessionguard/internal/client/client"
	"github.com/dmitrijs2005/sessionguard/internal/client/config"
)

var ErrUnknownCommand = errors.New("unknown command")

type App struct {
	client client.Client
	reader *bufio.Reader
	out    io.Writer
}

// NewApp wires the HTTP client with the state file named in c.
func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewHTTPClient(c.ServerURL, c.StateFile, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return newApp(apiClient, os.Stdin, os.Stdout), nil
}

func newApp(cl client.Client, in io.Reader, out io.Writer) *App {
	return &App{client: cl, reader: bufio.NewReader(in), out: out}
}

type command struct {
	name    string
	summary string
	run     func(a *App, ctx context.Context) error
}

var commands = []command{
	{"register", "create an account and log in", (*App).register},
	{"login", "start a session", (*App).login},
	{"me", "show the logged in account", (*App).me},
	{"logout", "end the current session", (*App).logout},
	{"delete", "delete the account and end all its sessions", (*App).deleteAccount},
	{"passwd", "change the password and end other sessions", (*App).changePassword},
	{"sessions", "list sessions of the account", (*App).sessions},
}

// Run executes the command named by args[0]. With no arguments, or "help",
// it prints the list of commands.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" {
		a.usage()
		return nil
	}

	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(a, ctx)
		}
	}

	a.usage()
	return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "Usage: sessionguard [-s server-url] [-f state-file] <command>")
	fmt.Fprintln(a.out, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(a.out, "  %-9s %s\n", cmd.name, cmd.summary)
	}
}
