// Package console implements the interactive ledger shell.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"user-ledger/internal/domain"
	"user-ledger/internal/repository"
	"user-ledger/internal/service"
)

var errQuit = errors.New("quit")

type command struct {
	usage      string
	summary    string
	needsLogin bool
	run        func(ctx context.Context, args []string) error
}

// Console is a line-oriented shell over a registry. Commands run under mu;
// other goroutines reach the registry through TryLocked.
type Console struct {
	mu       sync.Mutex
	registry *service.Registry
	store    repository.UserStore
	logger   logrus.FieldLogger

	src io.Reader
	in  *bufio.Reader
	out io.Writer

	current  *domain.User
	commands map[string]command
}

func New(registry *service.Registry, store repository.UserStore, in io.Reader, out io.Writer, logger logrus.FieldLogger) *Console {
	c := &Console{
		registry: registry,
		store:    store,
		logger:   logger,
		src:      in,
		in:       bufio.NewReader(in),
		out:      out,
	}
	c.commands = c.commandTable()
	return c
}

// Run reads and executes commands until exit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	c.println("Type 'help' for a list of commands.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(c.out, c.prompt())

		line, err := readLine(c.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.println()
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if err := c.exec(ctx, fields[0], fields[1:]); err != nil {
			if errors.Is(err, errQuit) {
				c.println("Bye!")
				return nil
			}
			c.println("Error:", describe(err))
		}
	}
}

func (c *Console) exec(ctx context.Context, name string, args []string) error {
	cmd, ok := c.commands[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help'", name)
	}
	if cmd.needsLogin && c.current == nil {
		return errors.New("login required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return cmd.run(ctx, args)
}

// TryLocked runs fn with the registry once no command is executing. It gives
// up after wait and reports false.
func (c *Console) TryLocked(wait time.Duration, fn func(*service.Registry)) bool {
	deadline := time.Now().Add(wait)
	for !c.mu.TryLock() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	defer c.mu.Unlock()
	fn(c.registry)
	return true
}

func (c *Console) prompt() string {
	if c.current == nil {
		return "ledger> "
	}
	return fmt.Sprintf("ledger[%s]> ", c.current.Username())
}

func (c *Console) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

func (c *Console) commandNames() []string {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// describe renders domain errors for people.
func describe(err error) string {
	var policy *domain.PasswordPolicyError
	switch {
	case errors.As(err, &policy):
		return "password " + strings.Join(policy.Violations, ", password ")
	case errors.Is(err, domain.ErrAuthFailed):
		return "wrong password"
	default:
		return err.Error()
	}
}
