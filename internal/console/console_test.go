package console

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-ledger/internal/repository/document"
	"user-ledger/internal/service"
	"user-ledger/internal/storage"
)

type session struct {
	registry *service.Registry
	store    *document.UserStore
	out      bytes.Buffer
}

func newSession(t *testing.T) *session {
	t.Helper()
	logger, _ := test.NewNullLogger()
	reg := service.NewRegistry()
	require.NoError(t, reg.Bootstrap())
	store := document.NewUserStore(storage.NewFileService(), filepath.Join(t.TempDir(), "users.json"), logger)
	return &session{registry: reg, store: store}
}

func (s *session) run(t *testing.T, lines ...string) string {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s.out.Reset()
	c := New(s.registry, s.store, strings.NewReader(strings.Join(lines, "\n")+"\n"), &s.out, logger)
	require.NoError(t, c.Run(context.Background()))
	return s.out.String()
}

func TestConsole_AccountLifecycle(t *testing.T) {
	s := newSession(t)

	out := s.run(t,
		"register alice 100",
		"Passw0rd!",
		"Passw0rd!",
		"login alice",
		"Passw0rd!",
		"deposit 50",
		"withdraw 500",
		"withdraw 500 --allow-overdraw",
		"additem pen 1.5",
		"additem red pen 2",
		"removeitem pen 1.50",
		"items",
		"show",
		"save",
		"exit",
	)

	assert.Contains(t, out, "Registered alice.")
	assert.Contains(t, out, "Welcome, alice. Balance: 100.00")
	assert.Contains(t, out, "Balance: 150.00")
	assert.Contains(t, out, "amount exceeds account balance")
	assert.Contains(t, out, "Balance: -350.00")
	assert.Contains(t, out, "Added pen (1.50).")
	assert.Contains(t, out, "Removed pen (1.50).")
	assert.Contains(t, out, "red pen")
	assert.Contains(t, out, "Saved 2 users.")
	assert.Contains(t, out, "Bye!")

	alice, err := s.registry.Get("alice")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("-350").Equal(alice.Balance()))
	require.Len(t, alice.Items(), 1)
	assert.Equal(t, "red pen", alice.Items()[0].Name)

	users, err := s.store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[1].Username())
	assert.True(t, users[1].CheckPassword("Passw0rd!"))
}

func TestConsole_LoginRequired(t *testing.T) {
	s := newSession(t)
	out := s.run(t, "deposit 5", "items")
	assert.Equal(t, 2, strings.Count(out, "Error: login required"))
}

func TestConsole_UnknownCommandAndUsage(t *testing.T) {
	s := newSession(t)
	out := s.run(t, "frobnicate", "login", "register")
	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "usage: login <username>")
	assert.Contains(t, out, "usage: register <username> [initial-balance]")
}

func TestConsole_Help(t *testing.T) {
	s := newSession(t)
	out := s.run(t, "help")
	for _, name := range []string{"login <username>", "withdraw <amount> [--allow-overdraw]", "passwd", "save"} {
		assert.Contains(t, out, name)
	}
}

func TestConsole_RegisterErrors(t *testing.T) {
	s := newSession(t)
	out := s.run(t,
		"register admin",
		"Passw0rd!",
		"Passw0rd!",
		"register bob",
		"short",
		"short",
		"register bob abc",
		"register bob",
		"Passw0rd!",
		"Different1!",
	)
	assert.Contains(t, out, "username already exists")
	assert.Contains(t, out, "password must be at least 8 characters long")
	assert.Contains(t, out, `invalid amount "abc"`)
	assert.Contains(t, out, "passwords do not match")
	assert.Equal(t, 1, s.registry.Len())
}

func TestConsole_WrongPassword(t *testing.T) {
	s := newSession(t)
	out := s.run(t, "login admin", "nope", "show")
	assert.Contains(t, out, "Error: wrong password")
	assert.Contains(t, out, "Error: login required")
}

func TestConsole_RemoveRules(t *testing.T) {
	s := newSession(t)
	_, err := s.registry.Register("alice", "Passw0rd!", decimal.Zero)
	require.NoError(t, err)
	_, err = s.registry.Register("bob", "Passw0rd!", decimal.Zero)
	require.NoError(t, err)

	out := s.run(t,
		"login alice",
		"Passw0rd!",
		"remove bob",
		"remove alice",
		"show",
		"login admin",
		service.DefaultBootstrapPassword,
		"remove admin",
		"remove bob",
	)

	assert.Contains(t, out, "only the account owner or the administrator may remove a user")
	assert.Contains(t, out, "Removed alice.")
	assert.Contains(t, out, "Error: login required")
	assert.Contains(t, out, "account is protected")
	assert.Contains(t, out, "Removed bob.")
	assert.Equal(t, 1, s.registry.Len())
}

func TestConsole_Passwd(t *testing.T) {
	s := newSession(t)
	out := s.run(t,
		"login admin",
		service.DefaultBootstrapPassword,
		"passwd",
		"wrong",
		"passwd",
		service.DefaultBootstrapPassword,
		"N3w!password",
		"N3w!password",
	)
	assert.Contains(t, out, "Error: wrong password")
	assert.Contains(t, out, "Password changed.")

	_, err := s.registry.Authenticate(service.BootstrapUsername, "N3w!password")
	assert.NoError(t, err)
}

func TestConsole_UsersAndLogout(t *testing.T) {
	s := newSession(t)
	_, err := s.registry.Register("alice", "Passw0rd!", decimal.Zero)
	require.NoError(t, err)

	out := s.run(t, "login alice", "Passw0rd!", "users", "logout", "users")
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "Signed out alice.")
	assert.Contains(t, out, "Error: login required")
	assert.Contains(t, out, "ledger[alice]> ")
}

func TestConsole_StopsOnCancelledContext(t *testing.T) {
	s := newSession(t)
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(s.registry, s.store, strings.NewReader("help\n"), &s.out, logger)
	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
}

func TestConsole_TryLocked(t *testing.T) {
	s := newSession(t)
	logger, _ := test.NewNullLogger()
	c := New(s.registry, s.store, strings.NewReader(""), &s.out, logger)

	var n int
	assert.True(t, c.TryLocked(time.Second, func(reg *service.Registry) { n = reg.Len() }))
	assert.Equal(t, 1, n)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.False(t, c.TryLocked(20*time.Millisecond, func(*service.Registry) { t.Fatal("ran while busy") }))
}

func TestReadSecret_Terminal(t *testing.T) {
	origTerm, origRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = origTerm, origRead })
	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }

	var out bytes.Buffer
	got, err := readSecret(os.Stdin, bufio.NewReader(strings.NewReader("")), &out, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
	assert.Equal(t, "Password: \n", out.String())
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("first\r\nlast"))

	line, err := readLine(r)
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = readLine(r)
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = readLine(r)
	assert.Error(t, err)
}
