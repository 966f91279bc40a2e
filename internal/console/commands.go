package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"user-ledger/internal/domain"
	"user-ledger/internal/service"
)

const allowOverdrawFlag = "--allow-overdraw"

func (c *Console) commandTable() map[string]command {
	return map[string]command{
		"help":       {usage: "help", summary: "list commands", run: c.help},
		"login":      {usage: "login <username>", summary: "sign in", run: c.login},
		"logout":     {usage: "logout", summary: "sign out", needsLogin: true, run: c.logout},
		"register":   {usage: "register <username> [initial-balance]", summary: "create an account", run: c.register},
		"show":       {usage: "show", summary: "show the signed in account", needsLogin: true, run: c.show},
		"users":      {usage: "users", summary: "list registered users", needsLogin: true, run: c.users},
		"deposit":    {usage: "deposit <amount>", summary: "add to the balance", needsLogin: true, run: c.deposit},
		"withdraw":   {usage: "withdraw <amount> [" + allowOverdrawFlag + "]", summary: "take from the balance", needsLogin: true, run: c.withdraw},
		"additem":    {usage: "additem <name> <price>", summary: "add an item", needsLogin: true, run: c.addItem},
		"removeitem": {usage: "removeitem <name> <price>", summary: "remove one matching item", needsLogin: true, run: c.removeItem},
		"items":      {usage: "items", summary: "list owned items", needsLogin: true, run: c.items},
		"remove":     {usage: "remove <username>", summary: "delete an account", needsLogin: true, run: c.remove},
		"passwd":     {usage: "passwd", summary: "change the password", needsLogin: true, run: c.passwd},
		"save":       {usage: "save", summary: "write the registry to the store", run: c.save},
		"exit":       {usage: "exit", summary: "leave the shell", run: c.quit},
		"quit":       {usage: "quit", summary: "same as exit", run: c.quit},
	}
}

func usageError(usage string) error {
	return fmt.Errorf("usage: %s", usage)
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func (c *Console) help(context.Context, []string) error {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	for _, name := range c.commandNames() {
		cmd := c.commands[name]
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.usage, cmd.summary)
	}
	return tw.Flush()
}

func (c *Console) login(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("login <username>")
	}
	password, err := readSecret(c.src, c.in, c.out, "Password: ")
	if err != nil {
		return err
	}

	user, err := c.registry.Authenticate(args[0], password)
	if err != nil {
		return err
	}
	c.current = user
	c.println(fmt.Sprintf("Welcome, %s. Balance: %s", user.Username(), user.Balance().StringFixed(2)))
	return nil
}

func (c *Console) logout(context.Context, []string) error {
	c.println("Signed out", c.current.Username()+".")
	c.current = nil
	return nil
}

func (c *Console) register(_ context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("register <username> [initial-balance]")
	}
	balance := decimal.Zero
	if len(args) == 2 {
		var err error
		if balance, err = parseAmount(args[1]); err != nil {
			return err
		}
	}

	password, err := c.newPassword()
	if err != nil {
		return err
	}
	user, err := c.registry.Register(args[0], password, balance)
	if err != nil {
		return err
	}
	c.logger.WithField("username", user.Username()).Info("user registered")
	c.println(fmt.Sprintf("Registered %s.", user.Username()))
	return nil
}

func (c *Console) newPassword() (string, error) {
	password, err := readSecret(c.src, c.in, c.out, "New password: ")
	if err != nil {
		return "", err
	}
	repeat, err := readSecret(c.src, c.in, c.out, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if password != repeat {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

func (c *Console) show(context.Context, []string) error {
	u := c.current
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Username:\t%s\n", u.Username())
	fmt.Fprintf(tw, "ID:\t%s\n", u.ID())
	fmt.Fprintf(tw, "Balance:\t%s\n", u.Balance().StringFixed(2))
	fmt.Fprintf(tw, "Items:\t%d\n", len(u.Items()))
	return tw.Flush()
}

func (c *Console) users(context.Context, []string) error {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tITEMS")
	for _, u := range c.registry.Users() {
		fmt.Fprintf(tw, "%s\t%d\n", u.Username(), len(u.Items()))
	}
	return tw.Flush()
}

func (c *Console) deposit(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("deposit <amount>")
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	if err := c.current.IncrementBalance(amount); err != nil {
		return err
	}
	c.println("Balance:", c.current.Balance().StringFixed(2))
	return nil
}

func (c *Console) withdraw(_ context.Context, args []string) error {
	preventOverdraw := true
	var rest []string
	for _, a := range args {
		if a == allowOverdrawFlag {
			preventOverdraw = false
			continue
		}
		rest = append(rest, a)
	}
	if len(rest) != 1 {
		return usageError("withdraw <amount> [" + allowOverdrawFlag + "]")
	}

	amount, err := parseAmount(rest[0])
	if err != nil {
		return err
	}
	if err := c.current.DecrementBalance(amount, preventOverdraw); err != nil {
		if errors.Is(err, domain.ErrBalanceOverdraw) {
			return fmt.Errorf("%w (balance %s, use %s)", err, c.current.Balance().StringFixed(2), allowOverdrawFlag)
		}
		return err
	}
	c.println("Balance:", c.current.Balance().StringFixed(2))
	return nil
}

// itemArgs splits "<name words...> <price>".
func itemArgs(args []string, usage string) (string, decimal.Decimal, error) {
	if len(args) < 2 {
		return "", decimal.Decimal{}, usageError(usage)
	}
	price, err := parseAmount(args[len(args)-1])
	if err != nil {
		return "", decimal.Decimal{}, err
	}
	return strings.Join(args[:len(args)-1], " "), price, nil
}

func (c *Console) addItem(_ context.Context, args []string) error {
	name, price, err := itemArgs(args, "additem <name> <price>")
	if err != nil {
		return err
	}
	if err := c.current.AddItem(name, price); err != nil {
		return err
	}
	c.println(fmt.Sprintf("Added %s.", domain.Item{Name: name, Price: price}))
	return nil
}

func (c *Console) removeItem(_ context.Context, args []string) error {
	name, price, err := itemArgs(args, "removeitem <name> <price>")
	if err != nil {
		return err
	}
	item, err := domain.NewItem(name, price)
	if err != nil {
		return err
	}
	if !c.current.RemoveItem(item) {
		return fmt.Errorf("no item %s", item)
	}
	c.println(fmt.Sprintf("Removed %s.", item))
	return nil
}

func (c *Console) items(context.Context, []string) error {
	items := c.current.Items()
	if len(items) == 0 {
		c.println("No items.")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "NAME\tPRICE\t")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t\n", item.Name, item.Price.StringFixed(2))
	}
	return tw.Flush()
}

func (c *Console) remove(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("remove <username>")
	}
	target := args[0]
	self := c.current.Username()
	if target != self && self != service.BootstrapUsername {
		return errors.New("only the account owner or the administrator may remove a user")
	}

	if err := c.registry.Remove(target); err != nil {
		return err
	}
	c.logger.WithField("username", target).Info("user removed")
	c.println(fmt.Sprintf("Removed %s.", target))
	if target == self {
		c.current = nil
	}
	return nil
}

func (c *Console) passwd(context.Context, []string) error {
	current, err := readSecret(c.src, c.in, c.out, "Current password: ")
	if err != nil {
		return err
	}
	if !c.current.CheckPassword(current) {
		return domain.ErrAuthFailed
	}
	password, err := c.newPassword()
	if err != nil {
		return err
	}
	if err := c.registry.ResetPassword(c.current.Username(), password); err != nil {
		return err
	}
	c.println("Password changed.")
	return nil
}

func (c *Console) save(ctx context.Context, _ []string) error {
	if err := service.SaveRegistry(ctx, c.store, c.registry); err != nil {
		c.logger.WithError(err).Warn("save registry")
		return err
	}
	c.println(fmt.Sprintf("Saved %d users.", c.registry.Len()))
	return nil
}

func (c *Console) quit(context.Context, []string) error {
	return errQuit
}
