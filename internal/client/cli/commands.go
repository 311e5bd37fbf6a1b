package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/gophgroups/internal/common"
)

var (
	ErrUsage          = errors.New("usage")
	ErrUnknownCommand = errors.New("unknown command")
)

type command struct {
	usage   string
	minArgs int
	run     func(a *App, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":     {usage: "help", run: (*App).help},
		"useradd":  {usage: "useradd <user>", minArgs: 1, run: (*App).userAdd},
		"userdel":  {usage: "userdel <user>", minArgs: 1, run: (*App).userDel},
		"groupadd": {usage: "groupadd <group>", minArgs: 1, run: (*App).groupAdd},
		"groupdel": {usage: "groupdel <group>", minArgs: 1, run: (*App).groupDel},
		"members":  {usage: "members <group>", minArgs: 1, run: (*App).members},
		"join":     {usage: "join <user> <group>", minArgs: 2, run: (*App).join},
		"leave":    {usage: "leave <user> <group>", minArgs: 2, run: (*App).leave},
		"keys":     {usage: "keys", run: (*App).keys},
		"refresh":  {usage: "refresh", run: (*App).refresh},
		"channels": {usage: "channels", run: (*App).channels},
		"mkchan":   {usage: "mkchan <group> <channel>", minArgs: 2, run: (*App).channelAdd},
		"rmchan":   {usage: "rmchan <group> <channel>", minArgs: 2, run: (*App).channelDel},
		"send":     {usage: "send <group> <channel> [text]", minArgs: 2, run: (*App).send},
		"read":     {usage: "read <group> <channel>", minArgs: 2, run: (*App).read},
		"edit":     {usage: "edit <group> <channel> <locator> [text]", minArgs: 3, run: (*App).edit},
		"rm":       {usage: "rm <group> <channel> <locator>", minArgs: 3, run: (*App).remove},
		"hosts":    {usage: "hosts", run: (*App).listHosts},
		"forget":   {usage: "forget <address>", minArgs: 1, run: (*App).forget},
	}
}

// exec runs one command line. Each command gets the configured timeout.
func (a *App) exec(ctx context.Context, args []string) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
	}
	return a.withTimeout(ctx, func(ctx context.Context) error {
		return cmd.run(a, ctx, args[1:])
	})
}

func (a *App) help(ctx context.Context, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "Available commands:")
	for _, name := range names {
		fmt.Fprintln(a.out, "  "+commands[name].usage)
	}
	fmt.Fprintln(a.out, "  exit")
	return nil
}

func (a *App) userAdd(ctx context.Context, args []string) error {
	password, err := GetPassword(a.out, "Password for new user "+args[0]+": ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.CreateUser(ctx, args[0], password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User %s created\n", args[0])
	return nil
}

func (a *App) userDel(ctx context.Context, args []string) error {
	if err := a.auth.DeleteUser(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User %s deleted\n", args[0])
	return nil
}

func (a *App) groupAdd(ctx context.Context, args []string) error {
	if err := a.auth.CreateGroup(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Group %s created\n", args[0])
	return nil
}

func (a *App) groupDel(ctx context.Context, args []string) error {
	if err := a.auth.DeleteGroup(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Group %s deleted\n", args[0])
	return nil
}

func (a *App) members(ctx context.Context, args []string) error {
	members, err := a.auth.ListMembers(ctx, args[0])
	if err != nil {
		return err
	}
	for _, m := range members {
		fmt.Fprintln(a.out, m)
	}
	return nil
}

func (a *App) join(ctx context.Context, args []string) error {
	if err := a.auth.AddUserToGroup(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s added to %s\n", args[0], args[1])
	return nil
}

func (a *App) leave(ctx context.Context, args []string) error {
	if err := a.auth.RemoveUserFromGroup(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s removed from %s\n", args[0], args[1])
	return nil
}

func (a *App) keys(ctx context.Context, _ []string) error {
	keys, err := a.auth.GroupKeys(ctx)
	if err != nil {
		return err
	}
	groups := make([]string, 0, len(keys))
	for g := range keys {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		fmt.Fprintf(a.out, "%s: %d key version(s)\n", g, len(keys[g]))
	}
	return nil
}

// refresh fetches a new token and the current group keys.
func (a *App) refresh(ctx context.Context, _ []string) error {
	m, err := a.message(ctx)
	if err != nil {
		return err
	}
	return m.Refresh(ctx)
}

func (a *App) channels(ctx context.Context, _ []string) error {
	m, err := a.message(ctx)
	if err != nil {
		return err
	}
	chans, err := m.Channels(ctx)
	if err != nil {
		return err
	}
	for _, c := range chans {
		fmt.Fprintf(a.out, "%s/%s (owner %s)\n", c.Group, c.Name, c.Owner)
	}
	return nil
}

func (a *App) channelAdd(ctx context.Context, args []string) error {
	m, err := a.message(ctx)
	if err != nil {
		return err
	}
	c, err := m.CreateChannel(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Channel %s/%s created\n", c.Group, c.Name)
	return nil
}

func (a *App) channelDel(ctx context.Context, args []string) error {
	m, err := a.message(ctx)
	if err != nil {
		return err
	}
	if err := m.DeleteChannel(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Channel %s/%s deleted\n", args[0], args[1])
	return nil
}

// text joins the remaining words, or asks for a multi-line body.
func (a *App) text(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	return GetMultiline(a.reader, "Message text", a.out)
}

func (a *App) send(ctx context.Context, args []string) error {
	m, err := a.message(ctx)
	if err != nil {
		return err
	}
	text, err := a.text(args[2:])
	if err != nil {
		return err
	}
	msg, err := m.Send(ctx, args[0], args[1], []byte(text))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sent %s\n", msg.Locator)
	return nil
}

func (a *App) read(ctx context.Context, args []string) error {
	m, err := a.message(ctx)
	if err != nil {
		return err
	}
	msgs, err := m.Read(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	for _, p := range msgs {
		if p.Err != nil {
			fmt.Fprintf(a.out, "[%s] %s: <%v>\n", p.Message.Locator, p.Message.Owner, p.Err)
			continue
		}
		fmt.Fprintf(a.out, "[%s] %s: %s\n", p.Message.Locator, p.Message.Owner, p.Text)
	}
	return nil
}

func (a *App) edit(ctx context.Context, args []string) error {
	m, err := a.message(ctx)
	if err != nil {
		return err
	}
	found, err := m.Find(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	text, err := a.text(args[3:])
	if err != nil {
		return err
	}
	msg, err := m.Edit(ctx, found.Message, []byte(text))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Edited %s\n", msg.Locator)
	return nil
}

func (a *App) remove(ctx context.Context, args []string) error {
	m, err := a.message(ctx)
	if err != nil {
		return err
	}
	found, err := m.Find(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	if err := m.Delete(ctx, found.Message); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", found.Message.Locator)
	return nil
}

func (a *App) listHosts(ctx context.Context, _ []string) error {
	pinned, err := a.hosts.Pinned(ctx)
	if err != nil {
		return err
	}
	addrs := make([]string, 0, len(pinned))
	for addr := range pinned {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		fmt.Fprintf(a.out, "%s %s\n", addr, pinned[addr])
	}
	return nil
}

func (a *App) forget(ctx context.Context, args []string) error {
	if err := a.hosts.Forget(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Forgot %s\n", args[0])
	return nil
}
