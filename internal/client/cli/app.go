package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophgroups/internal/client/client"
	"github.com/dmitrijs2005/gophgroups/internal/client/config"
	"github.com/dmitrijs2005/gophgroups/internal/client/hostlist"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
	"github.com/dmitrijs2005/gophgroups/internal/protocol"
)

// authAPI is the part of *client.AuthClient the commands use.
type authAPI interface {
	Username() string
	Connect(ctx context.Context) error
	Close() error
	CreateUser(ctx context.Context, username string, password []byte) error
	DeleteUser(ctx context.Context, username string) error
	CreateGroup(ctx context.Context, group string) error
	DeleteGroup(ctx context.Context, group string) error
	AddUserToGroup(ctx context.Context, username, group string) error
	RemoveUserFromGroup(ctx context.Context, username, group string) error
	ListMembers(ctx context.Context, group string) ([]string, error)
	GroupKeys(ctx context.Context) (client.GroupKeyMap, error)
}

// messageAPI is the part of *client.MessageClient the commands use.
type messageAPI interface {
	Close() error
	Refresh(ctx context.Context) error
	Channels(ctx context.Context) ([]protocol.Channel, error)
	CreateChannel(ctx context.Context, group, name string) (protocol.Channel, error)
	DeleteChannel(ctx context.Context, group, name string) error
	Send(ctx context.Context, group, channel string, text []byte) (protocol.Message, error)
	Edit(ctx context.Context, m protocol.Message, text []byte) (protocol.Message, error)
	Delete(ctx context.Context, m protocol.Message) error
	Read(ctx context.Context, group, channel string) ([]client.Plaintext, error)
	Find(ctx context.Context, group, channel, locator string) (client.Plaintext, error)
}

type App struct {
	config *config.Config
	reader *bufio.Reader
	out    io.Writer

	auth  authAPI
	msg   messageAPI
	hosts *hostlist.List

	// dialMessage opens a message client on first use.
	dialMessage func(ctx context.Context) (messageAPI, error)
	closers     []io.Closer
}

// NewApp loads the client identity and host list, asks for credentials and
// prepares connections to both services. Nothing is dialed yet.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	a := &App{config: c, reader: bufio.NewReader(in), out: out}

	km, created, err := cryptox.LoadOrCreateKeyMaterial(c.KeyDir)
	if err != nil {
		return nil, err
	}
	if created {
		fmt.Fprintf(out, "Created client key pair in %s\n", c.KeyDir)
	}

	if err := os.MkdirAll(filepath.Dir(c.HostsDB), 0o700); err != nil {
		return nil, fmt.Errorf("host list dir: %w", err)
	}
	a.hosts, err = hostlist.Open(ctx, c.HostsDB)
	if err != nil {
		return nil, fmt.Errorf("host list: %w", err)
	}
	a.closers = append(a.closers, a.hosts)

	authTr, err := client.NewGRPCTransport(c.AuthAddr)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, authTr)

	msgTr, err := client.NewGRPCTransport(c.MessageAddr)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, msgTr)

	username := c.Username
	if username == "" {
		username, err = GetSimpleText(a.reader, "Username", out)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	password, err := GetPassword(out, "Password for "+username+": ")
	if err != nil {
		a.Close()
		return nil, err
	}

	ac := client.NewAuthClient(authTr.Dial, username, password)
	a.auth = ac
	a.dialMessage = func(ctx context.Context) (messageAPI, error) {
		mc := client.NewMessageClient(msgTr.Dial, km.Private, a.hosts.Verifier(c.MessageAddr, a.trust), ac)
		if err := mc.Connect(ctx); err != nil {
			_ = mc.Close()
			return nil, err
		}
		return mc, nil
	}

	return a, nil
}

// trust asks the user about a message service seen for the first time.
func (a *App) trust(ctx context.Context, address, fingerprint string) (bool, error) {
	if a.config.TrustHosts {
		fmt.Fprintf(a.out, "Trusting %s (%s)\n", address, fingerprint)
		return true, nil
	}
	return Confirm(a.reader, fmt.Sprintf("Unknown host %s\nfingerprint %s\nTrust it?", address, fingerprint), a.out)
}

// message returns the message client, connecting it on first use.
func (a *App) message(ctx context.Context) (messageAPI, error) {
	if a.msg != nil {
		return a.msg, nil
	}
	if a.dialMessage == nil {
		return nil, client.ErrNotConnected
	}
	m, err := a.dialMessage(ctx)
	if err != nil {
		return nil, err
	}
	a.msg = m
	return m, nil
}

// Run logs in to the auth service and then executes args as a single
// command, or reads commands from the input when args is empty.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.Close()

	if err := a.withTimeout(ctx, a.auth.Connect); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if len(args) > 0 {
		return a.exec(ctx, args)
	}

	fmt.Fprintln(a.out, "GophGroups client (type 'help' for commands)")
	runREPL(ctx, a, a.reader, a.out)
	return nil
}

func (a *App) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (a *App) prompt() string {
	if a.auth == nil {
		return "gophgroups> "
	}
	return fmt.Sprintf("%s@gophgroups> ", a.auth.Username())
}

// Close drops both sessions and releases local resources.
func (a *App) Close() error {
	var errs []error
	if a.msg != nil {
		errs = append(errs, a.msg.Close())
		a.msg = nil
	}
	if a.auth != nil {
		errs = append(errs, a.auth.Close())
		a.auth = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
