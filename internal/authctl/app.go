// Package authctl implements the operator command line for the auth
// service: account registration, login, refresh-token rotation and
// revocation over gRPC, plus offline password hashing.
package authctl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/taskboard/internal/client"
	"github.com/dmitrijs2005/taskboard/internal/randx"
	"github.com/dmitrijs2005/taskboard/internal/server/auth"
)

const defaultAddr = "localhost:50051"

// Client is the part of client.GRPCClient the commands use.
type Client interface {
	Register(ctx context.Context, email, password, displayName string) (client.Tokens, error)
	Login(ctx context.Context, email, password string) (client.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (client.Tokens, error)
	Revoke(ctx context.Context, refreshToken string) error
	Me(ctx context.Context) (client.Identity, error)
	SetTokens(t client.Tokens)
	Close() error
}

type App struct {
	reader *bufio.Reader
	out    io.Writer
	errOut io.Writer
	dial   func(addr string) (Client, error)
}

func NewApp(in io.Reader, out, errOut io.Writer) *App {
	return &App{
		reader: bufio.NewReader(in),
		out:    out,
		errOut: errOut,
		dial: func(addr string) (Client, error) {
			return client.NewGRPCClient(addr)
		},
	}
}

var errUsage = errors.New("usage")

func (a *App) usage(fs *flag.FlagSet) {
	fmt.Fprintln(a.errOut, "Usage: authctl [-addr host:port] <command> [args]")
	fmt.Fprintln(a.errOut, "Commands:")
	fmt.Fprintln(a.errOut, "  register [-name display-name]  create an account and print the token pair")
	fmt.Fprintln(a.errOut, "  login                          sign in and print the token pair")
	fmt.Fprintln(a.errOut, "  refresh <refresh-token>        rotate a refresh token")
	fmt.Fprintln(a.errOut, "  revoke <refresh-token>         revoke a refresh token")
	fmt.Fprintln(a.errOut, "  me <access-token> [refresh]    show the identity behind an access token")
	fmt.Fprintln(a.errOut, "  hash-password                  print an argon2id hash of a password")
	if fs != nil {
		fs.PrintDefaults()
	}
}

// Run executes one command and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	addr := fs.String("addr", envOr("AUTHCTL_ADDR", defaultAddr), "auth service gRPC address")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		a.usage(fs)
		return 2
	}

	err := a.dispatch(ctx, *addr, rest[0], rest[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		a.usage(fs)
		return 2
	default:
		fmt.Fprintln(a.errOut, "error:", err)
		return 1
	}
}

func (a *App) dispatch(ctx context.Context, addr, cmd string, args []string) error {
	if cmd == "hash-password" {
		return a.hashPassword()
	}
	if cmd == "help" {
		return errUsage
	}

	c, err := a.dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	switch cmd {
	case "register":
		return a.register(ctx, c, args)
	case "login":
		return a.login(ctx, c)
	case "refresh":
		if len(args) != 1 {
			return errUsage
		}
		t, err := c.Refresh(ctx, args[0])
		if err != nil {
			return err
		}
		return a.print(t)
	case "revoke":
		if len(args) != 1 {
			return errUsage
		}
		if err := c.Revoke(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "revoked")
		return nil
	case "me":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		t := client.Tokens{AccessToken: args[0]}
		if len(args) == 2 {
			t.RefreshToken = args[1]
		}
		c.SetTokens(t)
		id, err := c.Me(ctx)
		if err != nil {
			return err
		}
		return a.print(id)
	}
	return errUsage
}

func (a *App) credentials() (string, []byte, error) {
	email, err := GetSimpleText(a.reader, "Enter email", a.errOut)
	if err != nil {
		return "", nil, err
	}
	password, err := GetPassword(a.reader, a.errOut)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

func (a *App) register(ctx context.Context, c Client, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer randx.Wipe(password)

	t, err := c.Register(ctx, email, string(password), *name)
	if err != nil {
		return err
	}
	return a.print(t)
}

func (a *App) login(ctx context.Context, c Client) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer randx.Wipe(password)

	t, err := c.Login(ctx, email, string(password))
	if err != nil {
		return err
	}
	return a.print(t)
}

func (a *App) hashPassword() error {
	password, err := GetPassword(a.reader, a.errOut)
	if err != nil {
		return err
	}
	defer randx.Wipe(password)

	if len(password) == 0 {
		return errors.New("password is empty")
	}

	h, err := auth.NewPasswordHasher(auth.DefaultArgon2Params, randx.Reader())
	if err != nil {
		return err
	}
	encoded, err := h.Hash(string(password))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, encoded)
	return nil
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
