package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errUsage = errors.New("usage")

const helpText = "Available commands: family <id>, revoke-family <id>, revoke-user <id>, sweep, exit"

// execIface is the command surface the dispatcher needs. App satisfies it;
// tests use a stub.
type execIface interface {
	Family(ctx context.Context, familyID string) error
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeUser(ctx context.Context, userID string) error
	Sweep(ctx context.Context) error
}

// Execute runs one command. It reports io.EOF for exit/quit.
func Execute(ctx context.Context, a execIface, out io.Writer, parts []string) error {
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]

	oneArg := func(fn func(context.Context, string) error) error {
		if len(args) != 1 {
			return fmt.Errorf("%w: %s <id>", errUsage, cmd)
		}
		return fn(ctx, args[0])
	}

	switch cmd {
	case "help":
		fmt.Fprintln(out, helpText)
		return nil
	case "family":
		return oneArg(a.Family)
	case "revoke-family":
		return oneArg(a.RevokeFamily)
	case "revoke-user":
		return oneArg(a.RevokeUser)
	case "sweep":
		return a.Sweep(ctx)
	case "exit", "quit":
		return io.EOF
	default:
		return fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
}

// runREPL reads commands line by line until EOF or exit. Command errors are
// printed and the loop continues.
func runREPL(ctx context.Context, a execIface, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "skyhaul-admin> ")
		if !scanner.Scan() {
			return
		}

		err := Execute(ctx, a, out, strings.Fields(scanner.Text()))
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out, "Bye!")
			return
		}
		if err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}

// Run executes args as a single command, or starts the interactive loop when
// args is empty.
func (a *App) Run(ctx context.Context, args []string, in io.Reader) error {
	if len(args) > 0 {
		err := Execute(ctx, a, a.out, args)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	fmt.Fprintln(a.out, "skyhaul admin console (type 'help' for commands)")
	runREPL(ctx, a, in, a.out)
	return nil
}
