package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL drives.
type execIface interface {
	exec(ctx context.Context, args []string) error
	prompt() string
}

// runREPL reads one command per line until EOF, exit or quit. Command errors
// are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(w, a.prompt())

		line, err := reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if err != nil {
				fmt.Fprintln(w)
				return
			}
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			if cerr := a.exec(ctx, parts); cerr != nil {
				fmt.Fprintln(w, "error:", cerr)
			}
		}

		if err != nil {
			return
		}
	}
}
