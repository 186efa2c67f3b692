// Package cli implements the gpusieve command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
)

// MainWithArgs runs the command line args and returns an exit code:
// 0 on success, 1 on a failed command, 2 when no command is given.
func MainWithArgs(args []string) int {
	return mainWith(context.Background(), args, os.Stdout, os.Stderr)
}

func mainWith(ctx context.Context, args []string, out, errOut io.Writer) int {
	root := buildRootCmdWith(&Options{}, out, errOut)
	root.SetOut(out)
	root.SetErr(errOut)
	if len(args) == 0 {
		_ = root.Usage()
		return 2
	}
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, err.Error())
		return 1
	}
	return 0
}

// Main returns an exit code for use by cmd/gpusieve.
func Main() int { return MainWithArgs(os.Args[1:]) }
