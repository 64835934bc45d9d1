package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/devprofile/internal/logging"
	"github.com/spf13/pflag"
)

const usage = `devprofilectl inspects device profile documents.

Usage:
  devprofilectl resolve --document FILE (--package PKG | --data-dir DIR) [--mapping FILE]
  devprofilectl fetch   --socket PATH [--package PKG | --data-dir DIR] [--mapping FILE]
  devprofilectl groups  (--document FILE | --socket PATH)
  devprofilectl init    --kind mapping|helper --output FILE [--force]
`

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "devprofilectl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return fmt.Errorf("missing command")
	}
	cmd, rest := strings.ToLower(strings.TrimSpace(args[0])), args[1:]

	var err error
	switch cmd {
	case "resolve":
		err = runResolve(rest, out)
	case "fetch":
		err = runFetch(rest, out)
	case "groups":
		err = runGroups(rest, out)
	case "init":
		err = runInit(rest, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command: %s", args[0])
	}
	if err == pflag.ErrHelp {
		return nil
	}
	return err
}
