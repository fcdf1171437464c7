package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
)

// errUsage marks errors caused by bad command lines. main exits with
// status 2 for these.
var errUsage = errors.New("usage")

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// env carries the process streams and logger into a command.
type env struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// command is one peres subcommand.
type command struct {
	name    string
	summary string
	usage   string

	// flags returns a fresh flag set bound to the command's parameters.
	flags func() *pflag.FlagSet

	// run executes the command with the positional args left after
	// flag parsing.
	run func(e *env, args []string) error
}

func (c *command) execute(e *env, args []string) error {
	flagSet := pflag.NewFlagSet(c.name, pflag.ContinueOnError)
	if c.flags != nil {
		flagSet = c.flags()
	}
	flagSet.SetOutput(io.Discard)
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			c.printHelp(e.stderr, flagSet)
			return nil
		}
		return usagef("%s: %v", c.name, err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		c.printHelp(e.stderr, flagSet)
		return nil
	}
	return c.run(e, flagSet.Args())
}

func (c *command) printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "%s\n\nUsage:\n  peres %s\n", c.summary, c.usage)
	if usage := flagSet.FlagUsages(); usage != "" {
		fmt.Fprintf(w, "\nFlags:\n%s", usage)
	}
}

func findCommand(commands []*command, name string) *command {
	for _, c := range commands {
		if c.name == name {
			return c
		}
	}
	return nil
}

func printCommands(w io.Writer, commands []*command) {
	var b strings.Builder
	b.WriteString("peres inspects and edits the resources of Windows PE images.\n\n")
	b.WriteString("Usage:\n  peres [--verbose] <command> [flags] [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-10s %s\n", c.name, c.summary)
	}
	b.WriteString("\nRun 'peres <command> --help' for command flags.\n")
	io.WriteString(w, b.String()) //nolint:errcheck // help output
}
