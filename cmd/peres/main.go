// peres lists, extracts, compares and edits the resources embedded in
// Windows PE images.
//
// Every command that takes several images processes them concurrently and
// prints results in argument order. Edits are described by YAML scripts
// (see internal/editscript) and saved atomically, optionally after writing
// a zstd-compressed backup of the original.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/peres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func commands() []*command {
	return []*command{
		listCommand(),
		extractCommand(),
		diffCommand(),
		applyCommand(),
		manifestCommand(),
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var verbose bool

	flagSet := pflag.NewFlagSet("peres", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.SetInterspersed(false)
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log debug events to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	all := commands()
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printCommands(stderr, all)
			return nil
		}
		return usagef("%v", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printCommands(stderr, all)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printCommands(stderr, all)
		return usagef("command required")
	}
	c := findCommand(all, rest[0])
	if c == nil {
		return usagef("unknown command %q", rest[0])
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	e := &env{
		ctx:    ctx,
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}

	return c.execute(e, rest[1:])
}

// open loads the image at path with the command's logger attached.
func (e *env) open(path string) (*peres.Image, error) {
	im, err := peres.Open(path, peres.WithLogger(e.logger.With("file", path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return im, nil
}

// eachFile runs fn for every path concurrently and writes the output of
// each call to stdout in argument order. The first error cancels the
// remaining calls.
func (e *env) eachFile(paths []string, fn func(path string, w io.Writer) error) error {
	out := make([]bytes.Buffer, len(paths))
	g, ctx := errgroup.WithContext(e.ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(path, &out[i])
		})
	}
	err := g.Wait()
	for i := range out {
		if _, werr := out[i].WriteTo(e.stdout); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}
