package main

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/meigma/peres"
)

type listParams struct {
	types []string
	check bool
}

func listCommand() *command {
	var params listParams
	return &command{
		name:    "list",
		summary: "List the resources of one or more images",
		usage:   "list [--type TYPE]... [--check] FILE...",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.StringSliceVarP(&params.types, "type", "t", nil, "only list these types (RT_ICON, #24, CUSTOM)")
			flagSet.BoolVar(&params.check, "check", false, "decode every entry and report failures")
			return flagSet
		},
		run: func(e *env, args []string) error {
			if len(args) == 0 {
				return usagef("list: at least one file required")
			}
			return runList(e, params, args)
		},
	}
}

func runList(e *env, params listParams, paths []string) error {
	types := make([]peres.ID, len(params.types))
	for i, t := range params.types {
		types[i] = peres.ParseID(t)
	}

	var failed atomic.Bool
	err := e.eachFile(paths, func(path string, w io.Writer) error {
		im, err := e.open(path)
		if err != nil {
			return err
		}
		if len(paths) > 1 {
			fmt.Fprintf(w, "%s:\n", path)
		}
		if err := listEntries(w, im, types); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if params.check {
			for _, derr := range im.DecodeAll() {
				failed.Store(true)
				fmt.Fprintf(w, "  error: %v\n", derr)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failed.Load() {
		return errors.New("some entries failed to decode")
	}
	return nil
}

func listEntries(w io.Writer, im *peres.Image, types []peres.ID) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	walk := func(filter ...peres.ID) error {
		for entry := range im.Entries(filter...) {
			size, err := entry.Size()
			if err != nil {
				return err
			}
			dgst, err := entry.Digest()
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "  %s\t%s\t%d\t%d\t%s\n",
				peres.TypeString(entry.Type()), entry.Name(), entry.Lang(), size, dgst.Encoded()[:12])
		}
		return nil
	}
	if len(types) == 0 {
		if err := walk(); err != nil {
			return err
		}
	}
	for _, typ := range types {
		if err := walk(typ); err != nil {
			return err
		}
	}
	return tw.Flush()
}
