package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/pflag"

	"github.com/meigma/peres"
	"github.com/meigma/peres/manifest"
)

type manifestParams struct {
	level    string
	uiAccess bool
	xml      bool
}

var executionLevels = []string{manifest.AsInvoker, manifest.HighestAvailable, manifest.RequireAdministrator}

func manifestCommand() *command {
	var params manifestParams
	return &command{
		name:    "manifest",
		summary: "Show or set the requested execution level",
		usage:   "manifest [--set-level LEVEL [--ui-access]] [--xml] IMAGE",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("manifest", pflag.ContinueOnError)
			flagSet.StringVar(&params.level, "set-level", "", "set the execution level (asInvoker, highestAvailable, requireAdministrator)")
			flagSet.BoolVar(&params.uiAccess, "ui-access", false, "request UI access with --set-level")
			flagSet.BoolVar(&params.xml, "xml", false, "print the whole manifest document")
			return flagSet
		},
		run: func(e *env, args []string) error {
			if len(args) != 1 {
				return usagef("manifest: exactly one image required")
			}
			if params.level != "" && !slices.Contains(executionLevels, params.level) {
				return usagef("manifest: unknown execution level %q", params.level)
			}
			return runManifest(e, params, args[0])
		},
	}
}

func runManifest(e *env, params manifestParams, path string) error {
	im, err := e.open(path)
	if err != nil {
		return err
	}

	m, _, err := im.Manifest()
	if errors.Is(err, peres.ErrNotFound) && params.level != "" {
		var entry *peres.Entry
		if entry, err = im.NewManifest(manifest.CreateProcess); err == nil {
			m, err = peres.As[*manifest.Manifest](entry)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if params.level != "" {
		m.SetExecutionLevel(params.level, params.uiAccess)
		if err := im.Save(path); err != nil {
			return err
		}
	}

	if params.xml {
		fmt.Fprintln(e.stdout, m)
		return nil
	}
	level, uiAccess := m.ExecutionLevel()
	if level == "" {
		level = "(none)"
	}
	fmt.Fprintf(e.stdout, "level: %s\nuiAccess: %t\n", level, uiAccess)
	return nil
}
