package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/meigma/peres"
	"github.com/meigma/peres/internal/editscript"
)

type applyParams struct {
	script string
	output string
	backup bool
	dryRun bool
}

// backupSuffix is appended to an image path to name its backup.
const backupSuffix = ".orig.zst"

func applyCommand() *command {
	var params applyParams
	return &command{
		name:    "apply",
		summary: "Apply a YAML edit script to one or more images",
		usage:   "apply --script FILE [--backup] [-o OUT] [--dry-run] IMAGE...",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("apply", pflag.ContinueOnError)
			flagSet.StringVarP(&params.script, "script", "s", "", "edit script to apply")
			flagSet.StringVarP(&params.output, "output", "o", "", "save to OUT instead of the input (single image only)")
			flagSet.BoolVar(&params.backup, "backup", false, "keep a zstd-compressed copy of each image as IMAGE"+backupSuffix)
			flagSet.BoolVar(&params.dryRun, "dry-run", false, "report changes without saving")
			return flagSet
		},
		run: func(e *env, args []string) error {
			if params.script == "" {
				return usagef("apply: --script is required")
			}
			if len(args) == 0 {
				return usagef("apply: at least one image required")
			}
			if params.output != "" && len(args) > 1 {
				return usagef("apply: --output needs exactly one image")
			}
			return runApply(e, params, args)
		},
	}
}

func runApply(e *env, params applyParams, paths []string) error {
	script, err := editscript.Load(params.script)
	if err != nil {
		return err
	}

	return e.eachFile(paths, func(path string, w io.Writer) error {
		im, err := e.open(path)
		if err != nil {
			return err
		}
		before, err := e.open(path)
		if err != nil {
			return err
		}
		if err := script.Apply(im); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		changes, err := peres.Diff(before.Directory, im.Directory)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, c := range changes {
			fmt.Fprintf(w, "%s: %s\n", path, c)
		}
		if params.dryRun {
			return nil
		}

		target := path
		if params.output != "" {
			target = params.output
		}
		var opts []peres.SaveOption
		if params.backup {
			opts = append(opts, peres.SaveWithBackup(path+backupSuffix))
		}
		return im.Save(target, opts...)
	})
}
