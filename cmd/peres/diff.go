package main

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/peres"
)

func diffCommand() *command {
	return &command{
		name:    "diff",
		summary: "Compare the resources of two images",
		usage:   "diff OLD NEW",
		run: func(e *env, args []string) error {
			if len(args) != 2 {
				return usagef("diff: two images required")
			}
			return runDiff(e, args[0], args[1])
		},
	}
}

func runDiff(e *env, oldPath, newPath string) error {
	var before, after *peres.Image
	var g errgroup.Group
	g.Go(func() (err error) {
		before, err = e.open(oldPath)
		return err
	})
	g.Go(func() (err error) {
		after, err = e.open(newPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	changes, err := peres.Diff(before.Directory, after.Directory)
	if err != nil {
		return err
	}
	for _, c := range changes {
		fmt.Fprintln(e.stdout, c)
	}
	e.logger.Debug("diff complete", "changes", len(changes))
	return nil
}
