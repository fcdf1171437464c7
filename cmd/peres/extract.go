package main

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/pflag"

	"github.com/meigma/peres"
)

type extractParams struct {
	typ    string
	name   string
	lang   int
	output string
	zstd   bool
}

func extractCommand() *command {
	var params extractParams
	return &command{
		name:    "extract",
		summary: "Write the raw bytes of one resource",
		usage:   "extract --type TYPE --name NAME [--lang LANG] [-o FILE] [--zstd] IMAGE",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("extract", pflag.ContinueOnError)
			flagSet.StringVarP(&params.typ, "type", "t", "", "resource type (RT_MANIFEST, #24, CUSTOM)")
			flagSet.StringVarP(&params.name, "name", "n", "", "resource name (#1, APPICON)")
			flagSet.IntVarP(&params.lang, "lang", "l", -1, "language id (default: first language)")
			flagSet.StringVarP(&params.output, "output", "o", "", "write to FILE instead of stdout")
			flagSet.BoolVar(&params.zstd, "zstd", false, "compress the output with zstd")
			return flagSet
		},
		run: func(e *env, args []string) error {
			if len(args) != 1 {
				return usagef("extract: exactly one image required")
			}
			if params.typ == "" || params.name == "" {
				return usagef("extract: --type and --name are required")
			}
			if params.lang > 0xFFFF {
				return usagef("extract: --lang %d out of range", params.lang)
			}
			return runExtract(e, params, args[0])
		},
	}
}

func runExtract(e *env, params extractParams, path string) error {
	im, err := e.open(path)
	if err != nil {
		return err
	}

	typ, name := peres.ParseID(params.typ), peres.ParseID(params.name)
	var entry *peres.Entry
	if params.lang < 0 {
		entry, err = im.First(typ, name)
	} else {
		entry, err = im.Get(typ, name, uint16(params.lang)) //nolint:gosec // range checked
	}
	if err != nil {
		return err
	}
	data, err := entry.Bytes()
	if err != nil {
		return err
	}

	if params.output == "" {
		return writeExtract(e.stdout, data, params.zstd)
	}
	f, err := os.Create(params.output)
	if err != nil {
		return err
	}
	if err := writeExtract(f, data, params.zstd); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", params.output, err)
	}
	return f.Close()
}

func writeExtract(w io.Writer, data []byte, compress bool) error {
	if !compress {
		_, err := w.Write(data)
		return err
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
